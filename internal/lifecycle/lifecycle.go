// Package lifecycle holds the order state machine: which status follows
// which, and which participant is allowed to drive each edge.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/farmtofork/coldchain/internal/models"
)

var (
	ErrStatusAlreadySet        = errors.New("status is already set to the desired value")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrActorNotPermitted       = errors.New("actor role is not permitted to drive this transition")
	ErrUnknownActor            = errors.New("unknown actor role")
)

// allowedTransitions maps every status to its outgoing edges and the single
// role permitted to drive each edge. Statuses with no entries are terminal.
var allowedTransitions = map[models.OrderStatus]map[models.OrderStatus]models.Role{
	models.StatusAwaitingAcceptance: {
		models.StatusAwaitingPayment:      models.RoleManufacturer,
		models.StatusRejectedManufacturer: models.RoleManufacturer,
	},
	models.StatusAwaitingPayment: {
		models.StatusPaid:     models.RoleRetailer,
		models.StatusCanceled: models.RoleRetailer,
	},
	models.StatusPaid: {
		models.StatusPreparingDispatch: models.RoleManufacturer,
	},
	models.StatusPreparingDispatch: {
		models.StatusDispatched: models.RoleManufacturer, // via distributor assignment
		models.StatusCanceled:   models.RoleRetailer,
	},
	models.StatusDispatched: {
		models.StatusAcceptedDistributor: models.RoleDistributor,
		models.StatusRejectedDistributor: models.RoleDistributor,
	},
	models.StatusAcceptedDistributor: {
		models.StatusInTransit:          models.RoleDistributor,
		models.StatusRejectedUnsafeTemp: models.RoleSentinel,
	},
	models.StatusRejectedDistributor: {
		models.StatusDispatched: models.RoleManufacturer, // reassignment path
	},
	models.StatusInTransit: {
		models.StatusDelivered:          models.RoleDistributor,
		models.StatusRejectedUnsafeTemp: models.RoleSentinel,
	},
	models.StatusDelivered: {
		models.StatusCompleted:          models.RoleRetailer,
		models.StatusRejectedRetailer:   models.RoleRetailer,
		models.StatusRejectedUnsafeTemp: models.RoleSentinel,
	},
	models.StatusRejectedManufacturer: {},
	models.StatusCanceled:             {},
	models.StatusCompleted:            {},
	models.StatusRejectedRetailer:     {},
	models.StatusRejectedUnsafeTemp:   {},
}

// Initial is the status every newly created order starts in.
const Initial = models.StatusAwaitingAcceptance

// CanTransition reports whether the edge from -> to exists in the graph,
// regardless of who drives it.
func CanTransition(from, to models.OrderStatus) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// Step validates the transition from -> to for the given actor. It returns
// ErrStatusAlreadySet when from == to, ErrInvalidStatusTransition when the
// edge does not exist and ErrActorNotPermitted when the edge exists but
// belongs to a different role.
func Step(from, to models.OrderStatus, actor models.Role) error {
	if from == to {
		return ErrStatusAlreadySet
	}
	role, ok := allowedTransitions[from][to]
	if !ok {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidStatusTransition, from, to)
	}
	if role != actor {
		return fmt.Errorf("%w: %q may not move %q -> %q", ErrActorNotPermitted, actor, from, to)
	}
	return nil
}

// IsTerminal reports whether the status has no outgoing edges.
func IsTerminal(s models.OrderStatus) bool {
	return len(allowedTransitions[s]) == 0
}

// CanAssignDistributor reports whether a distributor may be assigned while
// the order is in the given status. Assignment is legal from the preparing
// state and from the distributor-rejected state (reassignment).
func CanAssignDistributor(s models.OrderStatus) bool {
	return s == models.StatusPreparingDispatch || s == models.StatusRejectedDistributor
}

// CanCancel reports whether the dedicated cancel operation applies. The pay
// screen's cancel goes through the regular transition instead.
func CanCancel(s models.OrderStatus) bool {
	return s == models.StatusPreparingDispatch
}

// TempEvaluable reports whether the order's temperature reading is subject
// to safety evaluation in the given status.
func TempEvaluable(s models.OrderStatus) bool {
	switch s {
	case models.StatusAcceptedDistributor, models.StatusInTransit, models.StatusDelivered:
		return true
	}
	return false
}

// RejectionStatus derives the terminal rejection status for the actor. This
// is the single rejection contract: every rejection path, with or without a
// reason, lands on the status derived here.
func RejectionStatus(actor models.Role) (models.OrderStatus, error) {
	switch actor {
	case models.RoleManufacturer:
		return models.StatusRejectedManufacturer, nil
	case models.RoleDistributor:
		return models.StatusRejectedDistributor, nil
	case models.RoleRetailer:
		return models.StatusRejectedRetailer, nil
	case models.RoleSentinel:
		return models.StatusRejectedUnsafeTemp, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownActor, actor)
}
