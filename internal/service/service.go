// Package service implements the order lifecycle operations on top of the
// ledger: placement validation, actor-gated transitions, rejection with
// reason, distributor assignment and cancellation.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmtofork/coldchain/internal/audit"
	"github.com/farmtofork/coldchain/internal/cache"
	"github.com/farmtofork/coldchain/internal/eligibility"
	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/lifecycle"
	"github.com/farmtofork/coldchain/internal/models"
	"github.com/farmtofork/coldchain/internal/notify"
)

const (
	dateLayout      = "2006-01-02"
	maxReasonLength = 200
)

// ValidationError marks a request the caller can fix. The transport layer
// maps it to a 400.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

type OrderService struct {
	store    ledger.Ledger
	products *cache.ProductCache
	orders   *cache.ActiveOrdersCache
	center   *notify.Center
	auditor  *audit.WorkerPool
	logger   zerolog.Logger
}

func NewOrderService(store ledger.Ledger, products *cache.ProductCache, orders *cache.ActiveOrdersCache, center *notify.Center, auditor *audit.WorkerPool, logger zerolog.Logger) *OrderService {
	return &OrderService{
		store:    store,
		products: products,
		orders:   orders,
		center:   center,
		auditor:  auditor,
		logger:   logger.With().Str("component", "order_service").Logger(),
	}
}

// CreateOrderInput is what the retailer supplies when placing an order. The
// manufacturer and the price come from the product record.
type CreateOrderInput struct {
	Retailer        string
	ProductID       int64
	Quantity        int
	DeliveryDate    string
	DeliveryTime    string
	ShippingAddress string
}

// CreateOrder validates the placement and stores the order in its initial
// status with the first history entry recorded.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if _, err := s.store.GetRetailer(ctx, in.Retailer); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	p, err := s.store.GetProductByID(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if p.Status != models.ProductInStock {
		return nil, invalid("productId", "product %d is out of stock", in.ProductID)
	}
	if in.Quantity < p.Details.MinOrderQuantity || in.Quantity > p.Details.MaxOrderQuantity {
		return nil, invalid("quantity", "must be between %d and %d", p.Details.MinOrderQuantity, p.Details.MaxOrderQuantity)
	}
	if err := validateDeliveryDate(in.DeliveryDate); err != nil {
		return nil, err
	}
	if in.DeliveryTime != "AM" && in.DeliveryTime != "PM" {
		return nil, invalid("deliveryTime", "must be AM or PM")
	}
	if in.ShippingAddress == "" {
		return nil, invalid("shippingAddress", "must not be empty")
	}

	now := time.Now().UTC()
	o := &models.Order{
		Retailer:     in.Retailer,
		Manufacturer: p.Manufacturer,
		ProductID:    in.ProductID,
		Quantity:     in.Quantity,
		Price:        p.Details.Price * int64(in.Quantity),
		DeliveryInfo: models.DeliveryInfo{
			DeliveryDate:    in.DeliveryDate,
			DeliveryTime:    in.DeliveryTime,
			ShippingAddress: in.ShippingAddress,
		},
		CreatedAt: now,
	}
	o.RecordStatus(lifecycle.Initial, now)

	id, err := s.store.CreateOrder(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	o.OrderID = id
	s.logger.Info().Int64("order_id", id).Str("retailer", in.Retailer).Int64("product_id", in.ProductID).Msg("order placed")
	return o, nil
}

// The delivery date must lie between today and one year out, both inclusive.
func validateDeliveryDate(date string) error {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return invalid("deliveryDate", "must be an ISO date (YYYY-MM-DD)")
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if d.Before(today) {
		return invalid("deliveryDate", "must not be in the past")
	}
	if d.After(today.AddDate(1, 0, 0)) {
		return invalid("deliveryDate", "must be within one year")
	}
	return nil
}

// UpdateOrderStatus moves the order to a new status on behalf of an actor.
// The actor must hold the role the transition requires and be the
// participant named on the order.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, actor string, to models.OrderStatus) error {
	o, role, err := s.loadForActor(ctx, orderID, actor)
	if err != nil {
		return err
	}
	if err := lifecycle.Step(o.Status, to, role); err != nil {
		return fmt.Errorf("update order %d: %w", orderID, err)
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, o.Status, to, ""); err != nil {
		return fmt.Errorf("update order %d: %w", orderID, err)
	}
	s.recordAudit(orderID, actor, o.Status, to, "")
	return nil
}

// RejectOrder is the single rejection entry point. The terminal status is
// derived from the actor's role, so a distributor can only ever produce a
// distributor rejection.
func (s *OrderService) RejectOrder(ctx context.Context, orderID int64, actor, reason string) error {
	if len(reason) > maxReasonLength {
		return invalid("reason", "must be at most %d characters", maxReasonLength)
	}
	if reason == "" {
		return invalid("reason", "must not be empty")
	}
	o, role, err := s.loadForActor(ctx, orderID, actor)
	if err != nil {
		return err
	}
	to, err := lifecycle.RejectionStatus(role)
	if err != nil {
		return fmt.Errorf("reject order %d: %w", orderID, err)
	}
	if err := lifecycle.Step(o.Status, to, role); err != nil {
		return fmt.Errorf("reject order %d: %w", orderID, err)
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, o.Status, to, reason); err != nil {
		return fmt.Errorf("reject order %d: %w", orderID, err)
	}
	s.recordAudit(orderID, actor, o.Status, to, reason)

	if s.center != nil {
		if _, err := s.center.Raise(orderID, notify.CategoryRejection,
			fmt.Sprintf("Order %d rejected: %s", orderID, reason)); err != nil {
			s.logger.Error().Err(err).Int64("order_id", orderID).Msg("raising rejection notification")
		}
	}
	return nil
}

// AssignDistributor dispatches the order to a distributor chosen by the
// manufacturer. The distributor must pass the eligibility filter for the
// order's delivery constraints and transport mode.
func (s *OrderService) AssignDistributor(ctx context.Context, orderID int64, actor, distributor string) error {
	o, role, err := s.loadForActor(ctx, orderID, actor)
	if err != nil {
		return err
	}
	if role != models.RoleManufacturer {
		return fmt.Errorf("assign distributor: %w", lifecycle.ErrActorNotPermitted)
	}
	if !lifecycle.CanAssignDistributor(o.Status) {
		return fmt.Errorf("assign distributor: order %d in status %q: %w", orderID, o.Status, lifecycle.ErrInvalidStatusTransition)
	}

	eligible, err := s.EligibleDistributors(ctx, orderID)
	if err != nil {
		return err
	}
	found := false
	for _, d := range eligible {
		if d.Addr == distributor {
			found = true
			break
		}
	}
	if !found {
		return invalid("distributor", "%s is not eligible for order %d", distributor, orderID)
	}

	if err := s.store.AssignDistributor(ctx, orderID, o.Status, distributor); err != nil {
		return fmt.Errorf("assign distributor: %w", err)
	}
	s.recordAudit(orderID, actor, o.Status, models.StatusDispatched, "")
	s.logger.Info().Int64("order_id", orderID).Str("distributor", distributor).Msg("distributor assigned")
	return nil
}

// CancelOrder withdraws a paid order before dispatch.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64, actor string) error {
	o, role, err := s.loadForActor(ctx, orderID, actor)
	if err != nil {
		return err
	}
	if role != models.RoleRetailer {
		return fmt.Errorf("cancel order: %w", lifecycle.ErrActorNotPermitted)
	}
	if !lifecycle.CanCancel(o.Status) {
		return fmt.Errorf("cancel order %d in status %q: %w", orderID, o.Status, lifecycle.ErrInvalidStatusTransition)
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, o.Status, models.StatusCanceled, ""); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	s.recordAudit(orderID, actor, o.Status, models.StatusCanceled, "")
	return nil
}

// EligibleDistributors returns the registered distributors able to serve
// the order's delivery day, slot and transport mode.
func (s *OrderService) EligibleDistributors(ctx context.Context, orderID int64) ([]*models.Distributor, error) {
	o, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("eligible distributors: %w", err)
	}
	p, err := s.products.Get(ctx, o.ProductID)
	if err != nil {
		return nil, fmt.Errorf("eligible distributors: %w", err)
	}
	candidates, err := s.store.ListDistributors(ctx)
	if err != nil {
		return nil, fmt.Errorf("eligible distributors: %w", err)
	}
	return eligibility.EligibleDistributors(o, p, candidates)
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

// TrackOrder returns the order's append-only status history.
func (s *OrderService) TrackOrder(ctx context.Context, orderID int64) ([]models.HistoryEntry, error) {
	o, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return o.History, nil
}

// ListOrdersFor returns the orders visible to the address, scoped by its
// registered role.
func (s *OrderService) ListOrdersFor(ctx context.Context, addr string) ([]*models.Order, error) {
	role, err := s.store.RoleOf(ctx, addr)
	if err != nil {
		return nil, err
	}
	switch role {
	case models.RoleManufacturer:
		return s.store.ListOrdersByManufacturer(ctx, addr)
	case models.RoleRetailer:
		return s.store.ListOrdersByRetailer(ctx, addr)
	case models.RoleDistributor:
		return s.store.ListOrdersByDistributor(ctx, addr)
	}
	return nil, fmt.Errorf("address %s: %w", addr, ledger.ErrParticipantNotFound)
}

// ListOrders returns every order on the ledger. Reads come from the
// periodically refreshed cache when one is wired; an empty cache falls
// through to the store so the first requests after startup are not blank.
func (s *OrderService) ListOrders(ctx context.Context) ([]*models.Order, error) {
	if s.orders != nil {
		if cached := s.orders.Get(); len(cached) > 0 {
			return cached, nil
		}
	}
	return s.store.ListOrders(ctx)
}

// loadForActor fetches the order, resolves the actor's role and checks that
// the actor is the participant the order names for that role.
func (s *OrderService) loadForActor(ctx context.Context, orderID int64, actor string) (*models.Order, models.Role, error) {
	o, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, "", fmt.Errorf("order %d: %w", orderID, err)
	}
	role, err := s.store.RoleOf(ctx, actor)
	if err != nil {
		return nil, "", fmt.Errorf("actor %s: %w", actor, err)
	}
	var named string
	switch role {
	case models.RoleManufacturer:
		named = o.Manufacturer
	case models.RoleRetailer:
		named = o.Retailer
	case models.RoleDistributor:
		named = o.Distributor
	}
	if named != actor {
		return nil, "", fmt.Errorf("actor %s is not a participant of order %d: %w", actor, orderID, lifecycle.ErrActorNotPermitted)
	}
	return o, role, nil
}

func (s *OrderService) recordAudit(orderID int64, actor string, from, to models.OrderStatus, reason string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Log(audit.Record{
		RecordedAt: time.Now().UTC(),
		OrderID:    orderID,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
	})
}
