package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/farmtofork/coldchain/internal/cache"
	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/lifecycle"
	"github.com/farmtofork/coldchain/internal/models"
	"github.com/farmtofork/coldchain/internal/service"
)

const (
	mfgAddr  = "0xmfg"
	retAddr  = "0xret"
	distAddr = "0xdist"
)

type env struct {
	svc       *service.OrderService
	store     *ledger.Memory
	productID int64
}

func setup(t *testing.T) *env {
	ctx := context.Background()
	store := ledger.NewMemory()

	assert.NoError(t, store.AddManufacturer(ctx, &models.Manufacturer{Addr: mfgAddr, Name: "Greenfield Dairy"}))
	assert.NoError(t, store.AddRetailer(ctx, &models.Retailer{Addr: retAddr, Name: "Corner Market"}))

	d := &models.Distributor{
		Addr:           distAddr,
		Name:           "Polar Freight",
		IsRefrigerated: true,
		IsAM:           true,
		IsPM:           true,
	}
	for i := range d.WorkingDays {
		d.WorkingDays[i] = true
	}
	assert.NoError(t, store.AddDistributor(ctx, d))

	productID, err := store.CreateProduct(ctx, &models.Product{
		Name:         "yogurt",
		Manufacturer: mfgAddr,
		Status:       models.ProductInStock,
		MinTemp:      2,
		MaxTemp:      6,
		Details: models.ProductDetails{
			Price:            50,
			TransportMode:    models.TransportRefrigerated,
			MinOrderQuantity: 5,
			MaxOrderQuantity: 100,
		},
	})
	assert.NoError(t, err)

	svc := service.NewOrderService(store, cache.NewProductCache(store), nil, nil, nil, zerolog.Nop())
	return &env{svc: svc, store: store, productID: productID}
}

func futureDate(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

func (e *env) placeOrder(t *testing.T) int64 {
	o, err := e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer:        retAddr,
		ProductID:       e.productID,
		Quantity:        10,
		DeliveryDate:    futureDate(3),
		DeliveryTime:    "AM",
		ShippingAddress: "12 Harbor Road",
	})
	assert.NoError(t, err)
	return o.OrderID
}

// advance drives the order along the happy path up to the given status.
func (e *env) advance(t *testing.T, id int64, upTo models.OrderStatus) {
	ctx := context.Background()
	steps := []struct {
		to    models.OrderStatus
		actor string
	}{
		{models.StatusAwaitingPayment, mfgAddr},
		{models.StatusPaid, retAddr},
		{models.StatusPreparingDispatch, mfgAddr},
	}
	for _, step := range steps {
		assert.NoError(t, e.svc.UpdateOrderStatus(ctx, id, step.actor, step.to))
		if step.to == upTo {
			return
		}
	}
	assert.NoError(t, e.svc.AssignDistributor(ctx, id, mfgAddr, distAddr))
	if upTo == models.StatusDispatched {
		return
	}
	rest := []struct {
		to    models.OrderStatus
		actor string
	}{
		{models.StatusAcceptedDistributor, distAddr},
		{models.StatusInTransit, distAddr},
		{models.StatusDelivered, distAddr},
	}
	for _, step := range rest {
		assert.NoError(t, e.svc.UpdateOrderStatus(ctx, id, step.actor, step.to))
		if step.to == upTo {
			return
		}
	}
}

func TestCreateOrder(t *testing.T) {
	e := setup(t)
	o, err := e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer:        retAddr,
		ProductID:       e.productID,
		Quantity:        10,
		DeliveryDate:    futureDate(3),
		DeliveryTime:    "AM",
		ShippingAddress: "12 Harbor Road",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAcceptance, o.Status)
	assert.Equal(t, mfgAddr, o.Manufacturer)
	assert.Equal(t, int64(500), o.Price) // 50 per unit x 10
	assert.Len(t, o.History, 1)
	assert.Empty(t, o.Distributor)
}

func TestCreateOrderQuantityBounds(t *testing.T) {
	e := setup(t)
	var vErr *service.ValidationError

	_, err := e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer: retAddr, ProductID: e.productID, Quantity: 3,
		DeliveryDate: futureDate(3), DeliveryTime: "AM", ShippingAddress: "a",
	})
	assert.ErrorAs(t, err, &vErr)

	_, err = e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer: retAddr, ProductID: e.productID, Quantity: 101,
		DeliveryDate: futureDate(3), DeliveryTime: "AM", ShippingAddress: "a",
	})
	assert.ErrorAs(t, err, &vErr)
}

func TestCreateOrderDateWindow(t *testing.T) {
	e := setup(t)
	var vErr *service.ValidationError

	_, err := e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer: retAddr, ProductID: e.productID, Quantity: 10,
		DeliveryDate: futureDate(-1), DeliveryTime: "AM", ShippingAddress: "a",
	})
	assert.ErrorAs(t, err, &vErr)

	_, err = e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer: retAddr, ProductID: e.productID, Quantity: 10,
		DeliveryDate: futureDate(400), DeliveryTime: "AM", ShippingAddress: "a",
	})
	assert.ErrorAs(t, err, &vErr)

	_, err = e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer: retAddr, ProductID: e.productID, Quantity: 10,
		DeliveryDate: "not-a-date", DeliveryTime: "AM", ShippingAddress: "a",
	})
	assert.ErrorAs(t, err, &vErr)
}

func TestCreateOrderSlotValidation(t *testing.T) {
	e := setup(t)
	var vErr *service.ValidationError
	_, err := e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer: retAddr, ProductID: e.productID, Quantity: 10,
		DeliveryDate: futureDate(3), DeliveryTime: "noon", ShippingAddress: "a",
	})
	assert.ErrorAs(t, err, &vErr)
}

func TestCreateOrderUnknownRetailer(t *testing.T) {
	e := setup(t)
	_, err := e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer: "0xnobody", ProductID: e.productID, Quantity: 10,
		DeliveryDate: futureDate(3), DeliveryTime: "AM", ShippingAddress: "a",
	})
	assert.ErrorIs(t, err, ledger.ErrParticipantNotFound)
}

func TestCreateOrderOutOfStock(t *testing.T) {
	e := setup(t)
	assert.NoError(t, e.svc.SetProductStatus(context.Background(), e.productID, models.ProductOutOfStock))

	var vErr *service.ValidationError
	_, err := e.svc.CreateOrder(context.Background(), service.CreateOrderInput{
		Retailer: retAddr, ProductID: e.productID, Quantity: 10,
		DeliveryDate: futureDate(3), DeliveryTime: "AM", ShippingAddress: "a",
	})
	assert.ErrorAs(t, err, &vErr)
}

func TestUpdateStatusActorGating(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)

	// The retailer cannot accept its own order.
	err := e.svc.UpdateOrderStatus(ctx, id, retAddr, models.StatusAwaitingPayment)
	assert.ErrorIs(t, err, lifecycle.ErrActorNotPermitted)

	assert.NoError(t, e.svc.UpdateOrderStatus(ctx, id, mfgAddr, models.StatusAwaitingPayment))

	got, err := e.svc.GetOrder(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPayment, got.Status)
}

func TestUpdateStatusStrangerForbidden(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)

	// A registered manufacturer that is not the order's manufacturer.
	assert.NoError(t, e.store.AddManufacturer(ctx, &models.Manufacturer{Addr: "0xother", Name: "Other"}))
	err := e.svc.UpdateOrderStatus(ctx, id, "0xother", models.StatusAwaitingPayment)
	assert.ErrorIs(t, err, lifecycle.ErrActorNotPermitted)
}

func TestRejectOrderDerivesStatusFromRole(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)

	assert.NoError(t, e.svc.RejectOrder(ctx, id, mfgAddr, "cannot fulfill this month"))

	got, err := e.svc.GetOrder(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusRejectedManufacturer, got.Status)
	assert.Equal(t, "cannot fulfill this month", got.RejectionReason)
}

func TestRejectOrderReasonLimits(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)
	var vErr *service.ValidationError

	err := e.svc.RejectOrder(ctx, id, mfgAddr, "")
	assert.ErrorAs(t, err, &vErr)

	err = e.svc.RejectOrder(ctx, id, mfgAddr, strings.Repeat("x", 201))
	assert.ErrorAs(t, err, &vErr)

	assert.NoError(t, e.svc.RejectOrder(ctx, id, mfgAddr, strings.Repeat("x", 200)))
}

func TestRejectOrderWrongState(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)
	e.advance(t, id, models.StatusPaid)

	// No manufacturer rejection edge out of Paid.
	err := e.svc.RejectOrder(ctx, id, mfgAddr, "too late")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidStatusTransition)
}

func TestAssignDistributor(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)
	e.advance(t, id, models.StatusPreparingDispatch)

	assert.NoError(t, e.svc.AssignDistributor(ctx, id, mfgAddr, distAddr))

	got, err := e.svc.GetOrder(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusDispatched, got.Status)
	assert.Equal(t, distAddr, got.Distributor)
}

func TestAssignIneligibleDistributor(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	// A frozen-only carrier cannot take a refrigerated product.
	frozen := &models.Distributor{Addr: "0xfrozen", Name: "Deep Freeze", IsFrozen: true, IsAM: true, IsPM: true}
	for i := range frozen.WorkingDays {
		frozen.WorkingDays[i] = true
	}
	assert.NoError(t, e.store.AddDistributor(ctx, frozen))

	id := e.placeOrder(t)
	e.advance(t, id, models.StatusPreparingDispatch)

	var vErr *service.ValidationError
	err := e.svc.AssignDistributor(ctx, id, mfgAddr, "0xfrozen")
	assert.ErrorAs(t, err, &vErr)
}

func TestAssignBeforePreparingFails(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)

	err := e.svc.AssignDistributor(ctx, id, mfgAddr, distAddr)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidStatusTransition)
}

func TestReassignAfterDistributorRejection(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)
	e.advance(t, id, models.StatusDispatched)

	assert.NoError(t, e.svc.RejectOrder(ctx, id, distAddr, "no trucks available"))

	second := &models.Distributor{Addr: "0xsecond", Name: "Backup Freight", IsRefrigerated: true, IsAM: true, IsPM: true}
	for i := range second.WorkingDays {
		second.WorkingDays[i] = true
	}
	assert.NoError(t, e.store.AddDistributor(ctx, second))

	assert.NoError(t, e.svc.AssignDistributor(ctx, id, mfgAddr, "0xsecond"))

	got, err := e.svc.GetOrder(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusDispatched, got.Status)
	assert.Equal(t, "0xsecond", got.Distributor)
}

func TestCancelOnlyWhilePreparing(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)

	err := e.svc.CancelOrder(ctx, id, retAddr)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidStatusTransition)

	e.advance(t, id, models.StatusPreparingDispatch)
	assert.NoError(t, e.svc.CancelOrder(ctx, id, retAddr))

	got, err := e.svc.GetOrder(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, got.Status)
}

func TestCancelRequiresRetailer(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)
	e.advance(t, id, models.StatusPreparingDispatch)

	err := e.svc.CancelOrder(ctx, id, mfgAddr)
	assert.ErrorIs(t, err, lifecycle.ErrActorNotPermitted)
}

func TestTrackOrderHistory(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)
	e.advance(t, id, models.StatusPaid)

	history, err := e.svc.TrackOrder(ctx, id)
	assert.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, models.StatusAwaitingAcceptance, history[0].Status)
	assert.Equal(t, models.StatusAwaitingPayment, history[1].Status)
	assert.Equal(t, models.StatusPaid, history[2].Status)
}

func TestListOrdersForActor(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.placeOrder(t)
	e.placeOrder(t)

	orders, err := e.svc.ListOrdersFor(ctx, retAddr)
	assert.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = e.svc.ListOrdersFor(ctx, mfgAddr)
	assert.NoError(t, err)
	assert.Len(t, orders, 2)

	// The distributor has nothing assigned yet.
	orders, err = e.svc.ListOrdersFor(ctx, distAddr)
	assert.NoError(t, err)
	assert.Empty(t, orders)
}

func TestEligibleDistributorsQuery(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	id := e.placeOrder(t)

	eligible, err := e.svc.EligibleDistributors(ctx, id)
	assert.NoError(t, err)
	assert.Len(t, eligible, 1)
	assert.Equal(t, distAddr, eligible[0].Addr)
}
