package feed

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/models"
)

func seed(t *testing.T, store *ledger.Memory, status models.OrderStatus) int64 {
	id, err := store.CreateOrder(context.Background(), &models.Order{
		Retailer:  "0xret",
		ProductID: 1,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	})
	assert.NoError(t, err)
	return id
}

func TestTargetedReading(t *testing.T) {
	store := ledger.NewMemory()
	id := seed(t, store, models.StatusInTransit)
	h := NewHandler(store, zerolog.Nop())

	h.handle(context.Background(), []byte(`{"orderId":`+strconv.FormatInt(id, 10)+`,"temperature":-3}`))

	got, err := store.GetOrderByID(context.Background(), id)
	assert.NoError(t, err)
	assert.NotNil(t, got.Temperature)
	assert.Equal(t, -3, *got.Temperature)
	assert.Equal(t, models.StatusInTransit, got.Status)
}

func TestBroadcastReadingHitsEvaluableOrders(t *testing.T) {
	store := ledger.NewMemory()
	inTransit := seed(t, store, models.StatusInTransit)
	delivered := seed(t, store, models.StatusDelivered)
	waiting := seed(t, store, models.StatusAwaitingAcceptance)
	h := NewHandler(store, zerolog.Nop())

	h.handle(context.Background(), []byte(`{"temperature":12}`))

	for _, id := range []int64{inTransit, delivered} {
		got, err := store.GetOrderByID(context.Background(), id)
		assert.NoError(t, err)
		assert.NotNil(t, got.Temperature)
		assert.Equal(t, 12, *got.Temperature)
	}

	got, err := store.GetOrderByID(context.Background(), waiting)
	assert.NoError(t, err)
	assert.Nil(t, got.Temperature)
}

func TestMalformedReadingDropped(t *testing.T) {
	store := ledger.NewMemory()
	id := seed(t, store, models.StatusInTransit)
	h := NewHandler(store, zerolog.Nop())

	h.handle(context.Background(), []byte(`not json`))

	got, err := store.GetOrderByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, got.Temperature)
}

func TestReadingForUnknownOrderIgnored(t *testing.T) {
	store := ledger.NewMemory()
	h := NewHandler(store, zerolog.Nop())

	// Must not panic or error out of the claim loop.
	h.handle(context.Background(), []byte(`{"orderId":999,"temperature":5}`))
}
