// Package feed ingests temperature readings from the broker and writes them
// onto orders. The feed only records readings; deciding whether a reading
// violates the safe band is the sentinel's job.
package feed

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/lifecycle"
)

// Reading is one sensor message. A zero OrderID marks a broadcast reading
// from a shared carrier sensor: it applies to every order currently in an
// evaluable status.
type Reading struct {
	OrderID     int64 `json:"orderId"`
	Temperature int   `json:"temperature"`
}

type Handler struct {
	orders ledger.Orders
	logger zerolog.Logger
}

func NewHandler(orders ledger.Orders, logger zerolog.Logger) *Handler {
	return &Handler{
		orders: orders,
		logger: logger.With().Str("component", "temperature_feed").Logger(),
	}
}

func (h *Handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *Handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *Handler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.handle(session.Context(), msg.Value)
		session.MarkMessage(msg, "")
	}
	return nil
}

// handle applies one reading. Malformed messages and missing orders are
// logged and acked; re-delivering them cannot help.
func (h *Handler) handle(ctx context.Context, value []byte) {
	var r Reading
	if err := json.Unmarshal(value, &r); err != nil {
		h.logger.Warn().Err(err).Msg("dropping malformed reading")
		return
	}
	if r.OrderID != 0 {
		h.apply(ctx, r.OrderID, r.Temperature)
		return
	}

	orders, err := h.orders.ListOrders(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("listing orders for broadcast reading")
		return
	}
	for _, o := range orders {
		if !lifecycle.TempEvaluable(o.Status) {
			continue
		}
		h.apply(ctx, o.OrderID, r.Temperature)
	}
}

func (h *Handler) apply(ctx context.Context, orderID int64, temperature int) {
	err := h.orders.UpdateOrderTemperature(ctx, orderID, temperature)
	if errors.Is(err, ledger.ErrOrderNotFound) {
		h.logger.Warn().Int64("order_id", orderID).Msg("reading for unknown order")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("order_id", orderID).Msg("recording temperature")
		return
	}
	h.logger.Debug().Int64("order_id", orderID).Int("temperature", temperature).Msg("temperature recorded")
}

// StartConsumer joins the consumer group and feeds readings to the handler
// until the context is canceled.
func StartConsumer(ctx context.Context, brokers []string, groupID, topic string, orders ledger.Orders, logger zerolog.Logger) error {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return err
	}
	defer group.Close()

	handler := NewHandler(orders, logger)
	for {
		if err := group.Consume(ctx, []string{topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			logger.Error().Err(err).Msg("consumer group error")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
