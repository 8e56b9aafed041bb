// Package sentinel runs the temperature watchdog. One daemon-side loop
// scans in-flight orders, compares the latest reading against the product's
// safe band, and force-rejects violating orders on the ledger. The status
// write is a compare-and-set, so a second watchdog pointed at the same
// ledger cannot double-reject an order.
package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmtofork/coldchain/internal/audit"
	"github.com/farmtofork/coldchain/internal/cache"
	"github.com/farmtofork/coldchain/internal/ledger"
	"github.com/farmtofork/coldchain/internal/lifecycle"
	"github.com/farmtofork/coldchain/internal/models"
	"github.com/farmtofork/coldchain/internal/notify"
)

// AlertSink delivers an alert out of band, typically by email.
type AlertSink interface {
	SendAlert(ctx context.Context, alert notify.Alert) error
}

// AlertQueue is the durable path for alerts.
type AlertQueue interface {
	EnqueueAlert(ctx context.Context, payload []byte) error
}

type Sentinel struct {
	orders   ledger.Orders
	products *cache.ProductCache
	center   *notify.Center
	queue    AlertQueue
	sink     AlertSink
	auditor  *audit.WorkerPool
	interval time.Duration
	logger   zerolog.Logger
}

func New(orders ledger.Orders, products *cache.ProductCache, center *notify.Center, queue AlertQueue, sink AlertSink, auditor *audit.WorkerPool, interval time.Duration, logger zerolog.Logger) *Sentinel {
	return &Sentinel{
		orders:   orders,
		products: products,
		center:   center,
		queue:    queue,
		sink:     sink,
		auditor:  auditor,
		interval: interval,
		logger:   logger.With().Str("component", "sentinel").Logger(),
	}
}

// Start runs the scan loop until the context is canceled. A failed tick is
// not retried in place; the next tick rescans everything, so transient
// ledger errors heal on their own.
func (s *Sentinel) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one full scan.
func (s *Sentinel) Tick(ctx context.Context) {
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing orders")
		return
	}
	for _, o := range orders {
		if !lifecycle.TempEvaluable(o.Status) || o.Temperature == nil {
			continue
		}
		p, err := s.products.Get(ctx, o.ProductID)
		if err != nil {
			s.logger.Error().Err(err).Int64("order_id", o.OrderID).Int64("product_id", o.ProductID).Msg("loading product band")
			continue
		}
		if p.TempInBand(*o.Temperature) {
			continue
		}
		s.reject(ctx, o, p)
	}
}

func (s *Sentinel) reject(ctx context.Context, o *models.Order, p *models.Product) {
	temp := *o.Temperature
	reason := fmt.Sprintf("Temperature %d°C outside safe range [%d°C, %d°C]", temp, p.MinTemp, p.MaxTemp)

	err := s.orders.UpdateOrderStatus(ctx, o.OrderID, o.Status, models.StatusRejectedUnsafeTemp, reason)
	if errors.Is(err, ledger.ErrStaleStatus) {
		// Another writer moved the order first. The next tick re-reads the
		// record; if it is still evaluable and out of band it gets rejected
		// then.
		s.logger.Debug().Int64("order_id", o.OrderID).Msg("status changed under us, skipping")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", o.OrderID).Msg("rejecting order, will retry next tick")
		return
	}

	s.logger.Warn().
		Int64("order_id", o.OrderID).
		Int("temperature", temp).
		Int("min_temp", p.MinTemp).
		Int("max_temp", p.MaxTemp).
		Msg("order rejected for unsafe temperature")

	if s.auditor != nil {
		s.auditor.Log(audit.Record{
			RecordedAt: time.Now().UTC(),
			OrderID:    o.OrderID,
			Actor:      string(models.RoleSentinel),
			FromStatus: o.Status,
			ToStatus:   models.StatusRejectedUnsafeTemp,
			Reason:     reason,
		})
	}
	s.alert(ctx, o, p, temp)
}

// alert raises the notification, queues the durable broker copy and fires
// the email. The notification center dedups by order, so a rejection that
// already alerted stays quiet.
func (s *Sentinel) alert(ctx context.Context, o *models.Order, p *models.Product, temp int) {
	raised, err := s.center.Raise(o.OrderID, notify.CategoryTemperature,
		fmt.Sprintf("Order %d rejected: temperature %d°C outside safe range", o.OrderID, temp))
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", o.OrderID).Msg("raising notification")
		return
	}
	if !raised {
		return
	}

	payload := notify.Alert{
		OrderID:     o.OrderID,
		Temperature: temp,
		MinTemp:     p.MinTemp,
		MaxTemp:     p.MaxTemp,
		Status:      string(models.StatusRejectedUnsafeTemp),
	}
	if s.queue != nil {
		if err := enqueue(ctx, s.queue, payload); err != nil {
			s.logger.Error().Err(err).Int64("order_id", o.OrderID).Msg("queueing alert")
		}
	}
	if s.sink != nil {
		if err := s.sink.SendAlert(ctx, payload); err != nil {
			s.logger.Error().Err(err).Int64("order_id", o.OrderID).Msg("sending alert email")
		}
	}
}

func enqueue(ctx context.Context, queue AlertQueue, alert notify.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return queue.EnqueueAlert(ctx, payload)
}
