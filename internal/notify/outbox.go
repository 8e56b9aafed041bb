package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmtofork/coldchain/internal/repository"
)

// Publisher is the broker side of the alert pipeline.
type Publisher interface {
	Publish(topic string, message []byte) error
}

// OutboxProcessor drains queued alerts to the broker. Failed publishes are
// retried with a delay until the attempt budget runs out.
type OutboxProcessor struct {
	outbox       repository.AlertOutbox
	producer     Publisher
	topic        string
	pollInterval time.Duration
	limit        int
	maxAttempts  int
	retryDelay   time.Duration
	logger       zerolog.Logger
}

func NewOutboxProcessor(outbox repository.AlertOutbox, producer Publisher, topic string, pollInterval time.Duration, limit int, logger zerolog.Logger) *OutboxProcessor {
	return &OutboxProcessor{
		outbox:       outbox,
		producer:     producer,
		topic:        topic,
		pollInterval: pollInterval,
		limit:        limit,
		maxAttempts:  3,
		retryDelay:   2 * time.Second,
		logger:       logger.With().Str("component", "alert_outbox").Logger(),
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessPending(ctx)
		}
	}
}

// ProcessPending drains one batch of pending alerts.
func (p *OutboxProcessor) ProcessPending(ctx context.Context) {
	tasks, err := p.outbox.GetPendingAlerts(ctx, p.limit)
	if err != nil {
		p.logger.Error().Err(err).Msg("fetching pending alerts")
		return
	}
	for _, task := range tasks {
		if err := p.outbox.MarkAlertProcessing(ctx, task.ID); err != nil {
			p.logger.Error().Err(err).Int("task_id", task.ID).Msg("marking alert processing")
			continue
		}
		if err := p.producer.Publish(p.topic, task.Payload); err != nil {
			p.fail(ctx, task, err)
			continue
		}
		p.logger.Info().Int("task_id", task.ID).Msg("alert published")
		if err := p.outbox.DeleteAlert(ctx, task.ID); err != nil {
			p.logger.Error().Err(err).Int("task_id", task.ID).Msg("deleting alert after publish")
		}
	}
}

func (p *OutboxProcessor) fail(ctx context.Context, task *repository.AlertTask, pubErr error) {
	newAttempt := task.AttemptCount + 1
	newStatus := repository.AlertTaskStatusFailed
	if newAttempt >= p.maxAttempts {
		newStatus = repository.AlertTaskStatusNoAttemptsLeft
	}
	nextAttempt := time.Now().Add(p.retryDelay)
	if err := p.outbox.UpdateAlertFailure(ctx, task.ID, newAttempt, newStatus, nextAttempt); err != nil {
		p.logger.Error().Err(err).Int("task_id", task.ID).Msg("updating alert on failure")
	}
	p.logger.Warn().Err(pubErr).Int("task_id", task.ID).Int("attempt", newAttempt).Msg("failed to publish alert")
}
