// Package audit records every order transition off the hot path. Records go
// through a buffered channel into batching workers; a full channel drops the
// record rather than blocking a transition.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmtofork/coldchain/internal/models"
)

type Record struct {
	RecordedAt time.Time
	OrderID    int64
	Actor      string
	FromStatus models.OrderStatus
	ToStatus   models.OrderStatus
	Reason     string
}

type PoolConfig struct {
	BatchSize   int
	Timeout     time.Duration
	ChannelSize int
	NumWorkers  int
}

type Processor interface {
	Process(batch []Record) error
}

// DBProcessor writes batches to the audit_logs table with one multi-row
// insert per batch.
type DBProcessor struct {
	db *sql.DB
}

func NewDBProcessor(db *sql.DB) *DBProcessor {
	return &DBProcessor{db: db}
}

func (p *DBProcessor) Process(batch []Record) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO audit_logs (recorded_at, order_id, actor, from_status, to_status, reason) VALUES `)

	params := []interface{}{}
	paramIndex := 1
	for i, rec := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			paramIndex, paramIndex+1, paramIndex+2, paramIndex+3, paramIndex+4, paramIndex+5))
		paramIndex += 6
		params = append(params, rec.RecordedAt, rec.OrderID, rec.Actor, rec.FromStatus, rec.ToStatus, rec.Reason)
	}
	if _, err := p.db.Exec(sb.String(), params...); err != nil {
		return fmt.Errorf("insert audit batch: %w", err)
	}
	return nil
}

// LogProcessor mirrors every batch to the structured log.
type LogProcessor struct {
	logger zerolog.Logger
}

func NewLogProcessor(logger zerolog.Logger) *LogProcessor {
	return &LogProcessor{logger: logger.With().Str("component", "audit").Logger()}
}

func (p *LogProcessor) Process(batch []Record) error {
	for _, rec := range batch {
		p.logger.Info().
			Int64("order_id", rec.OrderID).
			Str("actor", rec.Actor).
			Str("from", string(rec.FromStatus)).
			Str("to", string(rec.ToStatus)).
			Str("reason", rec.Reason).
			Time("recorded_at", rec.RecordedAt).
			Msg("order transition")
	}
	return nil
}

type WorkerPool struct {
	inputCh    chan Record
	processors []Processor
	batchSize  int
	timeout    time.Duration
	logger     zerolog.Logger

	wg sync.WaitGroup
}

func NewWorkerPool(cfg PoolConfig, logger zerolog.Logger, processors ...Processor) *WorkerPool {
	return &WorkerPool{
		inputCh:    make(chan Record, cfg.ChannelSize),
		processors: processors,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		logger:     logger.With().Str("component", "audit_pool").Logger(),
	}
}

func (p *WorkerPool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
}

func (p *WorkerPool) worker(ctx context.Context) {
	var batch []Record
	timer := time.NewTimer(p.timeout)
	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				p.processBatch(batch)
			}
			return
		case rec := <-p.inputCh:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				if !timer.Stop() {
					<-timer.C
				}
				p.processBatch(batch)
				batch = nil
				timer.Reset(p.timeout)
			}
		case <-timer.C:
			if len(batch) > 0 {
				p.processBatch(batch)
				batch = nil
			}
			timer.Reset(p.timeout)
		}
	}
}

func (p *WorkerPool) processBatch(batch []Record) {
	for _, proc := range p.processors {
		if err := proc.Process(batch); err != nil {
			p.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("processing audit batch")
		}
	}
}

// Log enqueues a record. It never blocks; a full channel drops the record.
func (p *WorkerPool) Log(record Record) {
	select {
	case p.inputCh <- record:
	default:
		p.logger.Warn().Int64("order_id", record.OrderID).Msg("audit channel full, dropping record")
	}
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
