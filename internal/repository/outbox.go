package repository

import (
	"context"
	"database/sql"
	"time"
)

type AlertTaskStatus string

const (
	AlertTaskStatusCreated        AlertTaskStatus = "CREATED"
	AlertTaskStatusProcessing     AlertTaskStatus = "PROCESSING"
	AlertTaskStatusFailed         AlertTaskStatus = "FAILED"
	AlertTaskStatusNoAttemptsLeft AlertTaskStatus = "NO_ATTEMPTS_LEFT"
)

// AlertTask is one queued alert payload waiting to be published to the
// broker. Alerts are written to this table in the same transaction scope as
// the rejection that triggered them, so a crash between the two cannot lose
// the alert.
type AlertTask struct {
	ID            int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Payload       []byte
	Status        AlertTaskStatus
	AttemptCount  int
	NextAttemptAt sql.NullTime
}

type AlertOutbox interface {
	EnqueueAlert(ctx context.Context, payload []byte) error
	GetPendingAlerts(ctx context.Context, limit int) ([]*AlertTask, error)
	MarkAlertProcessing(ctx context.Context, taskID int) error
	DeleteAlert(ctx context.Context, taskID int) error
	UpdateAlertFailure(ctx context.Context, taskID int, attemptCount int, newStatus AlertTaskStatus, nextAttemptAt time.Time) error
}

type PostgresAlertOutbox struct {
	db *sql.DB
}

func NewPostgresAlertOutbox(db *sql.DB) *PostgresAlertOutbox {
	return &PostgresAlertOutbox{db: db}
}

func (r *PostgresAlertOutbox) EnqueueAlert(ctx context.Context, payload []byte) error {
	query := `
		INSERT INTO alert_outbox (created_at, updated_at, payload, status, attempt_count)
		VALUES (NOW(), NOW(), $1, $2, 0)
	`
	_, err := r.db.ExecContext(ctx, query, payload, AlertTaskStatusCreated)
	return err
}

func (r *PostgresAlertOutbox) GetPendingAlerts(ctx context.Context, limit int) ([]*AlertTask, error) {
	query := `
		SELECT id, created_at, updated_at, payload, status, attempt_count, next_attempt_at
		FROM alert_outbox
		WHERE status IN ($1, $2)
		  AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
		  AND attempt_count < 3
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, AlertTaskStatusCreated, AlertTaskStatusFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []*AlertTask
	for rows.Next() {
		t := &AlertTask{}
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt,
			&t.Payload, &t.Status,
			&t.AttemptCount, &t.NextAttemptAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *PostgresAlertOutbox) MarkAlertProcessing(ctx context.Context, taskID int) error {
	query := `
		UPDATE alert_outbox SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, AlertTaskStatusProcessing, taskID)
	return err
}

func (r *PostgresAlertOutbox) DeleteAlert(ctx context.Context, taskID int) error {
	query := `DELETE FROM alert_outbox WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, taskID)
	return err
}

func (r *PostgresAlertOutbox) UpdateAlertFailure(ctx context.Context, taskID int, attemptCount int, newStatus AlertTaskStatus, nextAttemptAt time.Time) error {
	query := `
		UPDATE alert_outbox
		SET status = $1, attempt_count = $2, updated_at = NOW(), next_attempt_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, newStatus, attemptCount, nextAttemptAt, taskID)
	return err
}
