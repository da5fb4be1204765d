package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
)

// DeadLetterPoolInterface defines the database operations needed by
// DeadLetterRepository.
type DeadLetterPoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DeadLetterRepository persists log records the consumer could not
// apply after exhausting its retry budget (spec §4.5, §7 supplement:
// "Dead-letter table").
type DeadLetterRepository struct {
	pool DeadLetterPoolInterface
}

// NewDeadLetterRepository creates a new DeadLetterRepository.
func NewDeadLetterRepository(pool *pgxpool.Pool) *DeadLetterRepository {
	return &DeadLetterRepository{pool: pool}
}

// NewDeadLetterRepositoryWithPool creates a DeadLetterRepository over a
// custom pool interface. Primarily used for testing.
func NewDeadLetterRepositoryWithPool(pool DeadLetterPoolInterface) *DeadLetterRepository {
	return &DeadLetterRepository{pool: pool}
}

// Insert records a dead-lettered issuance event with its original key
// and failure cause.
func (r *DeadLetterRepository) Insert(ctx context.Context, dl *model.DeadLetter) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO dead_letters (event_id, user_id, coupon_id, payload, failure_cause, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		dl.EventID, dl.UserID, dl.CouponID, dl.Payload, dl.FailureCause, dl.FailedAt)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// ListByEvent returns every dead-lettered record for an event, most
// recent first, so an operator can triage a reconciliation Gap (C7).
func (r *DeadLetterRepository) ListByEvent(ctx context.Context, eventID string) ([]model.DeadLetter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, event_id, user_id, coupon_id, payload, failure_cause, failed_at
		FROM dead_letters WHERE event_id = $1 ORDER BY failed_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list dead letters for %s: %w", eventID, err)
	}
	defer rows.Close()

	var out []model.DeadLetter
	for rows.Next() {
		var dl model.DeadLetter
		if err := rows.Scan(&dl.ID, &dl.EventID, &dl.UserID, &dl.CouponID,
			&dl.Payload, &dl.FailureCause, &dl.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	if out == nil {
		out = []model.DeadLetter{}
	}
	return out, nil
}
