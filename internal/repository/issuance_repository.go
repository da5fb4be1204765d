package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
)

// ErrAlreadyApplied is returned by Insert when the row matching the
// intended (coupon_id) or (user_id, event_id) already exists — the
// durable writer's idempotence boundary (spec §4.5, §7: "PermanentDBError
// ... treated as success").
var ErrAlreadyApplied = errors.New("issuance: already applied")

// IssuancePoolInterface defines the database operations needed by
// IssuanceRepository.
type IssuancePoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IssuanceRepository provides data access for user_coupons using pgx.
type IssuanceRepository struct {
	pool IssuancePoolInterface
}

// NewIssuanceRepository creates a new IssuanceRepository.
func NewIssuanceRepository(pool *pgxpool.Pool) *IssuanceRepository {
	return &IssuanceRepository{pool: pool}
}

// NewIssuanceRepositoryWithPool creates an IssuanceRepository over a
// custom pool interface. Primarily used for testing.
func NewIssuanceRepositoryWithPool(pool IssuancePoolInterface) *IssuanceRepository {
	return &IssuanceRepository{pool: pool}
}

// Insert writes a durable issuance row. The schema's two unique
// constraints (coupon_id; user_id,event_id) are the idempotence
// authority: on a conflict matching the intended row, ErrAlreadyApplied
// is returned and the consumer commits its offset as normal (spec §4.5,
// invariant I2).
func (r *IssuanceRepository) Insert(ctx context.Context, ev *model.Issuance) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_coupons (coupon_id, user_id, event_id, issued_at)
		VALUES ($1, $2, $3, $4)`,
		ev.CouponID, ev.UserID, ev.EventID, ev.IssuedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("insert issuance: %w", err)
	}
	return nil
}

// CountByEvent returns the number of persisted issuance rows for an
// event, used by GetStatus (C6) and reconciliation (C7).
func (r *IssuanceRepository) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_coupons WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count issuances for %s: %w", eventID, err)
	}
	return count, nil
}

// ExistsByCoupon reports whether a row with the given coupon id exists.
func (r *IssuanceRepository) ExistsByCoupon(ctx context.Context, couponID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_coupons WHERE coupon_id = $1)`, couponID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by coupon %s: %w", couponID, err)
	}
	return exists, nil
}
