package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
	"github.com/fairyhunter13/scalable-coupon-system/internal/service"
)

// EventPoolInterface defines the database operations needed by
// EventRepository. This allows for easier testing with mocks.
type EventPoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// EventRepository provides data access for coupon_events using pgx.
type EventRepository struct {
	pool EventPoolInterface
}

// NewEventRepository creates a new EventRepository with the given pool.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// NewEventRepositoryWithPool creates an EventRepository over a custom
// pool interface. Primarily used for testing.
func NewEventRepositoryWithPool(pool EventPoolInterface) *EventRepository {
	return &EventRepository{pool: pool}
}

// Insert inserts a new event row. Returns service.ErrEventExists if an
// event with the same id already exists.
func (r *EventRepository) Insert(ctx context.Context, ev *model.Event) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO coupon_events
			(event_id, event_name, description, total_stock, remaining_stock, start_time, end_time, is_active)
		VALUES ($1, $2, $3, $4, $4, $5, $6, true)`,
		ev.EventID, ev.Name, ev.Description, ev.TotalStock, ev.StartTime, ev.EndTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrEventExists
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its id. Returns nil, nil if not found.
func (r *EventRepository) GetByID(ctx context.Context, eventID string) (*model.Event, error) {
	query := `SELECT event_id, event_name, description, total_stock, remaining_stock,
			start_time, end_time, is_active, created_at, updated_at
		FROM coupon_events WHERE event_id = $1`

	var ev model.Event
	err := r.pool.QueryRow(ctx, query, eventID).Scan(
		&ev.EventID, &ev.Name, &ev.Description, &ev.TotalStock, &ev.RemainingStock,
		&ev.StartTime, &ev.EndTime, &ev.IsActive, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return &ev, nil
}

// List returns every event, ordered by creation time.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT event_id, event_name, description, total_stock,
			remaining_stock, start_time, end_time, is_active, created_at, updated_at
		FROM coupon_events ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.EventID, &ev.Name, &ev.Description, &ev.TotalStock,
			&ev.RemainingStock, &ev.StartTime, &ev.EndTime, &ev.IsActive,
			&ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// UpdateRemainingStock writes the advisory remaining_stock mirror
// (spec §9 open question: the in-memory store remains sole authority).
func (r *EventRepository) UpdateRemainingStock(ctx context.Context, eventID string, remaining int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE coupon_events SET remaining_stock = $2, updated_at = now() WHERE event_id = $1`,
		eventID, remaining)
	if err != nil {
		return fmt.Errorf("update remaining stock for %s: %w", eventID, err)
	}
	return nil
}

// Deactivate marks an event inactive.
func (r *EventRepository) Deactivate(ctx context.Context, eventID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupon_events SET is_active = false, updated_at = now() WHERE event_id = $1`,
		eventID)
	if err != nil {
		return fmt.Errorf("deactivate event %s: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrEventNotFound
	}
	return nil
}

// HasEnded reports whether the event's end_time has passed, used by the
// reconciliation job (C7) to distinguish a transient Lag from a stable
// Gap after the event is over.
func (r *EventRepository) HasEnded(ctx context.Context, eventID string) (bool, error) {
	ev, err := r.GetByID(ctx, eventID)
	if err != nil {
		return false, err
	}
	if ev == nil {
		return false, service.ErrEventNotFound
	}
	return !ev.EndTime.IsZero() && ev.EndTime.Before(time.Now()), nil
}

// ActiveEventIDs returns the ids of all events currently flagged active,
// used by the reconciliation job (C7) to scope its sweep.
func (r *EventRepository) ActiveEventIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT event_id FROM coupon_events WHERE is_active = true`)
	if err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
