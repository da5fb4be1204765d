package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
)

// EventRepositoryInterface defines the interface for event metadata
// access (C6).
type EventRepositoryInterface interface {
	Insert(ctx context.Context, ev *model.Event) error
	GetByID(ctx context.Context, eventID string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	UpdateRemainingStock(ctx context.Context, eventID string, remaining int) error
	Deactivate(ctx context.Context, eventID string) error
}

// IssuanceCounterInterface defines the subset of issuance persistence
// that GetStatus needs: the persisted count (third field of C6's status
// tuple).
type IssuanceCounterInterface interface {
	CountByEvent(ctx context.Context, eventID string) (int, error)
}

// EventStoreInterface defines the subset of C2 that the admin surface
// needs: stock seeding and the two in-memory counters.
type EventStoreInterface interface {
	InitEvent(ctx context.Context, eventID string, total int, ttl time.Duration) error
	Remaining(ctx context.Context, eventID string) (int, error)
	ParticipantsCount(ctx context.Context, eventID string) (int64, error)
}

// EventService implements the event lifecycle operations of the admin
// surface (C6): create, initialize stock, query status, deactivate.
type EventService struct {
	events    EventRepositoryInterface
	issuances IssuanceCounterInterface
	store     EventStoreInterface
	// participantTTL is the horizon the participant set's TTL is
	// refreshed to on every PASS; it must outlive an event's end time
	// plus the maximum expected consumer lag (spec §9 "TTL coupling").
	participantTTL time.Duration
}

// NewEventService creates a new EventService.
func NewEventService(events EventRepositoryInterface, issuances IssuanceCounterInterface, store EventStoreInterface, participantTTL time.Duration) *EventService {
	return &EventService{events: events, issuances: issuances, store: store, participantTTL: participantTTL}
}

// CreateEvent creates a new event's metadata row. It does not seed
// stock; that is a separate, explicit step (InitializeStock), matching
// spec §4.6's "no auto-seeding" discipline.
func (s *EventService) CreateEvent(ctx context.Context, req *model.CreateEventRequest) error {
	if req == nil {
		return ErrInvalidRequest
	}
	ev := &model.Event{
		EventID:     req.EventID,
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsActive:    true,
	}
	return s.events.Insert(ctx, ev)
}

// InitializeStock seeds the in-memory stock key and writes total into the
// event row's advisory remaining_stock mirror in a single logical action.
// The row's total_stock column is not updated. Both halves are safe to
// re-run: store.InitEvent uses SETNX so the in-memory counter is only
// seeded once (R2), and the mirror is simply rewritten to total.
func (s *EventService) InitializeStock(ctx context.Context, eventID string, total int) error {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return ErrEventNotFound
	}

	ttl := s.participantTTL
	if ttl <= 0 {
		ttl = time.Until(ev.EndTime) + 24*time.Hour
	}

	if err := s.store.InitEvent(ctx, eventID, total, ttl); err != nil {
		return fmt.Errorf("init event in store: %w", err)
	}

	if err := s.events.UpdateRemainingStock(ctx, eventID, total); err != nil {
		return fmt.Errorf("update remaining stock mirror: %w", err)
	}

	return nil
}

// GetStatus returns the event's live status: remaining stock and
// participant count from the in-memory store (first authority), and
// total persisted issuances from the database (second authority), per
// spec §4.6.
func (s *EventService) GetStatus(ctx context.Context, eventID string) (*model.EventStatus, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}

	remaining, err := s.store.Remaining(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	participants, err := s.store.ParticipantsCount(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	issued, err := s.issuances.CountByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("count issuances: %w", err)
	}

	return &model.EventStatus{
		RemainingStock:    remaining,
		TotalParticipants: int(participants),
		TotalIssued:       issued,
	}, nil
}

// DeactivateEvent marks an event inactive (spec §3 lifecycle:
// "terminated by ... admin deactivation").
func (s *EventService) DeactivateEvent(ctx context.Context, eventID string) error {
	err := s.events.Deactivate(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("deactivate event: %w", err)
	}
	return nil
}

// ListEvents returns every event's metadata, used by the operator
// listing endpoint supplementing C6 (spec §4.6 names create/init/status;
// list and single-event read round out CRUD completeness).
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event's metadata, or ErrEventNotFound.
func (s *EventService) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	return ev, nil
}
