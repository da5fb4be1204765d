// Package reconcile implements the out-of-band cross-check between the
// in-memory decision store and the persistent store (C7, spec §4.7).
// Reconciliation never mutates state; it only reports.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Classification is the operator-facing category of a discrepancy
// between the in-memory participant count and the persisted issuance
// count for an event.
type Classification string

const (
	// ClassLag means the consumer is behind but shrinking the gap; purely
	// informational.
	ClassLag Classification = "lag"
	// ClassGap means the gap is stable and the event has ended: dead
	// lettered or lost events, requires operator triage.
	ClassGap Classification = "gap"
	// ClassOvershoot means more rows are persisted than the store ever
	// admitted: a violation of I1/I3 that pages immediately.
	ClassOvershoot Classification = "overshoot"
	// ClassOK means store and database agree exactly (db == store); any
	// db < store is classified as Lag or Gap instead.
	ClassOK Classification = "ok"
)

// EventRepository is the subset of C6's metadata access C7 needs: the
// set of active events to sweep and whether each has ended.
type EventRepository interface {
	ActiveEventIDs(ctx context.Context) ([]string, error)
	HasEnded(ctx context.Context, eventID string) (bool, error)
}

// StoreCounter is the subset of C2 the job needs: the live participant
// count for an event.
type StoreCounter interface {
	ParticipantsCount(ctx context.Context, eventID string) (int64, error)
}

// IssuanceCounter is the subset of C5's persistence the job needs: the
// persisted issuance count for an event.
type IssuanceCounter interface {
	CountByEvent(ctx context.Context, eventID string) (int, error)
}

// Report is one event's reconciliation outcome.
type Report struct {
	EventID             string
	ParticipantsInStore int64
	IssuancesInDB       int
	Classification      Classification
}

// previousGap tracks, per event, the last observed (db < store) gap so
// a shrinking gap can be told apart from a stable one across ticks.
type previousGap struct {
	size int64
	seen time.Time
}

// Job runs the reconciliation sweep on a schedule.
type Job struct {
	events    EventRepository
	store     StoreCounter
	issuances IssuanceCounter
	interval  time.Duration

	history map[string]previousGap
}

// NewJob creates a new reconciliation Job.
func NewJob(events EventRepository, store StoreCounter, issuances IssuanceCounter, interval time.Duration) *Job {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Job{
		events:    events,
		store:     store,
		issuances: issuances,
		interval:  interval,
		history:   make(map[string]previousGap),
	}
}

// Run ticks the reconciliation sweep until ctx is canceled.
func (j *Job) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// SweepOnce runs a single sweep immediately, returning every event's
// report. Exposed for tests and for operator-triggered ad-hoc checks.
func (j *Job) SweepOnce(ctx context.Context) []Report {
	return j.sweep(ctx)
}

func (j *Job) sweep(ctx context.Context) []Report {
	ids, err := j.events.ActiveEventIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reconcile: failed to list active events")
		return nil
	}

	reports := make([]Report, 0, len(ids))
	for _, id := range ids {
		r := j.reconcileOne(ctx, id)
		reports = append(reports, r)
		j.logReport(r)
	}
	return reports
}

func (j *Job) reconcileOne(ctx context.Context, eventID string) Report {
	participants, err := j.store.ParticipantsCount(ctx, eventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("reconcile: failed to read participant count")
		return Report{EventID: eventID}
	}

	issued, err := j.issuances.CountByEvent(ctx, eventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("reconcile: failed to count issuances")
		return Report{EventID: eventID}
	}

	r := Report{EventID: eventID}
	return r.classify(j, ctx, eventID, int64(issued), participants)
}

func (r Report) classify(j *Job, ctx context.Context, eventID string, issued, participants int64) Report {
	r.IssuancesInDB = int(issued)
	r.ParticipantsInStore = participants

	switch {
	case issued > participants:
		r.Classification = ClassOvershoot
	case issued == participants:
		delete(j.history, eventID)
		r.Classification = ClassOK
	default:
		gap := participants - issued
		ended, err := j.events.HasEnded(ctx, eventID)
		if err != nil {
			log.Error().Err(err).Str("event_id", eventID).Msg("reconcile: failed to check event end time")
		}

		prev, tracked := j.history[eventID]
		shrinking := tracked && gap < prev.size
		j.history[eventID] = previousGap{size: gap, seen: time.Now()}

		switch {
		case ended && !shrinking:
			r.Classification = ClassGap
		default:
			r.Classification = ClassLag
		}
	}
	return r
}

func (j *Job) logReport(r Report) {
	ev := log.With().
		Str("event_id", r.EventID).
		Int64("participants_in_store", r.ParticipantsInStore).
		Int("issuances_in_db", r.IssuancesInDB).
		Str("classification", string(r.Classification)).
		Logger()

	switch r.Classification {
	case ClassOvershoot:
		ev.Error().Msg("reconcile: overshoot detected — I1/I3 violation, page immediately")
	case ClassGap:
		ev.Warn().Msg("reconcile: stable gap after event end — dead-lettered or lost events, needs operator triage")
	case ClassLag:
		ev.Info().Msg("reconcile: lag observed, informational")
	default:
		ev.Debug().Msg("reconcile: in sync")
	}
}
