// Package consumer implements the durable writer (C5): an idempotent
// consumer of the event log that persists one Issuance row per event,
// with bounded retry and dead-letter on exhaustion (spec §4.5).
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/scalable-coupon-system/internal/eventlog"
	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
	"github.com/fairyhunter13/scalable-coupon-system/internal/repository"
)

// IssuanceWriter is the subset of persistence the consumer needs: insert
// an issuance row, relying on the schema's unique constraints for
// idempotence.
type IssuanceWriter interface {
	Insert(ctx context.Context, ev *model.Issuance) error
}

// DeadLetterWriter records records the consumer could not apply after
// exhausting its retry budget.
type DeadLetterWriter interface {
	Insert(ctx context.Context, dl *model.DeadLetter) error
}

// RetryPolicy configures the per-message bounded exponential backoff
// (spec §4.5: "5 attempts, base 1s, cap 30s").
type RetryPolicy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the spec's recommended defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Worker polls one or more partitions of the event log and persists each
// IssuanceEvent durably. The consumer never blocks a partition
// indefinitely on a single poison record: retry exhaustion routes the
// record to the dead letter destination and the offset is still
// committed.
type Worker struct {
	client     *kgo.Client
	issuances  IssuanceWriter
	deadLetter DeadLetterWriter
	retry      RetryPolicy
}

// NewWorker creates a new Worker consuming topic via a consumer group.
func NewWorker(brokers []string, topic, group string, issuances IssuanceWriter, deadLetter DeadLetterWriter, retry RetryPolicy) (*Worker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("consumer: no brokers configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
			log.Info().Interface("assigned", assigned).Msg("consumer: partitions assigned")
		}),
		kgo.OnPartitionsRevoked(func(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
			log.Info().Interface("revoked", revoked).Msg("consumer: partitions revoked")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("consumer: new client: %w", err)
	}

	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}

	return &Worker{client: client, issuances: issuances, deadLetter: deadLetter, retry: retry}, nil
}

// Close releases the underlying Kafka client.
func (w *Worker) Close() {
	w.client.Close()
}

// Run polls the event log until ctx is canceled, processing each batch
// in partition order (spec §4.5: "within a partition, events are applied
// in order; across partitions, no ordering").
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fetches := w.client.PollFetches(ctx)
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				log.Error().Err(e.Err).Str("topic", e.Topic).Int32("partition", e.Partition).
					Msg("consumer: fetch error")
			}
		}

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			for _, rec := range p.Records {
				w.processRecord(ctx, rec)
			}
		})

		if err := w.client.CommitUncommittedOffsets(ctx); err != nil {
			log.Error().Err(err).Msg("consumer: commit offsets failed")
		}
	}
}

// processRecord applies retry-with-backoff around the DB insert and
// dead-letters on exhaustion. It never returns an error: the partition
// keeps moving regardless of a single record's fate.
func (w *Worker) processRecord(ctx context.Context, rec *kgo.Record) {
	var ev eventlog.IssuanceEvent
	if err := json.Unmarshal(rec.Value, &ev); err != nil {
		w.sendToDeadLetter(ctx, rec, fmt.Sprintf("unmarshal: %v", err))
		return
	}
	if err := ev.Validate(); err != nil {
		w.sendToDeadLetter(ctx, rec, err.Error())
		return
	}

	// MaxAttempts counts the first try, so the backoff allows one fewer retry.
	var maxRetries uint64
	if w.retry.MaxAttempts > 0 {
		maxRetries = w.retry.MaxAttempts - 1
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(w.retry.BaseDelay),
		backoff.WithMaxInterval(w.retry.MaxDelay),
	), maxRetries)

	err := backoff.Retry(func() error {
		insertErr := w.issuances.Insert(ctx, &model.Issuance{
			CouponID: ev.CouponID,
			UserID:   ev.UserID,
			EventID:  ev.EventID,
			IssuedAt: ev.IssuedAt,
		})
		if insertErr == nil {
			return nil
		}
		if errors.Is(insertErr, repository.ErrAlreadyApplied) {
			// Idempotent: already applied by a prior delivery (R1).
			return nil
		}
		return insertErr
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		log.Error().
			Err(err).
			Str("event_id", ev.EventID).
			Str("user_id", ev.UserID).
			Str("coupon_id", ev.CouponID).
			Msg("consumer: retry budget exhausted, dead-lettering")
		w.sendToDeadLetter(ctx, rec, err.Error())
		return
	}

	log.Debug().
		Str("event_id", ev.EventID).
		Str("user_id", ev.UserID).
		Str("coupon_id", ev.CouponID).
		Msg("consumer: issuance persisted")
}

func (w *Worker) sendToDeadLetter(ctx context.Context, rec *kgo.Record, cause string) {
	var eventID, userID, couponID string
	var ev eventlog.IssuanceEvent
	if json.Unmarshal(rec.Value, &ev) == nil {
		eventID, userID, couponID = ev.EventID, ev.UserID, ev.CouponID
	}

	if err := w.deadLetter.Insert(ctx, &model.DeadLetter{
		EventID:      eventID,
		UserID:       userID,
		CouponID:     couponID,
		Payload:      rec.Value,
		FailureCause: cause,
		FailedAt:     time.Now(),
	}); err != nil {
		log.Error().Err(err).Str("cause", cause).Msg("consumer: failed to write dead letter")
	}
}
