package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrPublishFailed is returned when the producer exhausts its retry
// budget without a durable acknowledgement (spec §4.3, §7).
var ErrPublishFailed = errors.New("eventlog: publish failed")

// ProducerConfig configures the durable log producer.
type ProducerConfig struct {
	Brokers []string
	Topic   string
	// PublishBudget bounds the total time spent retrying a single
	// publish call. Design target: <= 100ms (spec §4.3).
	PublishBudget time.Duration
}

// Producer appends issuance events to the durable log and waits for a
// durability acknowledgement before returning, so the handler can decide
// whether it is safe to respond PASS to the client.
type Producer struct {
	client *kgo.Client
	topic  string
	budget time.Duration
}

// NewProducer builds a Producer whose records are keyed by
// IssuanceEvent.PartitionKey so that per-user ordering is preserved
// within an event (spec §4.3).
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("eventlog: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("eventlog: no topic configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: new client: %w", err)
	}

	budget := cfg.PublishBudget
	if budget <= 0 {
		budget = 100 * time.Millisecond
	}

	return &Producer{client: client, topic: cfg.Topic, budget: budget}, nil
}

// Ping reports whether the producer's brokers are reachable, used by the
// health endpoint (spec §6).
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close releases the underlying Kafka client, flushing any buffered
// records first.
func (p *Producer) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("eventlog: flush on close failed")
	}
	p.client.Close()
	return nil
}

// Publish durably appends ev to the log and blocks until the broker
// acknowledges it, retrying transient failures within the producer's
// publish budget. Returns ErrPublishFailed on budget exhaustion.
func (p *Producer) Publish(ctx context.Context, ev IssuanceEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("eventlog: %w", err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: marshal: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.PartitionKey()),
		Value: payload,
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 25 * time.Millisecond
	bo.MaxElapsedTime = p.budget

	publishCtx, cancel := context.WithTimeout(ctx, p.budget)
	defer cancel()

	op := func() error {
		produceCtx, produceCancel := context.WithTimeout(publishCtx, p.budget)
		defer produceCancel()
		return p.client.ProduceSync(produceCtx, record).FirstErr()
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, publishCtx)); err != nil {
		log.Error().
			Err(err).
			Str("event_id", ev.EventID).
			Str("user_id", ev.UserID).
			Str("coupon_id", ev.CouponID).
			Msg("eventlog: publish exhausted retry budget")
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	return nil
}
