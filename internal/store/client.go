// Package store implements the atomic decision script (C1) and the
// typed client (C2) that evaluates it against the sharded in-memory
// store, per spec §4.1–§4.2.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

//go:embed scripts/issue.lua
var issueScriptSrc string

//go:embed scripts/compensate.lua
var compensateScriptSrc string

// Client wraps a Redis client, loading the atomic decision and
// compensating scripts once and invoking them thereafter by their
// precomputed SHA (spec §4.2). It never transparently retries Issue or
// Compensate, because the script is not idempotent; it does retry
// idempotent reads on connection loss.
type Client struct {
	rdb         redis.UniversalClient
	issueScript *redis.Script
	compensate  *redis.Script
	readRetries uint64
}

// NewClient builds a store.Client over rdb, loading C1's and the
// compensating script's bodies. The scripts themselves are process-wide
// constants (spec §9: "hot-reload is a non-goal").
func NewClient(rdb redis.UniversalClient) *Client {
	return &Client{
		rdb:         rdb,
		issueScript: redis.NewScript(issueScriptSrc),
		compensate:  redis.NewScript(compensateScriptSrc),
		readRetries: 3,
	}
}

// Ping reports whether the underlying store is reachable, used by the
// health endpoint (spec §6).
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InitEvent seeds the stock key for eventID. Re-running with the same
// total is a no-op (R2); this is an explicit admin action — there is no
// auto-seeding on first issuance (spec §4.6).
func (c *Client) InitEvent(ctx context.Context, eventID string, total int, ttl time.Duration) error {
	key := stockKey(eventID)
	ok, err := c.rdb.SetNX(ctx, key, total, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: init event %s: %v", ErrStoreUnavailable, eventID, err)
	}
	if !ok {
		// Already initialized; leave it alone (idempotent re-run).
		return nil
	}
	return nil
}

// Issue evaluates the atomic decision script for (eventID, userID).
// Never retried transparently: a successful execution has already
// debited stock, so retrying on ambiguous failure could double-debit.
func (c *Client) Issue(ctx context.Context, eventID, userID, couponID string, ttl time.Duration) (DecisionResult, error) {
	keys := []string{stockKey(eventID), participantsKey(eventID), userCacheKey(eventID, userID)}
	res, err := c.issueScript.Run(ctx, c.rdb, keys, userID, couponID, int(ttl.Seconds())).Result()
	if err != nil {
		if isConnErr(err) {
			return DecisionResult{}, fmt.Errorf("%w: issue: %v", ErrStoreUnavailable, err)
		}
		return DecisionResult{}, fmt.Errorf("%w: issue: %v", ErrScriptError, err)
	}

	return parseDecisionResult(res)
}

// Compensate rolls back a prior PASS that could not be durably published
// (spec §4.4 step 5). Idempotent: re-running after the first successful
// compensation is a no-op, guarded by the script's own membership check.
func (c *Client) Compensate(ctx context.Context, eventID, userID string) error {
	keys := []string{stockKey(eventID), participantsKey(eventID), userCacheKey(eventID, userID)}
	_, err := c.compensate.Run(ctx, c.rdb, keys, userID).Result()
	if err != nil {
		return fmt.Errorf("%w: compensate: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Remaining reads the current stock counter for eventID. Idempotent read:
// retried on connection loss.
func (c *Client) Remaining(ctx context.Context, eventID string) (int, error) {
	var out int
	err := c.withReadRetry(ctx, func() error {
		v, err := c.rdb.Get(ctx, stockKey(eventID)).Int()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				out = 0
				return nil
			}
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// ParticipantsCount reads the size of the participant set for eventID.
func (c *Client) ParticipantsCount(ctx context.Context, eventID string) (int64, error) {
	var out int64
	err := c.withReadRetry(ctx, func() error {
		v, err := c.rdb.SCard(ctx, participantsKey(eventID)).Result()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// GetUserCoupon reads the cached coupon id for (eventID, userID), if any.
func (c *Client) GetUserCoupon(ctx context.Context, eventID, userID string) (string, bool, error) {
	var out string
	var found bool
	err := c.withReadRetry(ctx, func() error {
		v, err := c.rdb.Get(ctx, userCacheKey(eventID, userID)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				found = false
				return nil
			}
			return err
		}
		out = v
		found = true
		return nil
	})
	return out, found, err
}

func (c *Client) withReadRetry(ctx context.Context, op func() error) error {
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.readRetries)
	err := backoff.Retry(func() error {
		err := op()
		if err != nil && !isConnErr(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func parseDecisionResult(res interface{}) (DecisionResult, error) {
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return DecisionResult{}, fmt.Errorf("%w: unexpected shape %T", ErrScriptError, res)
	}

	code, ok := toInt64(arr[0])
	if !ok {
		return DecisionResult{}, fmt.Errorf("%w: non-numeric code", ErrScriptError)
	}
	remaining, ok := toInt64(arr[1])
	if !ok {
		return DecisionResult{}, fmt.Errorf("%w: non-numeric remaining", ErrScriptError)
	}

	return DecisionResult{Code: DecisionCode(code), Remaining: int(remaining)}, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func isConnErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}
