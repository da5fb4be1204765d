// Package eventlog defines the hand-off payload between the issuance
// handler (C4) and the durable writer (C5), and the producer that
// carries it across the durable log.
package eventlog

import (
	"fmt"
	"time"
)

// issuanceEventVersion is bumped whenever the wire shape of IssuanceEvent
// changes. The reference implementation this system was modeled on used
// an untyped payload; we version an explicit tagged record from day one
// instead.
const issuanceEventVersion = 1

// IssuanceEvent is the durable log record produced by C4 on a PASS and
// consumed by C5. It is the sole correlation token across the in-memory
// cache, the log, and the persistent row.
type IssuanceEvent struct {
	Version  int       `json:"version"`
	CouponID string    `json:"coupon_id"`
	UserID   string    `json:"user_id"`
	EventID  string    `json:"event_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// NewIssuanceEvent builds an IssuanceEvent stamped with the current
// version.
func NewIssuanceEvent(couponID, userID, eventID string, issuedAt time.Time) IssuanceEvent {
	return IssuanceEvent{
		Version:  issuanceEventVersion,
		CouponID: couponID,
		UserID:   userID,
		EventID:  eventID,
		IssuedAt: issuedAt,
	}
}

// PartitionKey returns the key used to route the event to a partition,
// guaranteeing per-user ordering for a given event (spec §4.3).
func (e IssuanceEvent) PartitionKey() string {
	return fmt.Sprintf("%s:%s", e.EventID, e.UserID)
}

// Validate reports whether the event carries all the fields a consumer
// needs to persist it.
func (e IssuanceEvent) Validate() error {
	if e.CouponID == "" {
		return fmt.Errorf("issuance event: missing coupon_id")
	}
	if e.UserID == "" {
		return fmt.Errorf("issuance event: missing user_id")
	}
	if e.EventID == "" {
		return fmt.Errorf("issuance event: missing event_id")
	}
	return nil
}
