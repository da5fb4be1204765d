package model

import "time"

// Issuance is the durable record of a successful coupon grant
// (user_coupons row). IsUsed/UsedAt track redemption of the coupon
// itself, a column pair the persistent schema carries (spec §6) even
// though no operation in this system's scope sets them past their
// defaults — redemption is out of scope, but the schema and model stay
// in the shape a future redemption feature would read from.
type Issuance struct {
	ID       int64      `json:"id"`
	CouponID string     `json:"coupon_id"`
	UserID   string     `json:"user_id"`
	EventID  string     `json:"event_id"`
	IssuedAt time.Time  `json:"issued_at"`
	IsUsed   bool       `json:"is_used"`
	UsedAt   *time.Time `json:"used_at,omitempty"`
}

// IssueCouponRequest is the DTO for POST /api/v1/coupons/issue.
type IssueCouponRequest struct {
	UserID  string `json:"user_id" validate:"required,notblank,max=255"`
	EventID string `json:"event_id" validate:"required,notblank,max=255"`
}

// IssueCouponResponse is the DTO returned for every issue attempt,
// success or business-level failure. Remaining is a pointer so the
// field can be both present-and-zero (a successful issuance of the
// last unit, per spec §8 scenario 1's literal `remaining: 0`) and
// absent (business-level failures, where there is no remaining count
// to report) — a plain `int` with `omitempty` cannot distinguish those
// two cases since 0 is the zero value.
type IssueCouponResponse struct {
	Success   bool   `json:"success"`
	CouponID  string `json:"coupon_id,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Reason codes returned in IssueCouponResponse.Reason, matching the
// atomic decision script's FAIL codes (spec §4.1) plus the handler's own
// terminal classifications.
const (
	ReasonUserAlreadyParticipated = "USER_ALREADY_PARTICIPATED"
	ReasonNoStockAvailable        = "NO_STOCK_AVAILABLE"
	ReasonStockNotInitialized     = "STOCK_NOT_INITIALIZED"
)

// DeadLetter is a durable record of an issuance event the consumer could
// not persist after exhausting its retry budget.
type DeadLetter struct {
	ID           int64     `json:"id"`
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	CouponID     string    `json:"coupon_id"`
	Payload      []byte    `json:"payload"`
	FailureCause string    `json:"failure_cause"`
	FailedAt     time.Time `json:"failed_at"`
}
