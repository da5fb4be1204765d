package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-system/internal/eventlog"
	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
	"github.com/fairyhunter13/scalable-coupon-system/internal/store"
)

// DecisionStoreInterface defines the subset of C2 the issuance handler's
// hot path needs: the atomic decision and its compensation.
type DecisionStoreInterface interface {
	Issue(ctx context.Context, eventID, userID, couponID string, ttl time.Duration) (store.DecisionResult, error)
	Compensate(ctx context.Context, eventID, userID string) error
}

// EventPublisherInterface defines the subset of C3 the issuance handler
// needs: a synchronous, durability-acknowledged publish.
type EventPublisherInterface interface {
	Publish(ctx context.Context, ev eventlog.IssuanceEvent) error
}

// IssuanceService implements the synchronous request state machine of
// C4 (spec §4.4): decide via the store, and on PASS publish before
// reporting success. Validation and HTTP framing live in the handler;
// this is the decision/publish/compensate core.
type IssuanceService struct {
	store          DecisionStoreInterface
	publisher      EventPublisherInterface
	participantTTL time.Duration
	newCouponID    func() string
}

// NewIssuanceService creates a new IssuanceService. participantTTL is
// the horizon the participant set's TTL is refreshed to on a PASS (spec
// §4.1 step 5, §9 "TTL coupling").
func NewIssuanceService(s DecisionStoreInterface, p EventPublisherInterface, participantTTL time.Duration) *IssuanceService {
	return &IssuanceService{
		store:          s,
		publisher:      p,
		participantTTL: participantTTL,
		newCouponID:    func() string { return uuid.NewString() },
	}
}

// Issue runs the decide → publish → (compensate) pipeline for a single
// issuance request. The coupon id is minted here, before the decision,
// so it survives as the correlation token across the in-memory cache,
// the log, and the persistent row (spec §9 "Identifier minting").
func (s *IssuanceService) Issue(ctx context.Context, userID, eventID string) (*model.IssueCouponResponse, error) {
	couponID := s.newCouponID()

	result, err := s.store.Issue(ctx, eventID, userID, couponID, s.participantTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch result.Code {
	case store.DecisionUserAlreadyParticipated:
		return &model.IssueCouponResponse{Success: false, Reason: model.ReasonUserAlreadyParticipated}, nil
	case store.DecisionStockNotInitialized:
		return nil, ErrStockNotInitialized
	case store.DecisionNoStockAvailable:
		return &model.IssueCouponResponse{Success: false, Reason: model.ReasonNoStockAvailable}, nil
	case store.DecisionSuccess:
		// fall through to publish
	default:
		return nil, fmt.Errorf("issuance: unrecognized decision code %d", result.Code)
	}

	ev := eventlog.NewIssuanceEvent(couponID, userID, eventID, time.Now())
	if pubErr := s.publisher.Publish(ctx, ev); pubErr != nil {
		if compErr := s.store.Compensate(ctx, eventID, userID); compErr != nil {
			log.Error().
				Err(compErr).
				Str("event_id", eventID).
				Str("user_id", userID).
				Str("coupon_id", couponID).
				Msg("compensation failed after publish failure; reconciliation will surface the gap")
			return nil, fmt.Errorf("%w: %w: %v", ErrPublishFailed, ErrCompensationFailed, compErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, pubErr)
	}

	remaining := result.Remaining
	return &model.IssueCouponResponse{
		Success:   true,
		CouponID:  couponID,
		Remaining: &remaining,
	}, nil
}

// IsCompensationFailure reports whether err indicates the compensating
// rollback itself did not apply, so callers can route the alert to
// operators distinctly from an ordinary publish failure.
func IsCompensationFailure(err error) bool {
	return errors.Is(err, ErrCompensationFailed)
}
