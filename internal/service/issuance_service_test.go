package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/scalable-coupon-system/internal/eventlog"
	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
	"github.com/fairyhunter13/scalable-coupon-system/internal/store"
)

type fakeDecisionStore struct {
	issueResult   store.DecisionResult
	issueErr      error
	compensateErr error
	compensated   bool
}

func (f *fakeDecisionStore) Issue(ctx context.Context, eventID, userID, couponID string, ttl time.Duration) (store.DecisionResult, error) {
	return f.issueResult, f.issueErr
}

func (f *fakeDecisionStore) Compensate(ctx context.Context, eventID, userID string) error {
	f.compensated = true
	return f.compensateErr
}

type fakePublisher struct {
	publishErr error
	published  []eventlog.IssuanceEvent
}

func (f *fakePublisher) Publish(ctx context.Context, ev eventlog.IssuanceEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, ev)
	return nil
}

func newIssuanceService(store *fakeDecisionStore, pub *fakePublisher) *IssuanceService {
	svc := NewIssuanceService(store, pub, time.Hour)
	svc.newCouponID = func() string { return "coupon-fixed" }
	return svc
}

func TestIssuanceService_Issue_Success(t *testing.T) {
	decision := &fakeDecisionStore{issueResult: store.DecisionResult{Code: store.DecisionSuccess, Remaining: 41}}
	pub := &fakePublisher{}
	svc := newIssuanceService(decision, pub)

	resp, err := svc.Issue(context.Background(), "user-1", "evt-1")

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "coupon-fixed", resp.CouponID)
	require.NotNil(t, resp.Remaining)
	assert.Equal(t, 41, *resp.Remaining)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "coupon-fixed", pub.published[0].CouponID)
}

func TestIssuanceService_Issue_UserAlreadyParticipated(t *testing.T) {
	decision := &fakeDecisionStore{issueResult: store.DecisionResult{Code: store.DecisionUserAlreadyParticipated}}
	svc := newIssuanceService(decision, &fakePublisher{})

	resp, err := svc.Issue(context.Background(), "user-1", "evt-1")

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, model.ReasonUserAlreadyParticipated, resp.Reason)
}

func TestIssuanceService_Issue_NoStockAvailable(t *testing.T) {
	decision := &fakeDecisionStore{issueResult: store.DecisionResult{Code: store.DecisionNoStockAvailable}}
	svc := newIssuanceService(decision, &fakePublisher{})

	resp, err := svc.Issue(context.Background(), "user-1", "evt-1")

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, model.ReasonNoStockAvailable, resp.Reason)
}

func TestIssuanceService_Issue_StockNotInitialized(t *testing.T) {
	decision := &fakeDecisionStore{issueResult: store.DecisionResult{Code: store.DecisionStockNotInitialized}}
	svc := newIssuanceService(decision, &fakePublisher{})

	_, err := svc.Issue(context.Background(), "user-1", "evt-1")
	assert.ErrorIs(t, err, ErrStockNotInitialized)
}

func TestIssuanceService_Issue_StoreUnavailable(t *testing.T) {
	decision := &fakeDecisionStore{issueErr: errors.New("connection refused")}
	svc := newIssuanceService(decision, &fakePublisher{})

	_, err := svc.Issue(context.Background(), "user-1", "evt-1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestIssuanceService_Issue_PublishFailsThenCompensationSucceeds(t *testing.T) {
	decision := &fakeDecisionStore{issueResult: store.DecisionResult{Code: store.DecisionSuccess, Remaining: 10}}
	pub := &fakePublisher{publishErr: errors.New("broker unreachable")}
	svc := newIssuanceService(decision, pub)

	_, err := svc.Issue(context.Background(), "user-1", "evt-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.False(t, IsCompensationFailure(err))
	assert.True(t, decision.compensated)
}

func TestIssuanceService_Issue_PublishFailsAndCompensationFails(t *testing.T) {
	decision := &fakeDecisionStore{
		issueResult:   store.DecisionResult{Code: store.DecisionSuccess, Remaining: 10},
		compensateErr: errors.New("store unreachable"),
	}
	pub := &fakePublisher{publishErr: errors.New("broker unreachable")}
	svc := newIssuanceService(decision, pub)

	_, err := svc.Issue(context.Background(), "user-1", "evt-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.True(t, IsCompensationFailure(err))
}

func TestIssuanceService_Issue_UnrecognizedDecisionCode(t *testing.T) {
	decision := &fakeDecisionStore{issueResult: store.DecisionResult{Code: store.DecisionCode(99)}}
	svc := newIssuanceService(decision, &fakePublisher{})

	_, err := svc.Issue(context.Background(), "user-1", "evt-1")
	require.Error(t, err)
}
