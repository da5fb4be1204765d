package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/scalable-coupon-system/internal/eventlog"
	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
	"github.com/fairyhunter13/scalable-coupon-system/internal/repository"
)

type fakeIssuanceWriter struct {
	insertErr error
	calls     int
	inserted  []*model.Issuance
}

func (f *fakeIssuanceWriter) Insert(ctx context.Context, ev *model.Issuance) error {
	f.calls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, ev)
	return nil
}

type fakeDeadLetterWriter struct {
	records []*model.DeadLetter
}

func (f *fakeDeadLetterWriter) Insert(ctx context.Context, dl *model.DeadLetter) error {
	f.records = append(f.records, dl)
	return nil
}

func recordFor(t *testing.T, ev eventlog.IssuanceEvent) *kgo.Record {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return &kgo.Record{Value: payload}
}

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestProcessRecord_PersistsIssuance(t *testing.T) {
	issuances := &fakeIssuanceWriter{}
	deadLetters := &fakeDeadLetterWriter{}
	w := &Worker{issuances: issuances, deadLetter: deadLetters, retry: testRetryPolicy()}

	ev := eventlog.NewIssuanceEvent("coupon-1", "user-1", "evt-1", time.Now())
	w.processRecord(context.Background(), recordFor(t, ev))

	require.Len(t, issuances.inserted, 1)
	assert.Equal(t, "coupon-1", issuances.inserted[0].CouponID)
	assert.Empty(t, deadLetters.records)
}

func TestProcessRecord_AlreadyAppliedIsTreatedAsSuccess(t *testing.T) {
	issuances := &fakeIssuanceWriter{insertErr: repository.ErrAlreadyApplied}
	deadLetters := &fakeDeadLetterWriter{}
	w := &Worker{issuances: issuances, deadLetter: deadLetters, retry: testRetryPolicy()}

	ev := eventlog.NewIssuanceEvent("coupon-1", "user-1", "evt-1", time.Now())
	w.processRecord(context.Background(), recordFor(t, ev))

	assert.Equal(t, 1, issuances.calls, "idempotent replay should not be retried")
	assert.Empty(t, deadLetters.records)
}

func TestProcessRecord_RetriesThenDeadLettersOnExhaustion(t *testing.T) {
	issuances := &fakeIssuanceWriter{insertErr: errors.New("db unavailable")}
	deadLetters := &fakeDeadLetterWriter{}
	w := &Worker{issuances: issuances, deadLetter: deadLetters, retry: testRetryPolicy()}

	ev := eventlog.NewIssuanceEvent("coupon-1", "user-1", "evt-1", time.Now())
	w.processRecord(context.Background(), recordFor(t, ev))

	assert.GreaterOrEqual(t, issuances.calls, 2, "should retry at least once before giving up")
	require.Len(t, deadLetters.records, 1)
	assert.Equal(t, "coupon-1", deadLetters.records[0].CouponID)
	assert.Contains(t, deadLetters.records[0].FailureCause, "db unavailable")
}

func TestProcessRecord_UnmarshalFailureRoutesToDeadLetter(t *testing.T) {
	issuances := &fakeIssuanceWriter{}
	deadLetters := &fakeDeadLetterWriter{}
	w := &Worker{issuances: issuances, deadLetter: deadLetters, retry: testRetryPolicy()}

	w.processRecord(context.Background(), &kgo.Record{Value: []byte("not json")})

	assert.Zero(t, issuances.calls)
	require.Len(t, deadLetters.records, 1)
	assert.Contains(t, deadLetters.records[0].FailureCause, "unmarshal")
}

func TestProcessRecord_ValidationFailureRoutesToDeadLetter(t *testing.T) {
	issuances := &fakeIssuanceWriter{}
	deadLetters := &fakeDeadLetterWriter{}
	w := &Worker{issuances: issuances, deadLetter: deadLetters, retry: testRetryPolicy()}

	ev := eventlog.IssuanceEvent{EventID: "evt-1"} // missing coupon/user id
	w.processRecord(context.Background(), recordFor(t, ev))

	assert.Zero(t, issuances.calls)
	require.Len(t, deadLetters.records, 1)
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, uint64(5), p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
}
