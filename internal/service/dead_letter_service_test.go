package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
)

type fakeDeadLetterRepository struct {
	records []model.DeadLetter
	err     error
}

func (f *fakeDeadLetterRepository) ListByEvent(ctx context.Context, eventID string) ([]model.DeadLetter, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.DeadLetter
	for _, r := range f.records {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestDeadLetterService_ListByEvent(t *testing.T) {
	repo := &fakeDeadLetterRepository{records: []model.DeadLetter{
		{EventID: "evt-1", CouponID: "coupon-1", FailedAt: time.Now()},
		{EventID: "evt-2", CouponID: "coupon-2", FailedAt: time.Now()},
	}}
	svc := NewDeadLetterService(repo)

	records, err := svc.ListByEvent(context.Background(), "evt-1")

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "coupon-1", records[0].CouponID)
}

func TestDeadLetterService_ListByEvent_PropagatesError(t *testing.T) {
	repo := &fakeDeadLetterRepository{err: errors.New("db unavailable")}
	svc := NewDeadLetterService(repo)

	_, err := svc.ListByEvent(context.Background(), "evt-1")
	require.Error(t, err)
}
