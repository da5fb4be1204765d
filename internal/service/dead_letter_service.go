package service

import (
	"context"
	"fmt"

	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
)

// DeadLetterRepositoryInterface defines the read access the admin
// surface needs over dead-lettered records (SPEC_FULL.md supplement).
type DeadLetterRepositoryInterface interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.DeadLetter, error)
}

// DeadLetterService exposes dead-letter triage to the admin surface.
type DeadLetterService struct {
	repo DeadLetterRepositoryInterface
}

// NewDeadLetterService creates a new DeadLetterService.
func NewDeadLetterService(repo DeadLetterRepositoryInterface) *DeadLetterService {
	return &DeadLetterService{repo: repo}
}

// ListByEvent returns every dead-lettered record for an event.
func (s *DeadLetterService) ListByEvent(ctx context.Context, eventID string) ([]model.DeadLetter, error) {
	records, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return records, nil
}
