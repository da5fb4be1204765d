package model

import "time"

// Event represents a bounded coupon campaign.
type Event struct {
	EventID        string    `json:"event_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	TotalStock     int       `json:"total_stock"`
	RemainingStock int       `json:"remaining_stock"` // advisory mirror; store is authoritative
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

// EventStatus is the response DTO for GET /api/v1/coupons/status/{event_id}.
type EventStatus struct {
	RemainingStock    int `json:"remaining_stock"`
	TotalParticipants int `json:"total_participants"`
	TotalIssued       int `json:"total_issued"`
}

// CreateEventRequest is the DTO for POST /api/v1/admin/events.
type CreateEventRequest struct {
	EventID     string    `json:"event_id" validate:"required,notblank,max=255"`
	Name        string    `json:"name" validate:"required,notblank,max=255"`
	Description string    `json:"description" validate:"max=2000"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}
