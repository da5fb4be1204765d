package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
	"github.com/fairyhunter13/scalable-coupon-system/internal/service"
)

// StatusServiceInterface defines the interface for reading an event's
// live status.
type StatusServiceInterface interface {
	GetStatus(ctx context.Context, eventID string) (*model.EventStatus, error)
}

// StatusHandler handles GET /api/v1/coupons/status/{event_id}.
type StatusHandler struct {
	service StatusServiceInterface
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(svc StatusServiceInterface) *StatusHandler {
	return &StatusHandler{service: svc}
}

// GetStatus handles the request.
func (h *StatusHandler) GetStatus(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	if eventID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: event_id is required"})
	}

	status, err := h.service.GetStatus(c.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "event not found"})
		}
		if errors.Is(err, service.ErrStoreUnavailable) {
			log.Error().Err(err).Str("event_id", eventID).Msg("status check failed: store unavailable")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store unavailable"})
		}
		log.Error().Err(err).Str("event_id", eventID).Msg("failed to get status")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(status)
}
