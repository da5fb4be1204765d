package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
	"github.com/fairyhunter13/scalable-coupon-system/internal/service"
)

// EventAdminServiceInterface defines the interface for the event
// lifecycle operations of C6.
type EventAdminServiceInterface interface {
	CreateEvent(ctx context.Context, req *model.CreateEventRequest) error
	InitializeStock(ctx context.Context, eventID string, total int) error
	DeactivateEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, eventID string) (*model.Event, error)
}

// DeadLetterServiceInterface defines the read access the admin surface
// needs for triaging dead-lettered issuance events.
type DeadLetterServiceInterface interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.DeadLetter, error)
}

// AdminHandler handles HTTP requests for event lifecycle administration
// (spec §4.6, §6).
type AdminHandler struct {
	service     EventAdminServiceInterface
	deadLetters DeadLetterServiceInterface
	validator   *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc EventAdminServiceInterface, dl DeadLetterServiceInterface, v *validator.Validate) *AdminHandler {
	return &AdminHandler{service: svc, deadLetters: dl, validator: v}
}

// CreateEvent handles POST /api/v1/admin/events.
func (h *AdminHandler) CreateEvent(c *fiber.Ctx) error {
	var req model.CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	if err := h.service.CreateEvent(c.Context(), &req); err != nil {
		if errors.Is(err, service.ErrEventExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "event already exists"})
		}
		log.Error().Err(err).Str("event_id", req.EventID).Msg("failed to create event")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusCreated).Send(nil)
}

// InitializeStock handles POST /api/v1/admin/events/{event_id}/stock?initial_stock=N.
// Idempotent seeding: re-running with the same total is a no-op (R2).
func (h *AdminHandler) InitializeStock(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	if eventID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: event_id is required"})
	}

	total, err := strconv.Atoi(c.Query("initial_stock"))
	if err != nil || total < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: initial_stock must be a non-negative integer"})
	}

	if err := h.service.InitializeStock(c.Context(), eventID, total); err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "event not found"})
		}
		log.Error().Err(err).Str("event_id", eventID).Msg("failed to initialize stock")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusOK).Send(nil)
}

// ListEvents handles GET /api/v1/admin/events.
func (h *AdminHandler) ListEvents(c *fiber.Ctx) error {
	events, err := h.service.ListEvents(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list events")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(events)
}

// GetEvent handles GET /api/v1/admin/events/{event_id}.
func (h *AdminHandler) GetEvent(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	if eventID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: event_id is required"})
	}

	ev, err := h.service.GetEvent(c.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "event not found"})
		}
		log.Error().Err(err).Str("event_id", eventID).Msg("failed to get event")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(ev)
}

// ListDeadLetters handles GET /api/v1/admin/events/{event_id}/dead-letters,
// the operator triage surface for a reconciliation Gap (SPEC_FULL.md
// supplement).
func (h *AdminHandler) ListDeadLetters(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	if eventID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: event_id is required"})
	}

	records, err := h.deadLetters.ListByEvent(c.Context(), eventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("failed to list dead letters")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(records)
}

// Deactivate handles POST /api/v1/admin/events/{event_id}/deactivate.
func (h *AdminHandler) Deactivate(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	if eventID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: event_id is required"})
	}

	if err := h.service.DeactivateEvent(c.Context(), eventID); err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "event not found"})
		}
		log.Error().Err(err).Str("event_id", eventID).Msg("failed to deactivate event")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusOK).Send(nil)
}
