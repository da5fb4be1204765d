package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/scalable-coupon-system/internal/model"
	"github.com/fairyhunter13/scalable-coupon-system/internal/service"
)

// IssuanceServiceInterface defines the interface for the C4 decision
// pipeline (decide → publish → respond).
type IssuanceServiceInterface interface {
	Issue(ctx context.Context, userID, eventID string) (*model.IssueCouponResponse, error)
}

// IssuanceHandler handles HTTP requests for the synchronous coupon
// issuance endpoint (spec §4.4, §6).
type IssuanceHandler struct {
	service   IssuanceServiceInterface
	validator *validator.Validate
}

// NewIssuanceHandler creates a new IssuanceHandler.
func NewIssuanceHandler(svc IssuanceServiceInterface, v *validator.Validate) *IssuanceHandler {
	return &IssuanceHandler{service: svc, validator: v}
}

func formatIssuanceValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "UserID":
				if tag == "required" || tag == "notblank" {
					return "invalid request: user_id is required"
				}
				if tag == "max" {
					return "invalid request: user_id exceeds maximum length of 255"
				}
				return "invalid request: user_id is invalid"
			case "EventID":
				if tag == "required" || tag == "notblank" {
					return "invalid request: event_id is required"
				}
				if tag == "max" {
					return "invalid request: event_id exceeds maximum length of 255"
				}
				return "invalid request: event_id is invalid"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// Issue handles POST /api/v1/coupons/issue. On a business-level decision
// (duplicate user, sold out) it responds 200 with success=false — the
// HTTP call succeeded, the business decision did not (spec §4.4 step 3).
func (h *IssuanceHandler) Issue(c *fiber.Ctx) error {
	var req model.IssueCouponRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatIssuanceValidationError(err)})
	}

	resp, err := h.service.Issue(c.Context(), req.UserID, req.EventID)
	if err != nil {
		return h.mapError(c, req, err)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", req.UserID).
		Str("event_id", req.EventID).
		Bool("success", resp.Success).
		Str("reason", resp.Reason).
		Msg("issuance decided")

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *IssuanceHandler) mapError(c *fiber.Ctx, req model.IssueCouponRequest, err error) error {
	switch {
	case errors.Is(err, service.ErrStockNotInitialized):
		log.Error().
			Err(err).
			Str("event_id", req.EventID).
			Msg("issuance rejected: stock not initialized")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"reason":  model.ReasonStockNotInitialized,
		})
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Error().
			Err(err).
			Str("user_id", req.UserID).
			Str("event_id", req.EventID).
			Msg("issuance failed: store unavailable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "store unavailable"})
	case errors.Is(err, service.ErrPublishFailed):
		log.Error().
			Err(err).
			Str("user_id", req.UserID).
			Str("event_id", req.EventID).
			Bool("compensation_failed", service.IsCompensationFailure(err)).
			Msg("issuance failed: publish did not durably succeed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "publish failed"})
	default:
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("user_id", req.UserID).
			Str("event_id", req.EventID).
			Msg("issuance failed: unexpected error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}
