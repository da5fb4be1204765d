package handler

import (
	"context"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations, satisfied by
// the database pool, the in-memory store client, and the event log
// producer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports 200 only when every registered dependency is
// reachable: the database, the in-memory store, and the event log
// producer (spec §6: "200 when store and producer are reachable").
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler. checks maps a
// human-readable dependency name (e.g. "database", "store", "producer")
// to the thing that can ping it.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Check performs a health check against every registered dependency.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := fiber.Map{}
	healthy := true

	for _, name := range names {
		if err := h.checks[name].Ping(c.Context()); err != nil {
			log.Error().Err(err).Str("dependency", name).Msg("health check failed")
			results[name] = "unreachable"
			healthy = false
		} else {
			results[name] = "ok"
		}
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"checks": results,
		})
	}

	return c.JSON(fiber.Map{
		"status": "healthy",
		"checks": results,
	})
}
