package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/ticket-portal/internal/observability"
)

// DebugHandler exposes in-process counters in development.
type DebugHandler struct {
	metrics  *observability.Metrics
	visitors func() int
}

// NewDebugHandler constructs handler.
func NewDebugHandler(metrics *observability.Metrics, visitors func() int) *DebugHandler {
	return &DebugHandler{metrics: metrics, visitors: visitors}
}

// Metrics handles GET /debug/metrics.
func (h *DebugHandler) Metrics(c *fiber.Ctx) error {
	live := 0
	if h.visitors != nil {
		live = h.visitors()
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"counters": h.metrics.Snapshot(),
		"visitors": live,
	}})
}
