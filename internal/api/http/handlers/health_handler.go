package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/ticket-portal/internal/readiness"
)

// Pinger is a dependency that can report its own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	prober      *readiness.Prober
	deps        map[string]Pinger
}

// NewHealthHandler returns a new handler instance. deps lists the credential
// storage backends in use, by name.
func NewHealthHandler(serviceName, version string, prober *readiness.Prober, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, prober: prober, deps: deps}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness: the backend answers and storage is reachable.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if h.prober != nil && h.prober.Ready() {
		depStatus["backend"] = "ok"
	} else {
		depStatus["backend"] = "unreachable"
		ready = false
	}

	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			depStatus[name] = err.Error()
			ready = false
		} else {
			depStatus[name] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

// Backend handles GET /api/readiness, used to gate the sign-in form.
func (h *HealthHandler) Backend(c *fiber.Ctx) error {
	ready, origin := false, ""
	if h.prober != nil {
		ready, origin = h.prober.Ready(), h.prober.Origin()
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ready": ready, "origin": origin}})
}
