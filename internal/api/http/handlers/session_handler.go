package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/ticket-portal/internal/session"
)

// SessionHandler exposes the visitor's session state.
type SessionHandler struct {
	loginPath string
}

// NewSessionHandler constructs handler.
func NewSessionHandler(loginPath string) *SessionHandler {
	return &SessionHandler{loginPath: loginPath}
}

// Show handles GET /api/session. It never blocks on a loading session.
func (h *SessionHandler) Show(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": session.FromContext(c.UserContext()).Snapshot()})
}

// Logout handles POST /logout. The visitor ends up signed out even when the
// backend cannot be reached.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	session.FromContext(c.UserContext()).Logout(c.UserContext())
	return c.Redirect(h.loginPath, fiber.StatusSeeOther)
}
