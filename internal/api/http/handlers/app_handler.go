package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/ticket-portal/internal/api/dto"
	"github.com/Behnamfe76/ticket-portal/internal/api/http/visitor"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

// AppHandler serves the authenticated area.
type AppHandler struct{}

// NewAppHandler constructs handler.
func NewAppHandler() *AppHandler {
	return &AppHandler{}
}

// Home handles GET /app.
func (h *AppHandler) Home(c *fiber.Ctx) error {
	snap := visitor.FromCtx(c).Controller.Snapshot()
	return c.JSON(fiber.Map{"data": fiber.Map{"user": snap.User}})
}

// Profile handles GET /app/profile with a fresh copy of the user.
func (h *AppHandler) Profile(c *fiber.Ctx) error {
	v := visitor.FromCtx(c)
	user, err := v.Client.Me(c.UserContext(), v.Controller.AuthHeaders())
	if err != nil {
		if apperrors.IsUnauthenticated(err) {
			v.Controller.RefreshAuth(c.UserContext())
		}
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": user}})
}

// UpdateProfile handles PUT /app/profile. The session is re-verified so the
// controller holds the fresh user projection.
func (h *AppHandler) UpdateProfile(c *fiber.Ctx) error {
	var req dto.UpdateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == nil && req.AvatarURL == nil {
		return apperrors.NewValidationError("nothing to update", nil)
	}

	v := visitor.FromCtx(c)
	user, err := v.Client.UpdateMe(c.UserContext(), v.Controller.AuthHeaders(), req)
	if err != nil {
		return err
	}
	v.Controller.RefreshAuth(c.UserContext())
	return c.JSON(fiber.Map{"data": fiber.Map{"user": user}})
}

// Admin handles GET /app/admin.
func (h *AppHandler) Admin(c *fiber.Ctx) error {
	snap := visitor.FromCtx(c).Controller.Snapshot()
	return c.JSON(fiber.Map{"data": fiber.Map{"user": snap.User, "area": "admin"}})
}
