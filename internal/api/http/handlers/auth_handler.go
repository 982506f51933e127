package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/ticket-portal/internal/api/dto"
	"github.com/Behnamfe76/ticket-portal/internal/api/http/visitor"
	"github.com/Behnamfe76/ticket-portal/internal/exchange"
	"github.com/Behnamfe76/ticket-portal/internal/readiness"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

// AuthHandler serves the guest surfaces and the provider callback.
type AuthHandler struct {
	prober  *readiness.Prober
	landing string
}

// NewAuthHandler constructs handler.
func NewAuthHandler(prober *readiness.Prober, landing string) *AuthHandler {
	return &AuthHandler{prober: prober, landing: landing}
}

// LoginPage handles GET /login.
func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	ready := h.prober != nil && h.prober.Ready()
	return c.JSON(fiber.Map{"data": fiber.Map{
		"backendReady": ready,
		"next":         exchange.SafeDestination(c.Query("next"), h.landing),
	}})
}

// Login handles POST /login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	if err := h.requireBackend(); err != nil {
		return err
	}

	v := visitor.FromCtx(c)
	return renderFlow(c, v.Flow.SignIn(c.UserContext(), req.Email, req.Password, req.Next))
}

// requireBackend refuses sign-in attempts until the prober has seen the
// backend healthy.
func (h *AuthHandler) requireBackend() error {
	if h.prober != nil && !h.prober.Ready() {
		return apperrors.NewDomainError("BACKEND_STARTING", "The server is starting up. Please try again in a moment.", http.StatusServiceUnavailable, nil)
	}
	return nil
}

// Signup handles POST /signup. A backend that signs the new account in
// right away answers with a code, which is redeemed like a callback.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.ShellSignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}
	if err := h.requireBackend(); err != nil {
		return err
	}

	v := visitor.FromCtx(c)
	resp, err := v.Client.Signup(c.UserContext(), req.SignupRequest)
	if err != nil {
		return err
	}
	if resp.Code == "" {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.MessageResponse{Message: resp.Message}})
	}
	return renderFlow(c, v.Flow.HandleCallback(c.UserContext(), url.Values{"code": {resp.Code}, "next": {req.Next}}))
}

// ForgotPassword handles POST /forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	resp, err := visitor.FromCtx(c).Client.ForgotPassword(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}

// ResetPassword handles POST /reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" || req.Password == "" {
		return apperrors.NewValidationError("token and password required", nil)
	}
	resp, err := visitor.FromCtx(c).Client.ResetPassword(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Callback handles GET /auth/callback, the provider redirect landing.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	query := url.Values{}
	for k, v := range c.Queries() {
		query.Set(k, v)
	}
	return renderFlow(c, visitor.FromCtx(c).Flow.HandleCallback(c.UserContext(), query))
}

// RetryCallback handles POST /auth/callback/retry.
func (h *AuthHandler) RetryCallback(c *fiber.Ctx) error {
	return renderFlow(c, visitor.FromCtx(c).Flow.Retry(c.UserContext()))
}

// renderFlow reports the flow state. Success carries a Refresh header that
// moves the browser on after the success delay.
func renderFlow(c *fiber.Ctx, st exchange.State) error {
	if st.Phase == exchange.PhaseSuccess {
		c.Set("Refresh", fmt.Sprintf("%g; url=%s", st.Delay.Seconds(), st.Destination))
	}
	return c.JSON(fiber.Map{"data": st})
}
