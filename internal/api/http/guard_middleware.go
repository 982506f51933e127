package http

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/ticket-portal/internal/api/http/visitor"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
	"github.com/Behnamfe76/ticket-portal/internal/guard"
	"github.com/Behnamfe76/ticket-portal/internal/session"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

// GuardConfig locates the surfaces guards redirect to.
type GuardConfig struct {
	LoginPath   string
	Landing     string
	WaitTimeout time.Duration
}

type decideFunc func(snap session.Snapshot, requested *url.URL) guard.Decision

// RequireAuthenticated admits signed-in visitors only.
func RequireAuthenticated(gc GuardConfig) fiber.Handler {
	return guardHandler(gc, func(snap session.Snapshot, requested *url.URL) guard.Decision {
		return guard.RequireAuthenticated(snap, requested, gc.LoginPath)
	})
}

// RequireGuest keeps signed-in visitors off guest-only surfaces.
func RequireGuest(gc GuardConfig) fiber.Handler {
	return guardHandler(gc, func(snap session.Snapshot, _ *url.URL) guard.Decision {
		return guard.RequireGuest(snap, gc.Landing)
	})
}

// RequireRole admits signed-in visitors holding one of roles.
func RequireRole(gc GuardConfig, roles ...domain.Role) fiber.Handler {
	return guardHandler(gc, func(snap session.Snapshot, requested *url.URL) guard.Decision {
		return guard.RequireRole(snap, requested, gc.LoginPath, roles...)
	})
}

// guardHandler waits, bounded, for a loading session and renders the
// decision. A session still loading after the bound gets a 202 waiting
// response that asks the browser to come back.
func guardHandler(gc GuardConfig, decide decideFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := visitor.FromCtx(c)
		var ctrl *session.Controller
		if v != nil {
			ctrl = v.Controller
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), gc.WaitTimeout)
		snap, _ := ctrl.Wait(ctx)
		cancel()

		d := decide(snap, requestURL(c))
		switch d.Kind {
		case guard.Allow:
			if c.Method() == http.MethodGet {
				if cleaned := v.TakeReplacement(c.Path()); cleaned != nil {
					return c.Redirect(cleaned.RequestURI(), fiber.StatusSeeOther)
				}
			}
			return c.Next()
		case guard.Redirect:
			return c.Redirect(d.Target, fiber.StatusSeeOther)
		case guard.Deny:
			return apperrors.NewDomainError("FORBIDDEN", "You do not have access to this page.", http.StatusForbidden, nil)
		default:
			c.Set(fiber.HeaderRetryAfter, "1")
			c.Set("Refresh", "1")
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"state": domain.AuthStateLoading}})
		}
	}
}
