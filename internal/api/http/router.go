package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Behnamfe76/ticket-portal/internal/api/http/handlers"
	"github.com/Behnamfe76/ticket-portal/internal/api/http/visitor"
	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
)

// Shell surfaces.
const (
	LoginPath   = "/login"
	LandingPath = "/app"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Session  *handlers.SessionHandler
	App      *handlers.AppHandler
	Debug    *handlers.DebugHandler
	Visitors *visitor.Registry
	Visitor  config.VisitorConfig
	Guard    GuardConfig
	// SecureCookies marks the visitor cookie Secure.
	SecureCookies bool
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/api/readiness", cfg.Health.Backend)

	withVisitor := VisitorMiddleware(cfg.Visitors, cfg.Visitor, cfg.SecureCookies)
	guest := RequireGuest(cfg.Guard)

	app.Get("/api/session", withVisitor, cfg.Session.Show)
	app.Post("/logout", withVisitor, cfg.Session.Logout)

	app.Get("/auth/callback", withVisitor, cfg.Auth.Callback)
	app.Post("/auth/callback/retry", withVisitor, cfg.Auth.RetryCallback)

	app.Get(LoginPath, withVisitor, guest, cfg.Auth.LoginPage)
	app.Post(LoginPath, withVisitor, guest, cfg.Auth.Login)
	app.Post("/signup", withVisitor, guest, cfg.Auth.Signup)
	app.Post("/forgot-password", withVisitor, guest, cfg.Auth.ForgotPassword)
	app.Post("/reset-password", withVisitor, guest, cfg.Auth.ResetPassword)

	protected := app.Group(LandingPath, withVisitor, RequireAuthenticated(cfg.Guard))
	protected.Get("/", cfg.App.Home)
	protected.Get("/profile", cfg.App.Profile)
	protected.Put("/profile", cfg.App.UpdateProfile)
	protected.Get("/admin", RequireRole(cfg.Guard, domain.RoleAdmin), cfg.App.Admin)

	if cfg.Debug != nil {
		app.Get("/debug/metrics", cfg.Debug.Metrics)
	}
}
