package http

import (
	"context"
	"errors"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/api/http/visitor"
	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	"github.com/Behnamfe76/ticket-portal/internal/session"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	logger = observability.OrNop(logger)
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return apperrors.FromResponse(fe.Code, nil).WithMessage(fe.Message)
	}
	return apperrors.ToDomainError(err)
}

// VisitorMiddleware binds each request to its visitor, issuing the visitor
// cookie on first sight. A returning visitor whose address still carries a
// redirect-flow auth parameter is re-verified before the request proceeds.
func VisitorMiddleware(reg *visitor.Registry, cfg config.VisitorConfig, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(cfg.CookieName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Cookie(&fiber.Cookie{
			Name:     cfg.CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(cfg.IdleTimeout.Seconds()),
			HTTPOnly: true,
			Secure:   secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})

		location := requestURL(c)
		v, created, err := reg.Acquire(id, location)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if _, stray := session.StripAuthParams(location); stray && !created {
			ctx, cancel := context.WithTimeout(c.UserContext(), cfg.WaitTimeout)
			v.Controller.RefreshAuth(ctx)
			cancel()
		}

		visitor.Store(c, v)
		return c.Next()
	}
}

func requestURL(c *fiber.Ctx) *url.URL {
	u, err := url.ParseRequestURI(c.OriginalURL())
	if err != nil {
		return &url.URL{Path: c.Path()}
	}
	return u
}
