package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/api/http/visitor"
	"github.com/Behnamfe76/ticket-portal/internal/apiclient"
	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/events"
	"github.com/Behnamfe76/ticket-portal/internal/exchange"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	"github.com/Behnamfe76/ticket-portal/internal/session"
	"github.com/Behnamfe76/ticket-portal/internal/tokenstore"
)

// VisitorDeps are the shared collaborators every visitor is built from.
type VisitorDeps struct {
	Config  *config.Config
	Stores  tokenstore.Factory
	Events  events.Dispatcher
	Metrics *observability.Metrics
	Logger  *zap.Logger
	// Transport, when set, replaces the default HTTP transport of visitor clients.
	Transport nethttp.RoundTripper
}

// NewVisitorFactory returns a factory giving each visitor its own API client
// (and cookie jar), scoped credential store, controller and callback flow.
func NewVisitorFactory(d VisitorDeps) visitor.Factory {
	cfg := d.Config
	return func(id string, nav session.Navigator) (*visitor.Visitor, error) {
		store, err := d.Stores.Open(id)
		if err != nil {
			return nil, err
		}

		opts := []apiclient.Option{
			apiclient.WithLogger(d.Logger),
			apiclient.WithBackendOrigin(cfg.API.BackendOrigin),
		}
		if d.Transport != nil {
			opts = append(opts, apiclient.WithHTTPClient(&nethttp.Client{Transport: d.Transport}))
		}
		client := apiclient.New(cfg.API.BaseURL, opts...)

		ctrl := session.New(cfg.Session, session.Dependencies{
			Store:     store,
			Backend:   client,
			Navigator: nav,
			Events:    d.Events,
			Metrics:   d.Metrics,
			Logger:    d.Logger,
			Scope:     id,
		})
		coord := exchange.NewCoordinator(client, cfg.Exchange, exchange.Options{
			Events:  d.Events,
			Metrics: d.Metrics,
			Logger:  d.Logger,
			Scope:   id,
		})

		return &visitor.Visitor{
			Controller: ctrl,
			Flow:       exchange.NewFlow(coord, ctrl, client, cfg.Exchange),
			Client:     client,
		}, nil
	}
}

// NewApp builds the fiber application of the web shell.
func NewApp(cfg *config.Config, routes RouteConfig, logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	RegisterRoutes(app, routes)
	return app
}
