// Package exchange redeems one-time authorization codes for sessions.
package exchange

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
	"github.com/Behnamfe76/ticket-portal/internal/events"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

const opExchange = "exchange"

var (
	// ErrNoCode is returned when there is no authorization code to redeem.
	ErrNoCode = errors.New("no authorization code")
	// ErrProviderDenied marks a callback that carried a provider error.
	ErrProviderDenied = errors.New("identity provider returned an error")
)

// Exchanger performs one POST /api/auth/exchange round trip.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (domain.Session, error)
}

// Options carries optional collaborators.
type Options struct {
	Events  events.Dispatcher
	Metrics *observability.Metrics
	Logger  *zap.Logger
	Scope   string
}

// Coordinator redeems codes at most once concurrently per code value.
type Coordinator struct {
	client  Exchanger
	cfg     config.ExchangeConfig
	group   singleflight.Group
	events  events.Dispatcher
	metrics *observability.Metrics
	logger  *zap.Logger
	scope   string
}

func NewCoordinator(client Exchanger, cfg config.ExchangeConfig, opts Options) *Coordinator {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	if cfg.RetryWindow <= 0 {
		cfg.RetryWindow = 10 * time.Second
	}
	return &Coordinator{
		client:  client,
		cfg:     cfg,
		events:  opts.Events,
		metrics: opts.Metrics,
		logger:  observability.OrNop(opts.Logger).Named("exchange"),
		scope:   opts.Scope,
	}
}

// Exchange redeems code. Concurrent calls with the same code share a single
// in-flight exchange and observe the same result; the entry is dropped once
// it settles, so a later call starts afresh. ctx bounds only this caller's
// wait: the shared exchange keeps running for the other callers.
func (c *Coordinator) Exchange(ctx context.Context, code string) (domain.Session, error) {
	if code == "" {
		return domain.Session{}, ErrNoCode
	}
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(code, func() (interface{}, error) {
		return c.run(detached, code)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.RecordAttempt(opExchange, observability.OutcomeDeduplicated)
		}
		if res.Err != nil {
			return domain.Session{}, res.Err
		}
		return res.Val.(domain.Session), nil
	case <-ctx.Done():
		return domain.Session{}, ctx.Err()
	}
}

// run retries network-class failures on a fixed interval while less than
// RetryWindow has elapsed since the first attempt. Rejections surface at once.
func (c *Coordinator) run(ctx context.Context, code string) (domain.Session, error) {
	start := time.Now()
	for attempt := 1; ; attempt++ {
		actx, cancel := context.WithTimeout(ctx, c.cfg.RetryWindow)
		sess, err := c.client.Exchange(actx, code)
		cancel()

		if err == nil {
			c.metrics.RecordAttempt(opExchange, observability.OutcomeOK)
			c.settle(attempt, start, nil)
			return sess, nil
		}
		if !apperrors.IsNetwork(err) {
			c.metrics.RecordAttempt(opExchange, observability.OutcomeRejected)
			c.settle(attempt, start, err)
			return domain.Session{}, err
		}
		c.metrics.RecordAttempt(opExchange, observability.OutcomeNetwork)

		elapsed := time.Since(start)
		c.logger.Debug("exchange attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		if elapsed >= c.cfg.RetryWindow {
			c.settle(attempt, start, err)
			return domain.Session{}, err
		}
		time.Sleep(c.cfg.RetryInterval)
	}
}

func (c *Coordinator) settle(attempts int, start time.Time, err error) {
	elapsed := time.Since(start)
	payload := events.ExchangeSettledPayload{Succeeded: err == nil, Attempts: attempts, Elapsed: elapsed}
	if err != nil {
		payload.Error = err.Error()
		c.logger.Warn("exchange failed", zap.Int("attempts", attempts), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		c.logger.Info("exchange succeeded", zap.Int("attempts", attempts), zap.Duration("elapsed", elapsed))
	}
	events.Publish(c.events, c.scope, events.EventExchangeSettled, payload)
}
