// Package readiness answers whether the backend is currently reachable.
package readiness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/events"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
)

const opProbe = "probe"

// Checker probes the health endpoint of origin. Any nil error means ready.
type Checker interface {
	HealthAt(ctx context.Context, origin string) error
}

// Options carries optional collaborators.
type Options struct {
	Events  events.Dispatcher
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Prober polls a health endpoint until it answers, then stops. Failed or
// timed out probes are retried after a fixed delay with no attempt limit.
type Prober struct {
	checker Checker
	cfg     config.ReadinessConfig
	events  events.Dispatcher
	metrics *observability.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	origin  string
	ready   bool
	readyCh chan struct{}
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewProber(checker Checker, origin string, cfg config.ReadinessConfig, opts Options) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 1200 * time.Millisecond
	}
	return &Prober{
		checker: checker,
		cfg:     cfg,
		events:  opts.Events,
		metrics: opts.Metrics,
		logger:  observability.OrNop(opts.Logger).Named("readiness"),
		origin:  origin,
		readyCh: make(chan struct{}),
	}
}

// Start begins probing. It is a no-op while already started.
func (p *Prober) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.launchLocked()
}

// Stop cancels the outstanding probe and any pending retry, and waits for
// the loop to exit. No state changes after Stop returns.
func (p *Prober) Stop() {
	p.mu.Lock()
	p.running = false
	done := p.haltLocked()
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Retarget switches to a new origin. Readiness resets and probing restarts
// if the prober is started.
func (p *Prober) Retarget(origin string) {
	p.mu.Lock()
	if origin == p.origin {
		p.mu.Unlock()
		return
	}
	done := p.haltLocked()
	p.mu.Unlock()
	if done != nil {
		<-done
	}

	p.mu.Lock()
	p.origin = origin
	wasReady := p.ready
	p.ready = false
	p.readyCh = make(chan struct{})
	if p.running {
		p.launchLocked()
	}
	p.mu.Unlock()

	if wasReady {
		p.publish(origin, false)
	}
}

// Ready reports the last probe verdict.
func (p *Prober) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Origin returns the origin currently probed.
func (p *Prober) Origin() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.origin
}

// WaitReady blocks until the backend is ready or ctx ends.
func (p *Prober) WaitReady(ctx context.Context) error {
	for {
		p.mu.Lock()
		ready, ch := p.ready, p.readyCh
		p.mu.Unlock()
		if ready {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Prober) launchLocked() {
	if p.ready {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go func() {
		defer close(done)
		p.loop(ctx, p.origin)
	}()
}

func (p *Prober) haltLocked() chan struct{} {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	done := p.done
	p.cancel = nil
	p.done = nil
	return done
}

func (p *Prober) loop(ctx context.Context, origin string) {
	for attempt := 1; ; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		err := p.checker.HealthAt(pctx, origin)
		cancel()
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			p.metrics.RecordAttempt(opProbe, observability.OutcomeOK)
			p.logger.Info("backend ready", zap.String("origin", origin), zap.Int("attempt", attempt))
			p.mark(ctx, true)
			return
		}
		p.metrics.RecordAttempt(opProbe, observability.OutcomeNetwork)
		p.logger.Debug("backend not ready", zap.String("origin", origin), zap.Int("attempt", attempt), zap.Error(err))
		p.mark(ctx, false)

		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (p *Prober) mark(ctx context.Context, ready bool) {
	p.mu.Lock()
	if ctx.Err() != nil || p.ready == ready {
		p.mu.Unlock()
		return
	}
	p.ready = ready
	if ready {
		close(p.readyCh)
	} else {
		p.readyCh = make(chan struct{})
	}
	origin := p.origin
	p.mu.Unlock()

	p.publish(origin, ready)
}

func (p *Prober) publish(origin string, ready bool) {
	events.Publish(p.events, "", events.EventReadinessChanged, events.ReadinessChangedPayload{Endpoint: origin, Ready: ready})
}
