package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/auth"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

const opVerify = "verify"

type verdict struct {
	state      domain.AuthState
	user       *domain.User
	clearToken bool
	reason     string
}

// RefreshAuth re-verifies the session against GET /api/me and returns the
// resulting state. A call supersedes any verification already in flight; a
// superseded verification applies nothing. ctx only bounds how long the
// caller waits: when it ends first, the verification keeps running and the
// current (loading) state is returned.
func (c *Controller) RefreshAuth(ctx context.Context) domain.AuthState {
	if c == nil {
		return domain.AuthStateLoading
	}

	c.mu.Lock()
	if c.stopped {
		state := c.state
		c.mu.Unlock()
		return state
	}
	c.supersedeLocked()
	gen := c.gen
	vctx, cancel := context.WithCancel(c.root)
	c.cancel = cancel
	old := c.transitionLocked(domain.AuthStateLoading, nil)
	c.mu.Unlock()

	if old != domain.AuthStateLoading {
		c.publish(old, domain.AuthStateLoading, "", "refresh")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		c.runVerification(vctx, gen)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return c.Snapshot().State
}

func (c *Controller) runVerification(ctx context.Context, gen uint64) {
	token, err := c.store.Get(ctx)
	if err != nil {
		c.logger.Warn("read stored credential failed", zap.Error(err))
		token = ""
	}
	if !c.adoptToken(gen, token) {
		return
	}

	if token == "" && c.inCallback() {
		// The callback flow establishes this session, not the verifier.
		c.apply(gen, verdict{state: domain.AuthStateUnauthenticated, reason: "callback"})
		return
	}

	v, ok := c.verify(ctx, token)
	if !ok {
		return
	}
	c.apply(gen, v)
}

func (c *Controller) adoptToken(gen uint64, token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.stopped {
		return false
	}
	c.token = token
	return true
}

// verify runs the bounded retry loop. ok is false when ctx was cancelled,
// in which case nothing may be applied.
func (c *Controller) verify(ctx context.Context, token string) (verdict, bool) {
	if c.backend == nil {
		return verdict{state: domain.AuthStateUnauthenticated, reason: "no backend"}, true
	}

	headers := auth.BearerHeaders(token)
	attempts := 1 + c.cfg.VerifyRetries

	for attempt := 1; attempt <= attempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, c.cfg.VerifyTimeout)
		user, err := c.backend.Me(actx, headers)
		timedOut := errors.Is(actx.Err(), context.DeadlineExceeded)
		cancel()

		if ctx.Err() != nil {
			c.metrics.RecordAttempt(opVerify, observability.OutcomeCancelled)
			return verdict{}, false
		}

		switch {
		case err == nil:
			c.metrics.RecordAttempt(opVerify, observability.OutcomeOK)
			return verdict{state: domain.AuthStateAuthenticated, user: &user, reason: "verify"}, true
		case apperrors.IsUnauthenticated(err):
			c.metrics.RecordAttempt(opVerify, observability.OutcomeUnauthorized)
			return verdict{state: domain.AuthStateUnauthenticated, clearToken: token != "", reason: "verify"}, true
		case timedOut:
			c.metrics.RecordAttempt(opVerify, observability.OutcomeTimeout)
		case apperrors.IsNetwork(err):
			c.metrics.RecordAttempt(opVerify, observability.OutcomeNetwork)
		default:
			c.metrics.RecordAttempt(opVerify, observability.OutcomeRejected)
		}

		c.logger.Debug("verification attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("of", attempts),
			zap.Bool("timeout", timedOut),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}

		delay := c.cfg.VerifyBackoff * time.Duration(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			c.metrics.RecordAttempt(opVerify, observability.OutcomeCancelled)
			return verdict{}, false
		}
	}

	c.logger.Warn("verification retries exhausted", zap.Int("attempts", attempts))
	return verdict{state: domain.AuthStateUnauthenticated, reason: "verify"}, true
}

func (c *Controller) apply(gen uint64, v verdict) {
	c.mu.Lock()
	if gen != c.gen || c.stopped {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	if v.clearToken {
		if err := c.store.Clear(c.root); err != nil {
			c.logger.Warn("clear stale credential failed", zap.Error(err))
		}
		c.token = ""
	}
	old := c.transitionLocked(v.state, v.user)
	c.mu.Unlock()

	userID := ""
	if v.user != nil {
		userID = v.user.ID
	}
	c.logger.Debug("session resolved", zap.String("state", string(v.state)), zap.String("reason", v.reason))
	c.publish(old, v.state, userID, v.reason)
	c.cleanLocation()
}
