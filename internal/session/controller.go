// Package session owns the client's authentication state machine.
//
// A Controller is the single authority for "who is signed in" on one client.
// Consumers read it through Snapshot, AuthHeaders and Wait, and change it only
// through Login, Logout and RefreshAuth. A nil *Controller is an inert
// fallback: it reports loading, has no user and ignores every operation.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/auth"
	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
	"github.com/Behnamfe76/ticket-portal/internal/events"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	"github.com/Behnamfe76/ticket-portal/internal/tokenstore"
)

// ErrEmptyCredential is returned by Login for a session without a token.
var ErrEmptyCredential = errors.New("session has no access token")

// Backend is the part of the API the controller talks to.
type Backend interface {
	Me(ctx context.Context, headers map[string]string) (domain.User, error)
	Logout(ctx context.Context, headers map[string]string) error
}

// Snapshot is a consistent read of the controller state.
type Snapshot struct {
	State           domain.AuthState `json:"state"`
	User            *domain.User     `json:"user,omitempty"`
	IsLoading       bool             `json:"isLoading"`
	IsAuthenticated bool             `json:"isAuthenticated"`
}

func newSnapshot(state domain.AuthState, user *domain.User) Snapshot {
	return Snapshot{
		State:           state,
		User:            user,
		IsLoading:       state == domain.AuthStateLoading,
		IsAuthenticated: state == domain.AuthStateAuthenticated,
	}
}

// Dependencies bundles collaborators of a Controller.
type Dependencies struct {
	Store     tokenstore.Store
	Backend   Backend
	Navigator Navigator
	Events    events.Dispatcher
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	// Scope names the client in logs and events (visitor id, "cli").
	Scope string
}

// Controller is the session state machine of one client.
type Controller struct {
	cfg     config.SessionConfig
	store   tokenstore.Store
	backend Backend
	nav     Navigator
	events  events.Dispatcher
	metrics *observability.Metrics
	logger  *zap.Logger
	scope   string

	root       context.Context
	rootCancel context.CancelFunc

	mu       sync.Mutex
	state    domain.AuthState
	user     *domain.User
	token    string
	gen      uint64
	cancel   context.CancelFunc
	resolved chan struct{}
	started  bool
	stopped  bool
}

// New builds a controller in the loading state. Call Start to run the
// initial verification.
func New(cfg config.SessionConfig, deps Dependencies) *Controller {
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 8 * time.Second
	}
	if cfg.VerifyRetries < 0 {
		cfg.VerifyRetries = 0
	}
	store := deps.Store
	if store == nil {
		store = tokenstore.NewMemory()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:        cfg,
		store:      store,
		backend:    deps.Backend,
		nav:        deps.Navigator,
		events:     deps.Events,
		metrics:    deps.Metrics,
		logger:     observability.OrNop(deps.Logger).Named("session").With(zap.String("scope", deps.Scope)),
		scope:      deps.Scope,
		root:       root,
		rootCancel: cancel,
		state:      domain.AuthStateLoading,
		resolved:   make(chan struct{}),
	}
}

// Start runs the initial verification in the background. It is the
// equivalent of the controller becoming active and is idempotent.
func (c *Controller) Start() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.RefreshAuth(c.root)
}

// Stop tears the controller down: the in-flight verification is cancelled
// and no later result is applied.
func (c *Controller) Stop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.rootCancel()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	if c == nil {
		return newSnapshot(domain.AuthStateLoading, nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return newSnapshot(c.state, c.user)
}

// Session returns the established session, if authenticated.
func (c *Controller) Session() (domain.Session, bool) {
	if c == nil {
		return domain.Session{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.AuthStateAuthenticated || c.user == nil {
		return domain.Session{}, false
	}
	return domain.Session{AccessToken: c.token, User: *c.user}, true
}

// AuthHeaders returns {"Authorization": "Bearer <token>"} when a bearer
// credential is held, otherwise an empty map. It never blocks on I/O.
func (c *Controller) AuthHeaders() map[string]string {
	if c == nil {
		return map[string]string{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return auth.BearerHeaders(c.token)
}

// Wait blocks until the state is no longer loading, or ctx ends. The last
// observed snapshot is returned either way.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	if c == nil {
		return newSnapshot(domain.AuthStateLoading, nil), nil
	}
	for {
		c.mu.Lock()
		snap := newSnapshot(c.state, c.user)
		ch := c.resolved
		c.mu.Unlock()
		if !snap.IsLoading {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Login persists the session credential and marks the client authenticated.
// Any verification still in flight is superseded. A failure to persist is
// logged; the session stays usable for the life of the controller.
func (c *Controller) Login(ctx context.Context, sess domain.Session) error {
	if c == nil {
		return nil
	}
	if sess.AccessToken == "" {
		return ErrEmptyCredential
	}
	user := sess.User

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.supersedeLocked()
	if err := c.store.Set(ctx, sess.AccessToken); err != nil {
		c.logger.Warn("persist credential failed", zap.Error(err))
	}
	c.token = sess.AccessToken
	old := c.transitionLocked(domain.AuthStateAuthenticated, &user)
	c.mu.Unlock()

	fields := []zap.Field{zap.String("user_id", user.ID), zap.String("provider", string(user.Provider))}
	if exp, ok := auth.PeekExpiry(sess.AccessToken); ok {
		fields = append(fields, zap.Time("expires_at", exp))
	}
	c.logger.Info("signed in", fields...)
	c.publish(old, domain.AuthStateAuthenticated, user.ID, "login")
	return nil
}

// Logout notifies the backend, best effort, then unconditionally clears the
// stored credential and marks the client unauthenticated.
func (c *Controller) Logout(ctx context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.supersedeLocked()
	token := c.token
	if token == "" {
		// Not loaded yet in this process: revoke what is persisted.
		token, _ = c.store.Get(ctx)
	}
	headers := auth.BearerHeaders(token)
	c.mu.Unlock()

	defer c.clearLocal(ctx, "logout")

	if c.backend == nil {
		return
	}
	lctx, cancel := context.WithTimeout(ctx, c.cfg.VerifyTimeout)
	defer cancel()
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Warn("backend logout panicked", zap.Any("panic", r))
			}
		}()
		if err := c.backend.Logout(lctx, headers); err != nil {
			c.logger.Warn("backend logout failed", zap.Error(err))
		}
	}()
}

func (c *Controller) clearLocal(ctx context.Context, reason string) {
	c.mu.Lock()
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("clear credential failed", zap.Error(err))
	}
	c.token = ""
	old := c.transitionLocked(domain.AuthStateUnauthenticated, nil)
	c.mu.Unlock()

	c.logger.Info("signed out", zap.String("reason", reason))
	c.publish(old, domain.AuthStateUnauthenticated, "", reason)
}

// supersedeLocked cancels the verification in flight, if any, and
// invalidates its generation so its result is dropped.
func (c *Controller) supersedeLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// transitionLocked moves to state and returns the previous one. Leaving
// loading releases waiters; entering it arms a new release channel.
func (c *Controller) transitionLocked(state domain.AuthState, user *domain.User) domain.AuthState {
	old := c.state
	c.state = state
	if state != domain.AuthStateLoading {
		c.user = user
	}
	switch {
	case old == domain.AuthStateLoading && state != domain.AuthStateLoading:
		close(c.resolved)
	case old != domain.AuthStateLoading && state == domain.AuthStateLoading:
		c.resolved = make(chan struct{})
	}
	return old
}

func (c *Controller) publish(old, state domain.AuthState, userID, reason string) {
	if old == state && reason == "verify" {
		return
	}
	events.Publish(c.events, c.scope, events.EventSessionChanged, events.SessionChangedPayload{
		OldState: old,
		NewState: state,
		UserID:   userID,
		Reason:   reason,
	})
}
