// Package visitor keeps one session controller per browser behind the web
// shell, keyed by an opaque visitor cookie.
package visitor

import (
	"net/url"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/apiclient"
	"github.com/Behnamfe76/ticket-portal/internal/exchange"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	"github.com/Behnamfe76/ticket-portal/internal/session"
)

const localsKey = "visitor"

// Visitor is the client state of one browser.
type Visitor struct {
	ID         string
	Controller *session.Controller
	Flow       *exchange.Flow
	Client     *apiclient.Client

	nav      *navigator
	lastSeen time.Time
}

// TakeReplacement returns the cleaned address recorded for path, if the
// session resolved with stray auth parameters in the address.
func (v *Visitor) TakeReplacement(path string) *url.URL {
	if v == nil || v.nav == nil {
		return nil
	}
	return v.nav.takeReplacement(path)
}

// Factory assembles a visitor around nav. It must not start the controller.
type Factory func(id string, nav session.Navigator) (*Visitor, error)

// Registry owns live visitors. Idle visitors are evicted and their
// controllers stopped.
type Registry struct {
	build  Factory
	idle   time.Duration
	limit  int
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*Visitor
}

func NewRegistry(build Factory, idle time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		build:    build,
		idle:     idle,
		logger:   observability.OrNop(logger).Named("visitors"),
		now:      time.Now,
		visitors: make(map[string]*Visitor),
	}
}

// WithLimit caps the number of live visitors. Creating a visitor beyond the
// cap evicts the least recently seen one. Zero means no cap.
func (r *Registry) WithLimit(limit int) *Registry {
	r.mu.Lock()
	r.limit = limit
	r.mu.Unlock()
	return r
}

// Acquire returns the visitor for id, creating and starting it on first
// sight. location is the address of the current request.
func (r *Registry) Acquire(id string, location *url.URL) (*Visitor, bool, error) {
	r.mu.Lock()
	if v, ok := r.visitors[id]; ok {
		v.lastSeen = r.now()
		v.nav.visit(location)
		r.mu.Unlock()
		return v, false, nil
	}

	nav := newNavigator(location)
	v, err := r.build(id, nav)
	if err != nil {
		r.mu.Unlock()
		return nil, false, err
	}
	v.ID = id
	v.nav = nav
	v.lastSeen = r.now()
	evicted := r.makeRoomLocked()
	r.visitors[id] = v
	r.mu.Unlock()

	for _, old := range evicted {
		old.Controller.Stop()
	}
	if len(evicted) > 0 {
		r.logger.Info("evicted visitors over limit", zap.Int("count", len(evicted)), zap.Int("limit", r.limit))
	}
	r.logger.Debug("visitor created", zap.String("visitor", id))
	v.Controller.Start()
	return v, true, nil
}

// makeRoomLocked drops least recently seen visitors until one more fits.
func (r *Registry) makeRoomLocked() []*Visitor {
	if r.limit <= 0 {
		return nil
	}
	var evicted []*Visitor
	for len(r.visitors) >= r.limit {
		var oldest *Visitor
		for _, v := range r.visitors {
			if oldest == nil || v.lastSeen.Before(oldest.lastSeen) {
				oldest = v
			}
		}
		delete(r.visitors, oldest.ID)
		evicted = append(evicted, oldest)
	}
	return evicted
}

// Sweep stops and forgets visitors idle for longer than the idle timeout.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var evicted []*Visitor
	for id, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			evicted = append(evicted, v)
			delete(r.visitors, id)
		}
	}
	r.mu.Unlock()

	for _, v := range evicted {
		v.Controller.Stop()
	}
	if len(evicted) > 0 {
		r.logger.Info("evicted idle visitors", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Len returns the number of live visitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Close stops every visitor.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.visitors
	r.visitors = make(map[string]*Visitor)
	r.mu.Unlock()
	for _, v := range all {
		v.Controller.Stop()
	}
}

// Store attaches v to the request.
func Store(c *fiber.Ctx, v *Visitor) {
	c.Locals(localsKey, v)
	c.SetUserContext(session.WithController(c.UserContext(), v.Controller))
}

// FromCtx returns the visitor of the request, or nil.
func FromCtx(c *fiber.Ctx) *Visitor {
	v, _ := c.Locals(localsKey).(*Visitor)
	return v
}
