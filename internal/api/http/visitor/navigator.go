package visitor

import (
	"net/url"
	"sync"
)

// navigator is the session.Navigator of one visitor. Location follows the
// latest request; Replace records the cleaned address so the next guarded
// response can redirect the browser to it.
type navigator struct {
	mu       sync.Mutex
	location *url.URL
	replaced *url.URL
}

func newNavigator(location *url.URL) *navigator {
	return &navigator{location: location}
}

func (n *navigator) Location() *url.URL {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *navigator) Replace(u *url.URL) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = u
	n.replaced = u
}

func (n *navigator) visit(u *url.URL) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.replaced != nil && u.Path != n.replaced.Path {
		n.replaced = nil
	}
	n.location = u
}

// takeReplacement returns a pending address replacement for path, once.
func (n *navigator) takeReplacement(path string) *url.URL {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.replaced
	if r == nil || r.Path != path {
		return nil
	}
	n.replaced = nil
	return r
}
