package session

import (
	"net/url"
)

// CallbackPath is where the identity provider redirect lands.
const CallbackPath = "/auth/callback"

// strayAuthParams are left in the address by redirect-based flows and are
// removed once the session has resolved.
var strayAuthParams = []string{"auth"}

// Navigator exposes the client's current address. Replace swaps the visible
// address without adding a history entry.
type Navigator interface {
	Location() *url.URL
	Replace(u *url.URL)
}

// IsCallback reports whether u is the provider redirect landing carrying a
// code or a provider error.
func IsCallback(u *url.URL) bool {
	if u == nil || u.Path != CallbackPath {
		return false
	}
	q := u.Query()
	return q.Has("code") || q.Has("error")
}

// StripAuthParams returns u without stray auth query parameters and whether
// anything was removed. u itself is not modified.
func StripAuthParams(u *url.URL) (*url.URL, bool) {
	if u == nil {
		return nil, false
	}
	q := u.Query()
	changed := false
	for _, p := range strayAuthParams {
		if q.Has(p) {
			q.Del(p)
			changed = true
		}
	}
	if !changed {
		return u, false
	}
	out := *u
	out.RawQuery = q.Encode()
	return &out, true
}

func (c *Controller) inCallback() bool {
	if c.nav == nil {
		return false
	}
	return IsCallback(c.nav.Location())
}

func (c *Controller) cleanLocation() {
	if c.nav == nil {
		return
	}
	if cleaned, changed := StripAuthParams(c.nav.Location()); changed {
		c.nav.Replace(cleaned)
	}
}
