// Package guard decides, from session state alone, whether a navigation
// proceeds. Decisions are pure; hosts render them.
package guard

import (
	"net/url"

	"github.com/Behnamfe76/ticket-portal/internal/auth"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
	"github.com/Behnamfe76/ticket-portal/internal/session"
)

// Kind is the outcome of a guard.
type Kind int

const (
	// Wait means the session is still loading; render a neutral waiting state.
	Wait Kind = iota
	Allow
	Redirect
	// Deny means signed in but lacking a required role.
	Deny
)

func (k Kind) String() string {
	switch k {
	case Wait:
		return "wait"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Deny:
		return "deny"
	}
	return "unknown"
}

// Decision is a guard outcome. Target is set for Redirect.
type Decision struct {
	Kind   Kind
	Target string
}

// RequireAuthenticated lets authenticated sessions through and sends
// everyone else to loginPath, carrying the requested location as "next".
func RequireAuthenticated(snap session.Snapshot, requested *url.URL, loginPath string) Decision {
	switch snap.State {
	case domain.AuthStateAuthenticated:
		return Decision{Kind: Allow}
	case domain.AuthStateUnauthenticated:
		return Decision{Kind: Redirect, Target: LoginTarget(loginPath, requested)}
	default:
		return Decision{Kind: Wait}
	}
}

// RequireGuest keeps authenticated sessions away from guest-only surfaces
// such as login and signup.
func RequireGuest(snap session.Snapshot, landing string) Decision {
	switch snap.State {
	case domain.AuthStateAuthenticated:
		return Decision{Kind: Redirect, Target: landing}
	case domain.AuthStateUnauthenticated:
		return Decision{Kind: Allow}
	default:
		return Decision{Kind: Wait}
	}
}

// RequireRole is RequireAuthenticated plus a role check on the user.
func RequireRole(snap session.Snapshot, requested *url.URL, loginPath string, roles ...domain.Role) Decision {
	d := RequireAuthenticated(snap, requested, loginPath)
	if d.Kind != Allow {
		return d
	}
	if !auth.HasAnyRole(snap.User, roles...) {
		return Decision{Kind: Deny}
	}
	return d
}

// LoginTarget builds the login location for a rejected navigation. The
// return target keeps the path, query and fragment of requested.
func LoginTarget(loginPath string, requested *url.URL) string {
	if requested == nil {
		return loginPath
	}
	next := requested.EscapedPath()
	if next == "" {
		next = "/"
	}
	if requested.RawQuery != "" {
		next += "?" + requested.RawQuery
	}
	if requested.Fragment != "" {
		next += "#" + requested.EscapedFragment()
	}
	return loginPath + "?" + url.Values{"next": {next}}.Encode()
}
