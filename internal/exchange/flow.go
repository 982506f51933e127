package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Behnamfe76/ticket-portal/internal/api/dto"
	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

// Phase is the caller-visible stage of a callback flow.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// State is what the callback screen renders.
type State struct {
	Phase       Phase         `json:"phase"`
	Message     string        `json:"message,omitempty"`
	CanRetry    bool          `json:"canRetry"`
	Destination string        `json:"destination,omitempty"`
	Delay       time.Duration `json:"delay,omitempty"`
	Err         error         `json:"-"`
}

// SessionSink receives the established session.
type SessionSink interface {
	Login(ctx context.Context, sess domain.Session) error
}

// CredentialSigner trades email and password for a one-time code.
type CredentialSigner interface {
	Login(ctx context.Context, req dto.LoginRequest) (string, error)
}

// Flow drives the callback page of one client: redeem the code, establish
// the session, then point at the destination. Safe for concurrent use.
type Flow struct {
	coord  *Coordinator
	sink   SessionSink
	signer CredentialSigner
	cfg    config.ExchangeConfig

	mu          sync.Mutex
	state       State
	code        string
	destination string
}

// NewFlow builds a flow. signer may be nil when credential sign-in is unused.
func NewFlow(coord *Coordinator, sink SessionSink, signer CredentialSigner, cfg config.ExchangeConfig) *Flow {
	if cfg.DefaultDestination == "" {
		cfg.DefaultDestination = "/app"
	}
	return &Flow{
		coord:  coord,
		sink:   sink,
		signer: signer,
		cfg:    cfg,
		state:  State{Phase: PhaseIdle},
	}
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// HandleCallback processes the query of a provider redirect landing.
// A provider error or a missing code fails without any network call.
func (f *Flow) HandleCallback(ctx context.Context, query url.Values) State {
	dest := SafeDestination(query.Get("next"), f.cfg.DefaultDestination)

	if providerErr := query.Get("error"); providerErr != "" {
		return f.fail(dest, State{
			Message:  ProviderErrorMessage(providerErr, query.Get("error_description")),
			CanRetry: false,
			Err:      fmt.Errorf("%w: %s", ErrProviderDenied, providerErr),
		})
	}
	code := query.Get("code")
	if code == "" {
		return f.fail(dest, State{
			Message:  "The sign-in link is incomplete. Please start signing in again.",
			CanRetry: false,
			Err:      ErrNoCode,
		})
	}

	f.mu.Lock()
	f.code = code
	f.destination = dest
	f.mu.Unlock()
	return f.redeem(ctx)
}

// Retry starts a fresh exchange for the code of the last callback. It does
// nothing when that callback carried no code or the code was already redeemed.
func (f *Flow) Retry(ctx context.Context) State {
	f.mu.Lock()
	hasCode := f.code != ""
	state := f.state
	f.mu.Unlock()
	if !hasCode || state.Phase == PhaseLoading || state.Phase == PhaseSuccess {
		return state
	}
	return f.redeem(ctx)
}

// SignIn performs credential sign-in: POST /api/login yields a one-time code
// which is redeemed like a callback code.
func (f *Flow) SignIn(ctx context.Context, email, password, next string) State {
	dest := SafeDestination(next, f.cfg.DefaultDestination)
	if f.signer == nil {
		return f.fail(dest, State{Message: apperrors.GenericMessage, Err: ErrNoCode})
	}

	f.mu.Lock()
	f.code = ""
	f.mu.Unlock()
	f.setLoading(dest)
	code, err := f.signer.Login(ctx, dto.LoginRequest{Email: email, Password: password})
	if err != nil {
		return f.fail(dest, State{Message: apperrors.UserMessage(err), CanRetry: false, Err: err})
	}
	if code == "" {
		return f.fail(dest, State{Message: apperrors.GenericMessage, Err: ErrNoCode})
	}

	f.mu.Lock()
	f.code = code
	f.destination = dest
	f.mu.Unlock()
	return f.redeem(ctx)
}

func (f *Flow) redeem(ctx context.Context) State {
	f.mu.Lock()
	code, dest := f.code, f.destination
	f.mu.Unlock()

	f.setLoading(dest)
	sess, err := f.coord.Exchange(ctx, code)
	if err == nil {
		err = f.sink.Login(ctx, sess)
	}
	if err != nil {
		return f.fail(dest, State{Message: apperrors.UserMessage(err), CanRetry: true, Err: err})
	}

	return f.set(State{Phase: PhaseSuccess, Destination: dest, Delay: f.cfg.SuccessDelay})
}

func (f *Flow) setLoading(dest string) {
	f.set(State{Phase: PhaseLoading, Destination: dest})
}

func (f *Flow) fail(dest string, s State) State {
	s.Phase = PhaseError
	s.Destination = dest
	return f.set(s)
}

func (f *Flow) set(s State) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
	return s
}

// SafeDestination accepts only same-origin relative paths. Anything else,
// including protocol-relative "//host" forms, yields fallback. Control
// characters are refused outright since browsers drop tab and newline
// before resolving a location.
func SafeDestination(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	for i := 0; i < len(next); i++ {
		if next[i] < 0x20 || next[i] == 0x7f {
			return fallback
		}
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

var providerMessages = map[string]string{
	"access_denied":              "Sign-in was cancelled or access was denied",
	"temporarily_unavailable":    "The identity provider is temporarily unavailable",
	"server_error":               "The identity provider reported an error",
	"invalid_request":            "The sign-in request was rejected",
	"unauthorized_client":        "This application is not allowed to sign in with the provider",
	"interaction_required":       "The identity provider needs you to sign in again",
	"account_selection_required": "Choose an account to continue",
}

// ProviderErrorMessage turns an OAuth error parameter into display text.
func ProviderErrorMessage(code, description string) string {
	text, ok := providerMessages[code]
	if !ok {
		text = "Sign-in failed"
	}
	msg := fmt.Sprintf("%s (%s).", text, code)
	if d := strings.TrimSpace(description); d != "" {
		msg += " " + d
	}
	return msg
}
