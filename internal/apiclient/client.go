// Package apiclient is the typed HTTP client for the ticket backend's
// authentication endpoints. Transport failures come back wrapped in
// util.ErrNetwork; non-2xx answers come back as *util.DomainError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/api/dto"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

// Endpoint paths, relative to the API base origin.
const (
	PathMe             = "/api/me"
	PathLogin          = "/api/login"
	PathExchange       = "/api/auth/exchange"
	PathLogout         = "/api/logout"
	PathSignup         = "/api/signup"
	PathForgotPassword = "/api/forgot-password"
	PathResetPassword  = "/api/reset-password"
	PathHealth         = "/health"
)

const maxBodyBytes = 1 << 20

// Client calls the backend on behalf of one client session. Each Client owns
// a cookie jar, so same-origin cookies set by the backend ride along on
// later calls the way a browser would send them.
type Client struct {
	baseURL       string
	backendOrigin string
	http          *http.Client
	logger        *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Jar is kept if set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBackendOrigin overrides the origin probed by Health.
func WithBackendOrigin(origin string) Option {
	return func(c *Client) { c.backendOrigin = strings.TrimRight(origin, "/") }
}

// New builds a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	c := &Client{baseURL: base, backendOrigin: base}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.http.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.http.Jar = jar
	}
	c.logger = observability.OrNop(c.logger).Named("apiclient")
	return c
}

// BackendOrigin returns the origin Health probes.
func (c *Client) BackendOrigin() string {
	return c.backendOrigin
}

// Me fetches the current user. headers carries the bearer credential, if any.
func (c *Client) Me(ctx context.Context, headers map[string]string) (domain.User, error) {
	var out dto.MeResponse
	err := c.do(ctx, http.MethodGet, c.baseURL+PathMe, headers, nil, &out)
	return out.User, err
}

// Login submits credentials and returns the one-time code to exchange.
func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (string, error) {
	var out dto.CodeResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+PathLogin, nil, req, &out); err != nil {
		return "", err
	}
	if out.Code == "" {
		return "", apperrors.NewDomainError("MISSING_CODE", "The server did not return a sign-in code.", http.StatusBadGateway, nil)
	}
	return out.Code, nil
}

// Exchange redeems a one-time authorization code for a session.
func (c *Client) Exchange(ctx context.Context, code string) (domain.Session, error) {
	var out dto.ExchangeResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+PathExchange, nil, dto.ExchangeRequest{Code: code}, &out); err != nil {
		return domain.Session{}, err
	}
	if out.AccessToken == "" {
		return domain.Session{}, apperrors.NewDomainError("MISSING_TOKEN", "The server did not return a session.", http.StatusBadGateway, nil)
	}
	return domain.Session{AccessToken: out.AccessToken, User: out.User}, nil
}

// Logout asks the backend to drop server-side session state. The body is ignored.
func (c *Client) Logout(ctx context.Context, headers map[string]string) error {
	return c.do(ctx, http.MethodPost, c.baseURL+PathLogout, headers, nil, nil)
}

// Signup registers a local-credential account. Backends that sign the new
// user in immediately answer with a code, returned here.
func (c *Client) Signup(ctx context.Context, req dto.SignupRequest) (dto.CodeResponse, error) {
	var out dto.CodeResponse
	err := c.do(ctx, http.MethodPost, c.baseURL+PathSignup, nil, req, &out)
	return out, err
}

// ForgotPassword starts the password reset flow.
func (c *Client) ForgotPassword(ctx context.Context, req dto.ForgotPasswordRequest) (dto.MessageResponse, error) {
	var out dto.MessageResponse
	err := c.do(ctx, http.MethodPost, c.baseURL+PathForgotPassword, nil, req, &out)
	return out, err
}

// ResetPassword completes the password reset flow.
func (c *Client) ResetPassword(ctx context.Context, req dto.ResetPasswordRequest) (dto.MessageResponse, error) {
	var out dto.MessageResponse
	err := c.do(ctx, http.MethodPost, c.baseURL+PathResetPassword, nil, req, &out)
	return out, err
}

// UpdateMe changes profile fields and returns the fresh user projection.
func (c *Client) UpdateMe(ctx context.Context, headers map[string]string, req dto.UpdateMeRequest) (domain.User, error) {
	var out dto.MeResponse
	err := c.do(ctx, http.MethodPut, c.baseURL+PathMe, headers, req, &out)
	return out.User, err
}

// Health probes the backend origin. Any 2xx counts as ready.
func (c *Client) Health(ctx context.Context) error {
	return c.HealthAt(ctx, c.backendOrigin)
}

// HealthAt probes the health endpoint of an arbitrary origin.
func (c *Client) HealthAt(ctx context.Context, origin string) error {
	return c.do(ctx, http.MethodGet, strings.TrimRight(origin, "/")+PathHealth, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, in, out any) error {
	op := method + " " + strings.TrimPrefix(url, c.baseURL)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("op", op), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return apperrors.NetworkError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NetworkError(op, err)
	}
	c.logger.Debug("request completed",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.FromResponse(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewDomainError("BAD_RESPONSE", "The server sent an unreadable response.", resp.StatusCode, nil)
	}
	return nil
}
