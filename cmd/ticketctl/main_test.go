package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Behnamfe76/ticket-portal/internal/apiclient"
	"github.com/Behnamfe76/ticket-portal/internal/tokenstore"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("TOKEN_STORE", "")
	t.Setenv("TOKEN_STORE_DIR", "")
	return filepath.Join(dir, "ticket-portal")
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

type backend struct {
	token      string
	exchanges  atomic.Int32
	logins     atomic.Int32
	healthDown atomic.Bool
	logoutAuth atomic.Value
}

func (b *backend) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+apiclient.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		b.logins.Add(1)
		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":"one-time"}`))
	})
	mux.HandleFunc("POST "+apiclient.PathExchange, func(w http.ResponseWriter, r *http.Request) {
		b.exchanges.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken": b.token,
			"user":        map[string]any{"id": "u1", "email": "a@b.com", "role": "customer"},
		})
	})
	mux.HandleFunc("GET "+apiclient.PathMe, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+b.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"a@b.com","name":"Ada"}}`))
	})
	mux.HandleFunc("POST "+apiclient.PathLogout, func(w http.ResponseWriter, r *http.Request) {
		b.logoutAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET "+apiclient.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		if b.healthDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestLoginWhoamiStatusLogout(t *testing.T) {
	dir := withTmpConfig(t)
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	b := &backend{token: signedToken(t, exp)}
	srv := b.server(t)

	code, out, errOut := runCLI(t, "-api", srv.URL, "login", "-email", "a@b.com", "-password", "secret")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "signed in as a@b.com (next: /app)")

	stored, err := tokenstore.NewFile(dir, cliScope).Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, b.token, stored)

	code, out, _ = runCLI(t, "-api", srv.URL, "whoami")
	require.Equal(t, 0, code)
	require.Contains(t, out, `"name": "Ada"`)

	code, out, _ = runCLI(t, "-api", srv.URL, "status")
	require.Equal(t, 0, code)
	var rep statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, "authenticated", string(rep.State))
	require.True(t, rep.Credential)
	require.Equal(t, exp.Format(time.RFC3339), rep.ExpiresAt)

	code, out, _ = runCLI(t, "-api", srv.URL, "logout")
	require.Equal(t, 0, code)
	require.Contains(t, out, "signed out")
	require.Equal(t, "Bearer "+b.token, b.logoutAuth.Load())

	stored, _ = tokenstore.NewFile(dir, cliScope).Get(context.Background())
	require.Empty(t, stored)

	code, _, errOut = runCLI(t, "-api", srv.URL, "whoami")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "not signed in")
}

func TestLogin_RejectedCredentials(t *testing.T) {
	withTmpConfig(t)
	b := &backend{token: "opaque"}
	srv := b.server(t)

	code, _, errOut := runCLI(t, "-api", srv.URL, "login", "-email", "a@b.com", "-password", "nope")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "invalid credentials")
	require.Zero(t, b.exchanges.Load())
}

func TestLogin_WaitsForBackendReadiness(t *testing.T) {
	withTmpConfig(t)
	b := &backend{token: "opaque"}
	b.healthDown.Store(true)
	srv := b.server(t)

	code, _, errOut := runCLI(t, "-api", srv.URL, "login", "-email", "a@b.com", "-password", "secret", "-ready-wait", "150ms")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "not ready")
	require.Zero(t, b.logins.Load())

	b.healthDown.Store(false)
	code, out, errOut := runCLI(t, "-api", srv.URL, "login", "-email", "a@b.com", "-password", "secret", "-ready-wait", "2s")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "signed in as a@b.com")
	require.EqualValues(t, 1, b.logins.Load())
}

func TestCallback(t *testing.T) {
	withTmpConfig(t)
	b := &backend{token: "opaque"}
	srv := b.server(t)

	code, _, errOut := runCLI(t, "-api", srv.URL, "callback", "-url", "http://portal/auth/callback?error=access_denied")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "access_denied")
	require.Zero(t, b.exchanges.Load())

	code, out, _ := runCLI(t, "-api", srv.URL, "callback", "-url", "http://portal/auth/callback?code=abc123&next=/app/tickets")
	require.Equal(t, 0, code)
	require.Contains(t, out, "next: /app/tickets")
	require.EqualValues(t, 1, b.exchanges.Load())

	code, out, _ = runCLI(t, "-api", srv.URL, "status")
	require.Equal(t, 0, code)
	require.Contains(t, out, `"expiresAt": "unknown"`)
}

func TestWaitReadyAndUsage(t *testing.T) {
	withTmpConfig(t)
	srv := (&backend{}).server(t)

	code, out, _ := runCLI(t, "-api", srv.URL, "wait-ready")
	require.Equal(t, 0, code)
	require.Contains(t, out, "backend ready")

	code, _, _ = runCLI(t, "-api", srv.URL, "-timeout", "300ms", "wait-ready")
	require.Equal(t, 0, code)

	code, _, errOut := runCLI(t)
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "Commands:")

	code, _, _ = runCLI(t, "-api", srv.URL, "login")
	require.Equal(t, 2, code)

	code, out, _ = runCLI(t, "version")
	require.Equal(t, 0, code)
	require.Contains(t, out, "ticketctl dev")
}
