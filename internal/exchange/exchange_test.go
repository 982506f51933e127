package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Behnamfe76/ticket-portal/internal/api/dto"
	"github.com/Behnamfe76/ticket-portal/internal/apiclient"
	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
	"github.com/Behnamfe76/ticket-portal/internal/events"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	"github.com/Behnamfe76/ticket-portal/internal/session"
	"github.com/Behnamfe76/ticket-portal/internal/tokenstore"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

type scriptedExchanger struct {
	calls   atomic.Int32
	gate    chan struct{}
	respond func(call int32) (domain.Session, error)
}

func (s *scriptedExchanger) Exchange(ctx context.Context, code string) (domain.Session, error) {
	n := s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return domain.Session{}, apperrors.NetworkError("POST /api/auth/exchange", ctx.Err())
		}
	}
	return s.respond(n)
}

func fastConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		RetryInterval:      5 * time.Millisecond,
		RetryWindow:        60 * time.Millisecond,
		SuccessDelay:       1500 * time.Millisecond,
		DefaultDestination: "/app",
	}
}

func sessionFor(token string) domain.Session {
	return domain.Session{AccessToken: token, User: domain.User{ID: "u1", Email: "a@b.com"}}
}

func TestCoordinator_DeduplicatesConcurrentCalls(t *testing.T) {
	t.Parallel()
	ex := &scriptedExchanger{
		gate:    make(chan struct{}),
		respond: func(int32) (domain.Session, error) { return sessionFor("t1"), nil },
	}
	metrics := observability.NewMetrics()
	cfg := fastConfig()
	cfg.RetryWindow = time.Second
	c := NewCoordinator(ex, cfg, Options{Metrics: metrics})

	var wg sync.WaitGroup
	results := make([]domain.Session, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Exchange(context.Background(), "abc123")
		}(i)
	}
	require.Eventually(t, func() bool { return ex.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(ex.gate)
	wg.Wait()

	require.EqualValues(t, 1, ex.calls.Load())
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, results[0], results[1])
	require.Equal(t, "t1", results[0].AccessToken)
	require.EqualValues(t, 2, metrics.Attempts(opExchange, observability.OutcomeDeduplicated))

	// The settled entry is gone: the next call goes to the network again.
	_, err := c.Exchange(context.Background(), "abc123")
	require.NoError(t, err)
	require.EqualValues(t, 2, ex.calls.Load())
}

func TestCoordinator_CallerCancelDoesNotAbortSharedExchange(t *testing.T) {
	t.Parallel()
	ex := &scriptedExchanger{
		gate:    make(chan struct{}),
		respond: func(int32) (domain.Session, error) { return sessionFor("t1"), nil },
	}
	cfg := fastConfig()
	cfg.RetryWindow = time.Second
	c := NewCoordinator(ex, cfg, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Exchange(ctx, "abc123")
		first <- err
	}()
	require.Eventually(t, func() bool { return ex.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan domain.Session, 1)
	go func() {
		sess, _ := c.Exchange(context.Background(), "abc123")
		second <- sess
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	close(ex.gate)
	require.Equal(t, "t1", (<-second).AccessToken)
	require.EqualValues(t, 1, ex.calls.Load())
}

func TestCoordinator_RejectionIsNotRetried(t *testing.T) {
	t.Parallel()
	ex := &scriptedExchanger{respond: func(int32) (domain.Session, error) {
		return domain.Session{}, apperrors.FromResponse(http.StatusBadRequest, []byte(`{"error":"code expired"}`))
	}}
	c := NewCoordinator(ex, fastConfig(), Options{})

	_, err := c.Exchange(context.Background(), "old")
	require.Error(t, err)
	require.Equal(t, "code expired", apperrors.UserMessage(err))
	require.EqualValues(t, 1, ex.calls.Load())
}

func TestCoordinator_RetriesNetworkFailuresWithinWindow(t *testing.T) {
	t.Parallel()
	ex := &scriptedExchanger{respond: func(n int32) (domain.Session, error) {
		if n < 3 {
			return domain.Session{}, apperrors.NetworkError("POST /api/auth/exchange", errors.New("connection refused"))
		}
		return sessionFor("t1"), nil
	}}
	d := events.NewInMemoryDispatcher()
	var settled events.ExchangeSettledPayload
	d.Subscribe(events.EventExchangeSettled, func(_ context.Context, e events.Event) error {
		settled = e.Payload.(events.ExchangeSettledPayload)
		return nil
	})
	c := NewCoordinator(ex, fastConfig(), Options{Events: d})

	sess, err := c.Exchange(context.Background(), "abc123")
	require.NoError(t, err)
	require.Equal(t, "t1", sess.AccessToken)
	require.EqualValues(t, 3, ex.calls.Load())
	require.True(t, settled.Succeeded)
	require.Equal(t, 3, settled.Attempts)
}

func TestCoordinator_GivesUpAfterWindow(t *testing.T) {
	t.Parallel()
	ex := &scriptedExchanger{respond: func(int32) (domain.Session, error) {
		return domain.Session{}, apperrors.NetworkError("POST /api/auth/exchange", errors.New("connection refused"))
	}}
	cfg := fastConfig()
	c := NewCoordinator(ex, cfg, Options{})

	start := time.Now()
	_, err := c.Exchange(context.Background(), "abc123")
	elapsed := time.Since(start)

	require.True(t, apperrors.IsNetwork(err))
	require.GreaterOrEqual(t, elapsed, cfg.RetryWindow)
	require.Less(t, elapsed, cfg.RetryWindow+20*cfg.RetryInterval)
	require.Greater(t, ex.calls.Load(), int32(2))
}

func TestCoordinator_EmptyCode(t *testing.T) {
	t.Parallel()
	ex := &scriptedExchanger{}
	_, err := NewCoordinator(ex, fastConfig(), Options{}).Exchange(context.Background(), "")
	require.ErrorIs(t, err, ErrNoCode)
	require.Zero(t, ex.calls.Load())
}

type fakeSigner struct {
	code string
	err  error
	req  dto.LoginRequest
}

func (s *fakeSigner) Login(_ context.Context, req dto.LoginRequest) (string, error) {
	s.req = req
	return s.code, s.err
}

func newFlowAgainst(t *testing.T, handler http.HandlerFunc) (*Flow, *session.Controller, tokenstore.Store, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == apiclient.PathExchange {
			calls.Add(1)
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := apiclient.New(srv.URL)
	store := tokenstore.NewMemory()
	ctrl := session.New(config.SessionConfig{VerifyTimeout: time.Second}, session.Dependencies{Store: store, Backend: client})
	t.Cleanup(ctrl.Stop)
	flow := NewFlow(NewCoordinator(client, fastConfig(), Options{}), ctrl, client, fastConfig())
	return flow, ctrl, store, &calls
}

func TestFlow_CallbackSuccess(t *testing.T) {
	t.Parallel()
	flow, ctrl, store, calls := newFlowAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accessToken":"t1","user":{"id":"u1","email":"a@b.com","role":"customer"}}`))
	})

	st := flow.HandleCallback(context.Background(), url.Values{"code": {"abc123"}})
	require.Equal(t, PhaseSuccess, st.Phase)
	require.Equal(t, "/app", st.Destination)
	require.Equal(t, 1500*time.Millisecond, st.Delay)
	require.EqualValues(t, 1, calls.Load())

	stored, _ := store.Get(context.Background())
	require.Equal(t, "t1", stored)
	require.True(t, ctrl.Snapshot().IsAuthenticated)
	require.Equal(t, "u1", ctrl.Snapshot().User.ID)

	st = flow.HandleCallback(context.Background(), url.Values{"code": {"abc124"}, "next": {"/app/tickets?id=7#c"}})
	require.Equal(t, "/app/tickets?id=7#c", st.Destination)
}

func TestFlow_ProviderErrorSkipsNetwork(t *testing.T) {
	t.Parallel()
	flow, _, _, calls := newFlowAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	st := flow.HandleCallback(context.Background(), url.Values{"error": {"access_denied"}})
	require.Equal(t, PhaseError, st.Phase)
	require.Contains(t, st.Message, "access_denied")
	require.False(t, st.CanRetry)
	require.ErrorIs(t, st.Err, ErrProviderDenied)
	require.Zero(t, calls.Load())

	st = flow.HandleCallback(context.Background(), url.Values{})
	require.Equal(t, PhaseError, st.Phase)
	require.False(t, st.CanRetry)
	require.ErrorIs(t, st.Err, ErrNoCode)

	require.Equal(t, PhaseError, flow.Retry(context.Background()).Phase)
	require.Zero(t, calls.Load())
}

func TestFlow_RejectedCodeThenManualRetry(t *testing.T) {
	t.Parallel()
	var fail atomic.Bool
	fail.Store(true)
	flow, ctrl, _, calls := newFlowAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"CODE_EXPIRED","message":"code expired"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"accessToken":"t2","user":{"id":"u1"}}`))
	})

	st := flow.HandleCallback(context.Background(), url.Values{"code": {"abc123"}})
	require.Equal(t, PhaseError, st.Phase)
	require.Equal(t, "code expired", st.Message)
	require.True(t, st.CanRetry)
	require.EqualValues(t, 1, calls.Load())
	require.False(t, ctrl.Snapshot().IsAuthenticated)

	fail.Store(false)
	st = flow.Retry(context.Background())
	require.Equal(t, PhaseSuccess, st.Phase)
	require.EqualValues(t, 2, calls.Load())
	require.Equal(t, map[string]string{"Authorization": "Bearer t2"}, ctrl.AuthHeaders())
}

func TestFlow_RetryAfterSuccessKeepsRedeemedCode(t *testing.T) {
	t.Parallel()
	flow, ctrl, _, calls := newFlowAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accessToken":"t3","user":{"id":"u1"}}`))
	})

	st := flow.HandleCallback(context.Background(), url.Values{"code": {"abc123"}})
	require.Equal(t, PhaseSuccess, st.Phase)

	st = flow.Retry(context.Background())
	require.Equal(t, PhaseSuccess, st.Phase)
	require.EqualValues(t, 1, calls.Load())
	require.True(t, ctrl.Snapshot().IsAuthenticated)
}

func TestFlow_SignIn(t *testing.T) {
	t.Parallel()
	ex := &scriptedExchanger{respond: func(int32) (domain.Session, error) { return sessionFor("t9"), nil }}
	ctrl := session.New(config.SessionConfig{}, session.Dependencies{})
	defer ctrl.Stop()

	signer := &fakeSigner{code: "one-time"}
	flow := NewFlow(NewCoordinator(ex, fastConfig(), Options{}), ctrl, signer, fastConfig())
	st := flow.SignIn(context.Background(), "a@b.com", "pw", "//evil.example")
	require.Equal(t, PhaseSuccess, st.Phase)
	require.Equal(t, "/app", st.Destination)
	require.Equal(t, "a@b.com", signer.req.Email)
	require.Equal(t, "Bearer t9", ctrl.AuthHeaders()["Authorization"])

	signer.err = apperrors.FromResponse(http.StatusUnauthorized, []byte(`{"error":"invalid credentials"}`))
	st = flow.SignIn(context.Background(), "a@b.com", "bad", "")
	require.Equal(t, PhaseError, st.Phase)
	require.Equal(t, "invalid credentials", st.Message)
	require.False(t, st.CanRetry)
	require.EqualValues(t, 1, ex.calls.Load())
}

func TestSafeDestination(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"":                     "/app",
		"/app/tickets?x=1#top": "/app/tickets?x=1#top",
		"https://evil.example": "/app",
		"//evil.example/path":  "/app",
		"/\\evil.example":      "/app",
		"javascript:alert(1)":  "/app",
		"/":                    "/",
		"/\t/evil.example":     "/app",
		"/\n/evil.example":     "/app",
		"/\r/evil.example":     "/app",
		"/app\x7f":             "/app",
		"/\x00/evil.example":   "/app",
	}
	for in, want := range cases {
		require.Equal(t, want, SafeDestination(in, "/app"), in)
	}
}
