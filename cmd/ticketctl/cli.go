package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Behnamfe76/ticket-portal/internal/api/dto"
	"github.com/Behnamfe76/ticket-portal/internal/apiclient"
	"github.com/Behnamfe76/ticket-portal/internal/auth"
	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/domain"
	"github.com/Behnamfe76/ticket-portal/internal/exchange"
	"github.com/Behnamfe76/ticket-portal/internal/persistence"
	"github.com/Behnamfe76/ticket-portal/internal/readiness"
	"github.com/Behnamfe76/ticket-portal/internal/session"
	"github.com/Behnamfe76/ticket-portal/internal/tokenstore"
)

const (
	cliScope         = "cli"
	defaultReadyWait = 10 * time.Second
)

var (
	errNotSignedIn     = errors.New("not signed in (run ticketctl login)")
	errBackendNotReady = errors.New("backend not ready")
)

// cli is the single client of this process.
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer

	store   tokenstore.Store
	client  *apiclient.Client
	ctrl    *session.Controller
	flow    *exchange.Flow
	closers []func()
}

func newCLI(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) (*cli, error) {
	c := &cli{cfg: cfg, logger: logger, out: out}

	stores := tokenstore.Factory{Driver: cfg.TokenStore.Driver, Dir: cfg.TokenStore.Dir}
	switch cfg.TokenStore.Driver {
	case config.DriverRedis:
		cache, err := persistence.OpenCredentialCache(ctx, cfg.Redis)
		if err != nil {
			cache.Close()
			return nil, err
		}
		c.closers = append(c.closers, cache.Close)
		stores.Redis = cache.Client
	case config.DriverPostgres:
		db, err := persistence.OpenCredentialDB(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db.Close)
		stores.PG = db.Pool
	}

	store, err := stores.Open(cliScope)
	if err != nil {
		c.close()
		return nil, err
	}
	c.store = store
	c.client = apiclient.New(cfg.API.BaseURL,
		apiclient.WithLogger(logger),
		apiclient.WithBackendOrigin(cfg.API.BackendOrigin),
	)
	c.ctrl = session.New(cfg.Session, session.Dependencies{
		Store:   store,
		Backend: c.client,
		Logger:  logger,
		Scope:   cliScope,
	})
	c.closers = append(c.closers, c.ctrl.Stop)
	coord := exchange.NewCoordinator(c.client, cfg.Exchange, exchange.Options{Logger: logger, Scope: cliScope})
	c.flow = exchange.NewFlow(coord, c.ctrl, c.client, cfg.Exchange)
	return c, nil
}

func (c *cli) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "callback":
		return c.callback(ctx, args)
	case "whoami":
		return c.whoami(ctx)
	case "status":
		return c.status(ctx)
	case "logout":
		c.ctrl.Logout(ctx)
		fmt.Fprintln(c.out, "signed out")
		return nil
	case "wait-ready":
		return c.waitReady(ctx)
	case "signup":
		return c.signup(ctx, args)
	case "forgot-password":
		return c.forgotPassword(ctx, args)
	case "reset-password":
		return c.resetPassword(ctx, args)
	case "update-profile":
		return c.updateProfile(ctx, args)
	default:
		return errUsage
	}
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	next := fs.String("next", "", "return path")
	readyWait := fs.Duration("ready-wait", defaultReadyWait, "how long to wait for the backend to come up")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errUsage
	}
	if err := c.awaitBackend(ctx, *readyWait); err != nil {
		return err
	}
	return c.report(c.flow.SignIn(ctx, *email, *password, *next))
}

func (c *cli) callback(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("callback", flag.ContinueOnError)
	raw := fs.String("url", "", "provider redirect URL")
	code := fs.String("code", "", "authorization code")
	next := fs.String("next", "", "return path")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	query := url.Values{}
	switch {
	case *raw != "":
		u, err := url.Parse(*raw)
		if err != nil {
			return fmt.Errorf("parse callback url: %w", err)
		}
		query = u.Query()
	case *code != "":
		query.Set("code", *code)
	default:
		return errUsage
	}
	if *next != "" {
		query.Set("next", *next)
	}
	return c.report(c.flow.HandleCallback(ctx, query))
}

// report prints the outcome of a sign-in flow.
func (c *cli) report(st exchange.State) error {
	if st.Phase != exchange.PhaseSuccess {
		if st.Message != "" {
			return errors.New(st.Message)
		}
		return st.Err
	}
	sess, _ := c.ctrl.Session()
	fmt.Fprintf(c.out, "signed in as %s (next: %s)\n", sess.User.Email, st.Destination)
	return nil
}

// authenticated verifies the stored credential and returns the user.
func (c *cli) authenticated(ctx context.Context) (*domain.User, error) {
	c.ctrl.RefreshAuth(ctx)
	snap := c.ctrl.Snapshot()
	if !snap.IsAuthenticated {
		return nil, errNotSignedIn
	}
	return snap.User, nil
}

func (c *cli) whoami(ctx context.Context) error {
	user, err := c.authenticated(ctx)
	if err != nil {
		return err
	}
	return printJSON(c.out, user)
}

type statusReport struct {
	State       domain.AuthState `json:"state"`
	Email       string           `json:"email,omitempty"`
	Credential  bool             `json:"credentialStored"`
	ExpiresAt   string           `json:"expiresAt"`
	Store       string           `json:"store"`
	BackendBase string           `json:"api"`
}

func (c *cli) status(ctx context.Context) error {
	token, err := c.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	rep := statusReport{
		Credential:  token != "",
		ExpiresAt:   "unknown",
		Store:       c.cfg.TokenStore.Driver,
		BackendBase: c.cfg.API.BaseURL,
	}
	if exp, ok := auth.PeekExpiry(token); ok {
		rep.ExpiresAt = exp.UTC().Format(time.RFC3339)
	}
	rep.State = c.ctrl.RefreshAuth(ctx)
	if user := c.ctrl.Snapshot().User; user != nil {
		rep.Email = user.Email
	}
	return printJSON(c.out, rep)
}

func (c *cli) waitReady(ctx context.Context) error {
	if err := c.probe(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "backend ready")
	return nil
}

// awaitBackend holds a sign-in attempt until the backend answers its health
// check, giving up after wait.
func (c *cli) awaitBackend(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return c.probe(ctx)
}

func (c *cli) probe(ctx context.Context) error {
	p := readiness.NewProber(c.client, c.cfg.API.BackendOrigin, c.cfg.Readiness, readiness.Options{Logger: c.logger})
	p.Start()
	defer p.Stop()
	if err := p.WaitReady(ctx); err != nil {
		return fmt.Errorf("%w: %s (%v)", errBackendNotReady, p.Origin(), err)
	}
	return nil
}

func (c *cli) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	readyWait := fs.Duration("ready-wait", defaultReadyWait, "how long to wait for the backend to come up")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *name == "" || *email == "" || *password == "" {
		return errUsage
	}
	if err := c.awaitBackend(ctx, *readyWait); err != nil {
		return err
	}

	resp, err := c.client.Signup(ctx, dto.SignupRequest{Name: *name, Email: *email, Password: *password})
	if err != nil {
		return err
	}
	if resp.Code != "" {
		return c.report(c.flow.HandleCallback(ctx, url.Values{"code": {resp.Code}}))
	}
	fmt.Fprintln(c.out, orDefault(resp.Message, "account created"))
	return nil
}

func (c *cli) forgotPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *email == "" {
		return errUsage
	}
	resp, err := c.client.ForgotPassword(ctx, dto.ForgotPasswordRequest{Email: *email})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, orDefault(resp.Message, "check your inbox"))
	return nil
}

func (c *cli) resetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	token := fs.String("token", "", "reset token")
	password := fs.String("password", "", "new password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *token == "" || *password == "" {
		return errUsage
	}
	resp, err := c.client.ResetPassword(ctx, dto.ResetPasswordRequest{Token: *token, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, orDefault(resp.Message, "password updated"))
	return nil
}

func (c *cli) updateProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	avatar := fs.String("avatar", "", "avatar URL")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	var req dto.UpdateMeRequest
	if *name != "" {
		req.Name = name
	}
	if *avatar != "" {
		req.AvatarURL = avatar
	}
	if req.Name == nil && req.AvatarURL == nil {
		return errUsage
	}

	if _, err := c.authenticated(ctx); err != nil {
		return err
	}
	user, err := c.client.UpdateMe(ctx, c.ctrl.AuthHeaders(), req)
	if err != nil {
		return err
	}
	return printJSON(c.out, user)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
