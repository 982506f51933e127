// Command ticketctl signs in to the ticket portal from a terminal and keeps
// the session credential between runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	apperrors "github.com/Behnamfe76/ticket-portal/pkg/util"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintf(w, `ticketctl
Usage:
  ticketctl [-api URL] [-timeout 30s] <cmd> [args]

Commands:
  version
  login            -email <e> -password <p> [-next /path] [-ready-wait 10s]
  callback         -url <redirect URL> | -code <code> [-next /path]
  whoami
  status
  logout
  wait-ready
  signup           -name <n> -email <e> -password <p> [-ready-wait 10s]
  forgot-password  -email <e>
  reset-password   -token <t> -password <p>
  update-profile   [-name <n>] [-avatar <url>]
`)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ticketctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiURL := fs.String("api", "", "API base URL (default $API_BASE_URL)")
	timeout := fs.Duration("timeout", 30*time.Second, "overall command timeout")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 2
	}
	if fs.Arg(0) == "version" {
		fmt.Fprintf(stdout, "ticketctl %s (%s)\n", version, buildDate)
		return 0
	}

	cfg, err := config.Load(config.DriverFile)
	if err != nil {
		fmt.Fprintf(stderr, "ticketctl: config: %v\n", err)
		return 1
	}
	if *apiURL != "" {
		cfg.API.BaseURL = strings.TrimRight(*apiURL, "/")
		cfg.API.BackendOrigin = cfg.API.BaseURL
	}
	cfg.Logger.Format = "console"
	cfg.Logger.Output = "stderr"
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Logger.Level = "warn"
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(stderr, "ticketctl: logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := newCLI(ctx, cfg, logger, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "ticketctl: %v\n", err)
		return 1
	}
	defer c.close()

	if err := c.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage(stderr)
			return 2
		}
		fmt.Fprintf(stderr, "ticketctl: %s\n", describe(err))
		return 1
	}
	return 0
}

func describe(err error) string {
	var de *apperrors.DomainError
	if errors.As(err, &de) || apperrors.IsNetwork(err) {
		return apperrors.UserMessage(err)
	}
	return err.Error()
}
