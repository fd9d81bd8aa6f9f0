package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/betledger/config"
	"github.com/alejandrodnm/betledger/internal/domain"
)

const usage = `usage: ledger [global flags] <command> [flags]

commands:
  show      print the market, leaderboard and (if resolved) payouts
  watch     re-render the market every -interval; serves /metrics if metrics.addr is set
  bet       place a bet: -name -guess -wager
  toggle    open/close the market (admin)
  resolve   settle the market: -value (admin)
  reset     discard every bet and the result: -yes (admin)
  token     issue an admin token: -subject (needs auth.admin_secret)

global flags:
`

// errUsage marca errores de invocación (exit code 2).
var errUsage = errors.New("usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		slog.Error("ledger command failed", "kind", domain.ErrorKind(err), "err", err)
		os.Exit(1)
	}
}

// globalFlags son los flags comunes a todos los comandos.
type globalFlags struct {
	configPath string
	verbose    bool
	logFormat  string
	dryRun     bool
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var g globalFlags
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&g.configPath, "config", config.DefaultPath, "path to config file")
	fs.BoolVar(&g.verbose, "verbose", false, "set log level to debug")
	fs.StringVar(&g.logFormat, "format", "", "log format: text|json (overrides config)")
	fs.BoolVar(&g.dryRun, "dry-run", false, "use an in-memory store; nothing is persisted")
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.verbose {
		cfg.Log.Level = "debug"
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if g.dryRun {
		cfg.Storage.Driver = "memory"
	}
	setupLogger(cfg.Log)

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	slog.Debug("ledger starting",
		"command", name,
		"config", g.configPath,
		"driver", cfg.Storage.Driver,
		"dry_run", g.dryRun,
	)
	return cmd(ctx, cfg, rest, out)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
