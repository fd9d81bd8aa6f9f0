package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alejandrodnm/betledger/config"
	"github.com/alejandrodnm/betledger/internal/adapters/auth"
	"github.com/alejandrodnm/betledger/internal/adapters/metrics"
	"github.com/alejandrodnm/betledger/internal/adapters/notify"
	"github.com/alejandrodnm/betledger/internal/adapters/storage"
	"github.com/alejandrodnm/betledger/internal/ledger"
	"github.com/alejandrodnm/betledger/internal/ports"
	"golang.org/x/time/rate"
)

type command func(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error

var commands = map[string]command{
	"show":    runShow,
	"watch":   runWatch,
	"bet":     runBet,
	"toggle":  runToggle,
	"resolve": runResolve,
	"reset":   runReset,
	"token":   runToken,
}

// session es un ledger abierto junto con lo que hay que cerrar al salir.
type session struct {
	ledger  *ledger.Ledger
	store   ports.StateStore
	metrics *metrics.Prometheus
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Warn("closing store", "err", err)
	}
}

// openSession abre el backend configurado y construye el ledger con
// authorizer, lock, métricas y rate limit.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	backend, err := storage.Open(ctx, storage.Options{
		Driver:         cfg.Storage.Driver,
		DSN:            cfg.Storage.DSN,
		RecoverCorrupt: cfg.Storage.RecoverCorrupt,
		LockTTL:        cfg.LockTTL(),
		Redis: storage.RedisConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			TLSEnabled: cfg.Redis.TLS,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", cfg.Storage.Driver, err)
	}

	prom := metrics.NewPrometheus()
	opts := []ledger.Option{
		ledger.WithAuthorizer(auth.NewTokenAuthorizer(cfg.Auth.AdminSecret)),
		ledger.WithObserver(prom),
	}
	if backend.Locker != nil {
		opts = append(opts, ledger.WithLocker(backend.Locker))
	}
	if cfg.Market.SubmitRatePerSec > 0 {
		opts = append(opts, ledger.WithSubmitLimiter(
			rate.NewLimiter(rate.Limit(cfg.Market.SubmitRatePerSec), cfg.Market.SubmitBurst),
		))
	}

	lcfg := ledger.DefaultConfig()
	lcfg.MinWager = cfg.Market.MinWager
	lcfg.MaxWager = cfg.Market.MaxWager
	lcfg.PayoutMultiplier = cfg.Market.PayoutMultiplier
	lcfg.LeaderboardSize = cfg.Market.LeaderboardSize
	lcfg.MaxNameLength = cfg.Market.MaxNameLength
	lcfg.LockKey = cfg.Redis.KeyPrefix

	l, err := ledger.New(ctx, lcfg, backend.Store, opts...)
	if err != nil {
		_ = backend.Store.Close()
		return nil, err
	}
	prom.Snapshot(l.State())
	return &session{ledger: l, store: backend.Store, metrics: prom}, nil
}

// adminToken toma el token del flag o de LEDGER_ADMIN_TOKEN.
func adminToken(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("LEDGER_ADMIN_TOKEN")
}

// logAdmin deja constancia de quién ejecutó un comando de admin. Solo se
// llama con tokens ya validados por el ledger.
func logAdmin(command, token string) {
	slog.Info("admin command", "command", command, "subject", auth.Subject(token))
}

func parseFlags(fs *flag.FlagSet, out io.Writer, args []string) error {
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}

func runShow(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the raw state document instead of tables")
	if err := parseFlags(fs, out, args); err != nil {
		return err
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s.ledger.State())
	}
	return notify.NewConsoleTo(out, cfg.Market.Currency, false).Render(ctx, s.ledger.View())
}

func runBet(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("bet", flag.ContinueOnError)
	name := fs.String("name", "", "player name")
	guess := fs.Int64("guess", -1, "predicted value (>= 0)")
	wager := fs.Int64("wager", cfg.Market.MinWager, "stake")
	if err := parseFlags(fs, out, args); err != nil {
		return err
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.ledger.PlaceBet(ctx, *name, *guess, *wager)
	if err != nil {
		return err
	}
	last := st.Bets[len(st.Bets)-1]
	fmt.Fprintf(out, "Bet placed: %s guessed %d for %d %s (%d bets in the market)\n",
		last.Name, last.Prediction, last.Wager, cfg.Market.Currency, len(st.Bets))
	return nil
}

func runToggle(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("toggle", flag.ContinueOnError)
	token := fs.String("token", "", "admin token (or LEDGER_ADMIN_TOKEN)")
	if err := parseFlags(fs, out, args); err != nil {
		return err
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	tok := adminToken(*token)
	st, err := s.ledger.ToggleMarket(ctx, tok)
	if err != nil {
		return err
	}
	logAdmin("toggle", tok)
	fmt.Fprintf(out, "Market is now %s\n", st.Phase().Label())
	return nil
}

func runResolve(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	token := fs.String("token", "", "admin token (or LEDGER_ADMIN_TOKEN)")
	value := fs.Int64("value", -1, "actual outcome (>= 0)")
	if err := parseFlags(fs, out, args); err != nil {
		return err
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	tok := adminToken(*token)
	if _, err := s.ledger.Resolve(ctx, tok, *value); err != nil {
		return err
	}
	logAdmin("resolve", tok)
	return notify.NewConsoleTo(out, cfg.Market.Currency, false).Render(ctx, s.ledger.View())
}

func runReset(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	token := fs.String("token", "", "admin token (or LEDGER_ADMIN_TOKEN)")
	yes := fs.Bool("yes", false, "confirm: every bet and the result are discarded")
	if err := parseFlags(fs, out, args); err != nil {
		return err
	}
	if !*yes {
		return fmt.Errorf("%w: reset discards every bet; rerun with -yes to confirm", errUsage)
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	tok := adminToken(*token)
	if _, err := s.ledger.Reset(ctx, tok); err != nil {
		return err
	}
	logAdmin("reset", tok)
	fmt.Fprintln(out, "Market reset: no bets, open, unresolved")
	return nil
}

func runToken(_ context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "admin", "who the token is for")
	if err := parseFlags(fs, out, args); err != nil {
		return err
	}

	tok, err := auth.NewTokenAuthorizer(cfg.Auth.AdminSecret).IssueToken(*subject)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tok)
	return nil
}
