package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/betledger/config"
	"github.com/alejandrodnm/betledger/internal/adapters/notify"
)

// runWatch relee el store cada intervalo y pinta una línea por ciclo.
// Pensado para una segunda terminal mientras otros procesos apuestan.
func runWatch(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", 5*time.Second, "refresh interval")
	full := fs.Bool("table", false, "print the full tables every cycle (default: compact 1-line)")
	if err := parseFlags(fs, out, args); err != nil {
		return err
	}
	if *interval <= 0 {
		return fmt.Errorf("%w: -interval must be positive", errUsage)
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, s.metrics.Handler())
		defer stop()
	}

	console := notify.NewConsoleTo(out, cfg.Market.Currency, !*full)
	slog.Info("watch starting", "interval", *interval, "driver", cfg.Storage.Driver, "metrics", cfg.Metrics.Addr)

	cycle := func() {
		st, err := s.ledger.Refresh(ctx)
		if err != nil {
			// el último snapshot bueno sigue siendo válido
			slog.Warn("refresh failed", "err", err)
		} else {
			s.metrics.Snapshot(st)
		}
		if err := console.Render(ctx, s.ledger.View()); err != nil {
			slog.Warn("render failed", "err", err)
		}
	}

	cycle()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped")
			return nil
		case <-ticker.C:
			cycle()
		}
	}
}

// serveMetrics expone /metrics en addr hasta que se llame a la función devuelta.
func serveMetrics(addr string, h http.Handler) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("metrics shutdown", "err", err)
		}
	}
}
