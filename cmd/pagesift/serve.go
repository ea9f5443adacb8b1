package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/pagesift/api"
	"github.com/use-agent/pagesift/api/handler"
	"github.com/use-agent/pagesift/jobs"
	"github.com/use-agent/pagesift/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := loadConfig()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log, os.Stdout)
	slog.Info("pagesift starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"headless", cfg.Browser.Headless,
	)

	// Background work (async jobs, batches, webhooks, janitors) outlives
	// HTTP requests but not the process.
	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// ── 3. Wire the engine and job ledger ───────────────────────────
	sc := newScraper(cfg)

	ledger := jobs.New()
	ledger.StartJanitor(bg, cfg.Jobs.TTL, cfg.Jobs.SweepInterval)

	runner := handler.NewRunner(bg, sc, ledger, webhook.New(cfg.Webhook.Secret))

	// ── 4. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(bg, sc, runner, ledger, cfg, time.Now())

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Cancelling bg aborts in-flight background scrapes; each closes its
	// own browser session on the way out.
	stopBackground()
	waitSessions(sc.ActiveSessions, cfg.Server.ShutdownGrace)

	slog.Info("pagesift stopped")
	return nil
}

// waitSessions polls until active reports zero or grace elapses.
func waitSessions(active func() int, grace time.Duration) {
	deadline := time.Now().Add(grace)
	for active() > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	if n := active(); n > 0 {
		slog.Warn("browser sessions still open at exit", "count", n)
	}
}
