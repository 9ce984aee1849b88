package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/prerender/api"
	"github.com/use-agent/prerender/config"
	"github.com/use-agent/prerender/engine"
	"github.com/use-agent/prerender/fingerprint"
	"github.com/use-agent/prerender/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("prerender starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"waitUntil", cfg.Readiness.WaitUntil,
		"stealth", cfg.Browser.Stealth,
	)

	// ── 3. Wire launcher and renderer ───────────────────────────────
	profile := fingerprint.FromConfig(cfg.Fingerprint, cfg.Browser.Stealth)
	launcher := scraper.NewLauncher(cfg.Browser, profile)
	renderer := engine.NewRenderer(launcher, engine.PolicyFromConfig(cfg.Readiness))

	// ── 4. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(renderer, cfg, time.Now())

	// ── 5. Start HTTP server ────────────────────────────────────────
	// Every request context derives from baseCtx, so cancelling it aborts
	// in-flight renders and releases their browsers.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String(), "activeSessions", launcher.Active())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("HTTP server forced shutdown, cancelling renders", "error", err)
		cancelRequests()
		waitForSessions(launcher, 5*time.Second)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("prerender stopped", "activeSessions", launcher.Active())
}

// waitForSessions gives cancelled renders time to close their browsers.
func waitForSessions(l *scraper.Launcher, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for l.Active() > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
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
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
