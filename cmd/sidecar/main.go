package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/automatonhq/sidecar/internal/alerts"
	"github.com/automatonhq/sidecar/internal/catalog"
	"github.com/automatonhq/sidecar/internal/config"
	otelPkg "github.com/automatonhq/sidecar/internal/otel"
	"github.com/automatonhq/sidecar/internal/server"
	"github.com/automatonhq/sidecar/internal/store"
	"github.com/automatonhq/sidecar/internal/syncclient"
	"github.com/automatonhq/sidecar/internal/telemetry"
	"github.com/automatonhq/sidecar/internal/tui"
	"github.com/automatonhq/sidecar/internal/views"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.3-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

  %s                  Serve the telemetry API (default)
  %s serve            Same, explicitly
  %s status           Probe a running sidecar (/api/health)
  %s summary          Print the agent status report (/api/summary)
  %s watch            Live terminal dashboard (requires a TTY)

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  SIDECAR_HOME             Data directory (default: ~/.automaton-sidecar)
  SIDECAR_DB_PATH          Agent state store (default: /home/automaton/state.db)
  SIDECAR_BIND_ADDR        Listen address (default: 127.0.0.1:3000)
  SIDECAR_MARKETPLACE_DIR  Marketplace catalog directory
  SIDECAR_SERVER_URL       Base URL for status/summary/watch
  TELEGRAM_ALERT_TOKEN     Enables tier-degradation alerts
`)
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	cmd := "serve"
	if args := flag.Args(); len(args) > 0 {
		cmd = strings.ToLower(strings.TrimSpace(args[0]))
	}

	switch cmd {
	case "help", "-h", "--help":
		printUsage()
	case "serve":
		os.Exit(runServe(ctx, cfg))
	case "status":
		os.Exit(runStatus(ctx, cfg))
	case "summary":
		os.Exit(runSummary(ctx, cfg))
	case "watch":
		os.Exit(runWatch(ctx, cfg))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		printUsage()
		os.Exit(2)
	}
}

func runServe(ctx context.Context, cfg config.Config) int {
	logger, logCloser, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	provider, err := otelPkg.Init(ctx, cfg.OTel)
	if err != nil {
		logger.Error("otel init failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	metrics, err := otelPkg.NewMetrics(provider.Meter)
	if err != nil {
		logger.Error("metrics init failed", "error", err)
		return 1
	}

	cat, err := catalog.New(cfg.MarketplaceDir, logger, metrics)
	if err != nil {
		logger.Error("catalog init failed", "error", err)
		return 1
	}
	if err := cat.Watch(ctx); err != nil {
		// Watching is an optimization; serving stale-free reads still works
		// because every cache miss reloads from disk.
		logger.Warn("catalog watcher unavailable", "error", err)
	}

	srv := server.New(server.Config{
		Reader:      store.NewReader(cfg.DBPath),
		Reconciler:  views.New(logger, provider.Tracer, metrics),
		Catalog:     cat,
		CORS:        cfg.CORS,
		Logger:      logger,
		Tracer:      provider.Tracer,
		Metrics:     metrics,
		Fingerprint: cfg.Fingerprint(),
	})

	httpSrv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sidecar listening",
			"addr", cfg.BindAddr,
			"db", cfg.DBPath,
			"marketplace", cfg.MarketplaceDir,
			"config", cfg.Fingerprint(),
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
		return 0
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	}
}

func runStatus(ctx context.Context, cfg config.Config) int {
	body, status, err := fetch(ctx, cfg.ServerURL+"/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidecar unreachable at %s: %v\n", cfg.ServerURL, err)
		return 1
	}
	fmt.Println(strings.TrimSpace(body))
	if status != http.StatusOK {
		return 1
	}
	return 0
}

func runSummary(ctx context.Context, cfg config.Config) int {
	body, status, err := fetch(ctx, cfg.ServerURL+"/api/summary")
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidecar unreachable at %s: %v\n", cfg.ServerURL, err)
		return 1
	}
	if status != http.StatusOK {
		fmt.Fprintf(os.Stderr, "summary failed: status %d\n%s\n", status, body)
		return 1
	}
	fmt.Println(body)
	return 0
}

func runWatch(ctx context.Context, cfg config.Config) int {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "watch needs a terminal; use 'sidecar summary' for scripted output")
		return 2
	}

	// Watch logs quietly to file; the alt screen owns stdout.
	logger, logCloser, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	set := syncclient.NewSet(cfg.ServerURL)

	notifier, err := alerts.New(cfg.Alerts, logger)
	if err != nil {
		logger.Warn("alerts disabled", "error", err)
	}
	go notifier.Run(ctx, set.Status)

	if err := tui.Run(ctx, set); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return 1
	}
	return 0
}

func fetch(ctx context.Context, url string) (string, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}
