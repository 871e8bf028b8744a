package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shellforge/execd/internal/apiserver"
	"github.com/shellforge/execd/internal/cache"
	"github.com/shellforge/execd/internal/dispatch"
	"github.com/shellforge/execd/internal/environment"
	"github.com/shellforge/execd/internal/stats"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// reapInterval and reapMaxAge bound the background sweep's cadence and the
// staleness threshold at which an orphaned fork/base checkout is reclaimed.
const (
	reapInterval = 5 * time.Minute
	reapMaxAge   = 30 * time.Minute
)

type config struct {
	address       string
	port          int
	dataDir       string
	logLevel      string
	cacheCapacity int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "execd",
		Short: "execd — remote command execution service",
		Long: `execd is a single long-lived HTTP server that accepts JSON requests to
run shell commands (singly or as chains) inside short-lived or long-lived
sandboxed working directories, materializes structured input files, captures
output files by glob, caches results, and exposes aggregate statistics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.address, "address", envOrDefault("EXECD_ADDRESS", "0.0.0.0"), "bind address")
	root.PersistentFlags().IntVar(&cfg.port, "port", envOrDefaultInt("EXECD_PORT", 8088), "bind port")
	root.PersistentFlags().StringVar(&cfg.dataDir, "data-dir", envOrDefault("EXECD_DATA_DIR", "./data"), "directory for environment and workspace trees")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("EXECD_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&cfg.cacheCapacity, "cache-capacity", envOrDefaultInt("EXECD_CACHE_CAPACITY", cache.DefaultCapacity), "maximum number of fingerprints retained in the result cache")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("execd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	addr := fmt.Sprintf("%s:%d", cfg.address, cfg.port)
	logger.Info("starting execd",
		zap.String("version", version),
		zap.String("address", addr),
		zap.String("data_dir", cfg.dataDir),
		zap.String("log_level", cfg.logLevel),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- 1. Environment registry ---
	envs, err := environment.New(cfg.dataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize environment manager: %w", err)
	}

	// --- 2. Stale-checkout reaper ---
	reaper, err := environment.NewReaper(envs, reapInterval, reapMaxAge, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize checkout reaper: %w", err)
	}
	reaper.Start()
	defer func() {
		if err := reaper.Stop(); err != nil {
			logger.Warn("reaper shutdown error", zap.Error(err))
		}
	}()

	// --- 3. Cache and stats ---
	resultCache := cache.New(cfg.cacheCapacity)
	aggregator := stats.New()

	// --- 4. Dispatcher ---
	dispatcher := dispatch.New(envs, resultCache, aggregator, logger)

	// --- 5. HTTP server ---
	router := apiserver.NewRouter(apiserver.RouterConfig{
		Dispatcher:   dispatcher,
		Environments: envs,
		Stats:        aggregator,
		Logger:       logger,
	})

	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // command execution can legitimately run far longer than a fixed write deadline
		IdleTimeout:  60 * time.Second,
		// Root every request's context in the cancellable ctx (rather than the
		// default context.Background()) so that cancelling ctx on shutdown
		// propagates to r.Context() in every in-flight handler, and in turn to
		// executor.Run's ctx.Done() select branch.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down execd")

	// ctx is already cancelled at this point (that's what woke us from
	// ctx.Done() above), and httpSrv's BaseContext derives every handler's
	// r.Context() from it, so in-flight executor.Run calls are already
	// unwinding their child processes via SIGTERM/SIGKILL by the time
	// Shutdown stops accepting new connections and waits for handlers to
	// return. shutdownCtx only bounds how long we wait for that unwind.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("execd stopped")
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return defaultVal
	}
	return n
}
