package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/skybit/internal/api"
	"github.com/aatumaykin/skybit/internal/config"
	"github.com/aatumaykin/skybit/internal/logger"
	"github.com/aatumaykin/skybit/internal/pidfile"
	"github.com/aatumaykin/skybit/internal/runner"
	"github.com/aatumaykin/skybit/internal/scheduler"
	"github.com/aatumaykin/skybit/internal/store"
	"github.com/aatumaykin/skybit/internal/workers"
)

// gatewayBackoff is the initial retry delay for gateway calls.
const gatewayBackoff = time.Second

var serveLogLevel string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the task store service",
	Long: `Start the Skybit task store: load the registry, schedule every enabled
task, run tasks on the worker pool and serve the REST API until SIGINT or
SIGTERM.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	if err := config.LoadEnvOptional("./.env"); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	path := resolveConfigPath(nil)
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintln(os.Stderr, "❌ Configuration validation failed:")
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		os.Exit(exitInvalid)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	log.Info("🚀 Starting Skybit",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: path},
		logger.Field{Key: "data_dir", Value: cfg.Store.DataDir},
		logger.Field{Key: "addr", Value: cfg.Server.Addr})

	if err := serve(cfg, log); err != nil {
		log.Error("Skybit stopped with error", err)
		os.Exit(1)
	}
	log.Info("👋 Skybit stopped gracefully")
}

// serve wires every component and blocks until a shutdown signal or a
// fatal server error.
func serve(cfg *config.Config, log *logger.Logger) error {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	release, err := pidfile.Acquire(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			log.Warn("Failed to remove PID file", logger.Field{Key: "error", Value: err.Error()})
		}
	}()

	metrics := workers.NewMetrics("skybit", prometheus.DefaultRegisterer)

	registry := store.NewRegistry(cfg.Store.DataDir, log)
	if err := registry.Load(); err != nil {
		return fmt.Errorf("failed to load task registry: %w", err)
	}

	pool := workers.NewPool(cfg.Runner.Workers, cfg.Runner.QueueSize, log, workers.WithMetrics(metrics))
	pool.Start()
	defer pool.Stop()

	var taskRunner runner.Runner = runner.Unconfigured{}
	if cfg.Runner.GatewayURL != "" {
		taskRunner = runner.NewGatewayRunner(runner.GatewayConfig{
			URL:         cfg.Runner.GatewayURL,
			APIKey:      cfg.Runner.APIKey,
			Timeout:     cfg.Runner.Timeout(),
			MaxAttempts: cfg.Runner.MaxAttempts,
			Backoff:     gatewayBackoff,

			BreakerThreshold: cfg.Runner.BreakerThreshold,
			BreakerCooldown:  cfg.Runner.BreakerCooldown(),
		}, log)
	} else {
		log.Warn("Agent gateway is not configured, runs will fail")
	}

	service := runner.NewService(registry, taskRunner, pool, cfg.Runner.Timeout(), log)

	sched := scheduler.New(loc, service, log, scheduler.WithMetrics(metrics))
	scheduleAll(sched, registry, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	server := api.New(api.Deps{
		Store:      registry,
		Scheduler:  sched,
		Dispatcher: service,
		Logger:     log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("⏳ Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
	}

	log.Info("🛑 Shutting down Skybit...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}

// scheduleAll adds every active task to the scheduler. Tasks that cannot
// be scheduled are logged and left in the registry.
func scheduleAll(sched *scheduler.Scheduler, registry *store.Registry, log *logger.Logger) int {
	scheduled := 0
	for _, t := range registry.List() {
		if !t.Active() {
			continue
		}
		if err := sched.Schedule(t); err != nil {
			log.Warn("Failed to schedule task",
				logger.Field{Key: "task_id", Value: t.ID},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		scheduled++
	}
	log.Info("Tasks scheduled", logger.Field{Key: "count", Value: scheduled})
	return scheduled
}

func init() {
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")
}
