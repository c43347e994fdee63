/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the inventory action ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, .env, LEDGER_* environment, flags)
  2. Build the zap logger
  3. Open the store (SQLite by default, Postgres when configured)
  4. Build notification sinks (log, plus Redis stream and webhook if set)
  5. Wire engine, sweeper and API handler; optionally seed a demo scenario
  6. Start the expiry sweep scheduler
  7. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port          HTTP server port (default: 8080)
  -db            SQLite database path (default: ledger.db)
                 Use ":memory:" for in-memory database
  -driver        sqlite | postgres
  -database-url  Postgres connection string
  -seed          Demo scenario to load when the store is empty

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler (waits for an in-flight sweep)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close Redis and database connections
  5. Exit

EXAMPLES:
  # Run with file database and demo data
  ./server -db="./data/ledger.db" -seed=ambulance-fleet

  # Run against Postgres
  LEDGER_DATABASE_URL=postgres://localhost/ledger ./server -driver=postgres

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/qmedic/stock-ledger/api"
	"github.com/qmedic/stock-ledger/config"
	"github.com/qmedic/stock-ledger/ledger"
	"github.com/qmedic/stock-ledger/logging"
	"github.com/qmedic/stock-ledger/notify"
	"github.com/qmedic/stock-ledger/store/postgres"
	"github.com/qmedic/stock-ledger/store/sqlite"
)

const serviceName = "stock-ledger"

type closableStore interface {
	api.Store
	Close() error
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()
	logger.Info("store opened", zap.String("driver", cfg.Driver))

	// Notification sinks
	sinks := notify.Multi{notify.NewLog(logger)}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, stream sink will retry per notification",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		sinks = append(sinks, notify.NewStream(client, cfg.RedisStream))
		logger.Info("redis stream sink enabled", zap.String("stream", cfg.RedisStream))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(notify.WebhookConfig{
			URL:        cfg.WebhookURL,
			RetryCount: 3,
		}, logger))
		logger.Info("webhook sink enabled")
	}

	// Domain
	engine := ledger.NewEngine(store, logger)
	engine.Dispatcher = sinks
	engine.Timeout = cfg.TxTimeout

	sweeper := ledger.NewSweeper(store, logger)
	sweeper.Runs = store
	sweeper.Dispatcher = sinks

	handler := api.NewHandler(store, engine, sweeper, logger)
	if cfg.SeedScenario != "" {
		loaded, err := handler.SeedIfEmpty(ctx, cfg.SeedScenario)
		if err != nil {
			return fmt.Errorf("failed to seed scenario %q: %w", cfg.SeedScenario, err)
		}
		if !loaded {
			logger.Info("store not empty, skipping seed", zap.String("scenario", cfg.SeedScenario))
		}
	}

	scheduler := api.NewExpirySweepScheduler(sweeper, logger)
	scheduler.Enabled = cfg.SweepEnabled
	scheduler.CheckInterval = cfg.SweepInterval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return err
	}

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (closableStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.LockTimeout = cfg.TxTimeout
		return s, nil
	default:
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
