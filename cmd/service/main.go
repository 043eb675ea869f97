// cmd/service/main.go
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

	"github.com/getsentry/sentry-go"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-sync-service/internal/activity"
	"github-sync-service/internal/api"
	"github-sync-service/internal/config"
	"github-sync-service/internal/database"
	"github-sync-service/internal/database/memory"
	"github-sync-service/internal/errutil"
	"github-sync-service/internal/events"
	"github-sync-service/internal/github"
	"github-sync-service/internal/logging"
	"github-sync-service/internal/syncer"
	"github-sync-service/internal/webhook"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize structured logger
	logger, err := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}
	slog.SetDefault(logger)
	logger.Info("Configuration loaded successfully", "config", cfg)

	if err := errutil.Configure(cfg.SentryDSN, cfg.SentryEnv); err != nil {
		return err
	}
	defer sentry.Flush(2 * time.Second)

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Open the store
	store, publisher, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 5. Initialize application components
	ghClient, err := github.NewClient(github.Config{
		BaseURL:        cfg.GithubAPIURL,
		Timeout:        cfg.GithubRequestTimeout,
		RetryBaseDelay: cfg.GithubRetryBaseDelay,
		RetryMaxDelay:  cfg.GithubRetryMaxDelay,
		MaxAttempts:    cfg.GithubMaxAttempts,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	appSyncer := syncer.NewSyncer(store, ghClient, publisher, logger, syncer.WithConcurrency(cfg.SyncConcurrency))
	aggregator := activity.NewAggregator(store, ghClient, logger)
	processor := webhook.NewProcessor(store, logger, webhook.WithSecret(cfg.WebhookSecret))

	handler := api.NewHandler(appSyncer, aggregator, processor, logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Start the HTTP server in a separate goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 7. Wait for shutdown signal
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received. Exiting.")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server cleanly", "error", err)
	}
	handler.Wait()

	return nil
}

// openStore builds the configured store and publisher. The returned func
// releases the store's resources.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.Store, events.Publisher, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), events.NewLogPublisher(cfg.EventChannel, logger), func() {}, nil
	}

	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, nil, nil, fmt.Errorf("failed to reach database: %w", err)
	}
	logger.Info("Database connection established")

	if err := runMigrations(cfg.MigrationsPath, cfg.DBURL); err != nil {
		dbpool.Close()
		return nil, nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	store := database.NewStore(dbpool)
	var publisher events.Publisher = events.NewLogPublisher(cfg.EventChannel, logger)
	if cfg.EventPublisher == config.PublisherPostgres {
		publisher = events.NewPostgresPublisher(cfg.EventChannel, store)
	}
	return store, publisher, dbpool.Close, nil
}

func runMigrations(sourceURL, dbURL string) error {
	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
