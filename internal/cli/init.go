// Package cli holds the start-up steps shared by cmd/spendy,
// cmd/spendy-worker and cmd/spendyctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendy/internal/config"
	applog "spendy/internal/log"
	"spendy/internal/storage"
)

// LoadEnvFile loads .env for local development; a missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	level, err := applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "log_level", cfg.LogLevel)
	}
	return logger
}

// LoadAndValidateConfig loads configuration or exits the process.
func LoadAndValidateConfig() *config.Config {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		// The logger depends on the config; report with the bootstrap one.
		applog.New(applog.DefaultConfig()).Error("Configuration invalid", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenSQLite opens and migrates the database configured in cfg, counting
// calendar days in the configured zone.
func OpenSQLite(cfg *config.Config) (*storage.SQLiteRepository, error) {
	return storage.NewSQLiteRepository(cfg.SQLiteDBPath,
		storage.WithQueryTimeout(cfg.DBTimeout),
		storage.WithLocation(cfg.Location()))
}

// InitSQLite opens and migrates the database or exits the process.
func InitSQLite(logger *applog.Logger, cfg *config.Config) *storage.SQLiteRepository {
	repo, err := OpenSQLite(cfg)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	return repo
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM, after
// cleanup has run or timeout has passed, and a channel closed once that is
// finished.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		cancel()
	}()

	return ctx, done
}

// WaitForShutdown blocks until shutdown has completed.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
