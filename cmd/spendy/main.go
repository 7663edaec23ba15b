package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendy/internal/amqp"
	"spendy/internal/cli"
	apphttp "spendy/internal/http"
	applog "spendy/internal/log"
	"spendy/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	var publisher services.ActivityPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Activity still lands in the database without the queue.
			logger.Warn("AMQP unavailable, recording activity directly", applog.FieldError, err)
		} else {
			amqpClient = client
			publisher = client
			defer amqpClient.Close()
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc, caches := cli.BuildServices(cfg, repo, publisher)
	caches.StartCleanup(time.Minute)

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		Development:        cfg.IsDevelopment(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Ready:              repo.Ping,
		Caches:             caches,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting spendy server",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"timezone", cfg.Timezone,
		"amqp", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
