package main

import (
	"context"
	"os"
	"time"

	"spendy/internal/amqp"
	"spendy/internal/cli"
	applog "spendy/internal/log"
	"spendy/internal/worker"
)

const statsInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting spendy-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	activityWorker := worker.NewActivityWorker(repo)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		if err := activityWorker.Run(runCtx, amqpClient); err != nil {
			logger.Error("Activity worker stopped", applog.FieldError, err)
		}
	}()

	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				st := activityWorker.Stats()
				logger.Info("Activity worker progress", "processed", st.Processed, "failed", st.Failed)
			}
		}
	}()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		stop()
		select {
		case <-finished:
		case <-ctx.Done():
		}
	})
	cli.WaitForShutdown(ctx, done)

	st := activityWorker.Stats()
	logger.Info("Worker shutdown complete", "processed", st.Processed, "failed", st.Failed)
}
