package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"timebank/internal/amqp"
	"timebank/internal/cli"
	applog "timebank/internal/log"
	"timebank/internal/worker"
)

const auditInterval = 15 * time.Minute

func main() {
	logger := cli.Setup(applog.ComponentWorker)
	logger.Info("Starting timebank-worker")

	cfg := cli.LoadConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.OpenStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditWorker := worker.NewAuditWorker(repo)

	// Startup pass over all wallets before consuming messages.
	if err := auditWorker.AuditWallets(ctx); err != nil {
		logger.Error("Startup wallet audit failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeEntryRecorded(gctx, auditWorker.HandleEntryRecorded)
	})

	g.Go(func() error {
		ticker := time.NewTicker(auditInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := auditWorker.AuditWallets(gctx); err != nil {
					logger.Error("Periodic wallet audit failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
