package main

import (
	"context"
	"os/signal"
	"syscall"

	"seminarbuchung/cmd/consumers/handlers"
	"seminarbuchung/cmd/consumers/jobs"
	"seminarbuchung/internal/config"
	"seminarbuchung/internal/consumers"
	"seminarbuchung/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	log.Info("Starting consumers service...")

	// Override NATS client ID for consumers
	cfg.NATS.ClientID = "seminar-consumers"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumerService, err := consumers.NewConsumerService(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	var syncer consumers.SessionSyncer
	if es := consumerService.Search(); es != nil {
		var catalogCache handlers.CatalogCache
		if valkey := consumerService.Cache(); valkey != nil {
			catalogCache = valkey
		}
		syncer = handlers.NewSearchSyncHandler(consumerService.Catalog(), es, catalogCache)
	}

	if err := consumerService.Start(ctx, syncer); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	reconciliation := jobs.NewPaymentReconciliationJob(consumerService.Bookings(), cfg.Reconcile)
	reconciliation.Start(ctx)

	log.Info("Consumers service started successfully")

	<-ctx.Done()

	log.Info("Shutting down consumers service...")

	reconciliation.Stop()
	if err := consumerService.Shutdown(); err != nil {
		log.Error("Error during shutdown", "error", err)
	}

	log.Info("Consumers service stopped")
}
