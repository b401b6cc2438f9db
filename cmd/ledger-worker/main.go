package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"mybudget/internal/backend"
	"mybudget/internal/cache"
	"mybudget/internal/cli"
	"mybudget/internal/config"
	"mybudget/internal/log"
	"mybudget/internal/services"
	"mybudget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	be := cli.OpenBackend(context.Background(), logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	lw := newLedgerWorker(be, cfg)

	caches := cache.NewManager()
	caches.Register(lw.SeenEvents())
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	// Without a broker the relay hands events straight to the worker.
	var publisher services.EventPublisher = lw
	if be.AMQP != nil {
		publisher = be.AMQP
	}
	relay := services.NewOutboxRelay(be.Store, publisher, services.OutboxRelayConfig{
		PollInterval: cfg.OutboxInterval,
		BatchSize:    cfg.OutboxBatchSize,
	})
	audits := services.NewAuditProcessor(services.NewBalanceAuditor(be.Store, cfg.AuditRepair),
		services.AuditProcessorConfig{Interval: cfg.AuditInterval})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := relay.Stop(ctx); err != nil {
			logger.Error("Outbox relay stop failed", log.FieldError, err.Error())
		}
		if err := audits.Stop(ctx); err != nil {
			logger.Error("Audit processor stop failed", log.FieldError, err.Error())
		}
	})

	if err := relay.Start(ctx); err != nil {
		cli.Exit(logger, "Failed to start outbox relay", err)
	}
	if err := audits.Start(ctx); err != nil {
		cli.Exit(logger, "Failed to start audit processor", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Performing startup resync...")
		if err := lw.StartupResync(gctx); err != nil {
			// the periodic audit and new events still run
			logger.Error("Startup resync failed", log.FieldError, err.Error())
		}
		return nil
	})
	if be.AMQP != nil {
		g.Go(func() error {
			err := be.AMQP.ConsumeLedgerEvents(gctx, lw.HandleLedgerEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("No AMQP broker configured, relaying events in process")
	}

	if err := g.Wait(); err != nil {
		cli.Exit(logger, "Message consumption failed", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}

// newLedgerWorker builds the event handler. Its auditor repairs only when
// AUDIT_REPAIR allows it, like the periodic audit.
func newLedgerWorker(be *backend.BackendResult, cfg *config.Config) *worker.LedgerWorker {
	return worker.NewLedgerWorker(be.Store, services.NewBalanceAuditor(be.Store, cfg.AuditRepair), be.Mirror)
}
