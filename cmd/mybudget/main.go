package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mybudget/internal/cli"
	apphttp "mybudget/internal/http"
	"mybudget/internal/log"
	"mybudget/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	be := cli.OpenBackend(context.Background(), logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	// Events are recorded in the outbox; the ledger worker relays them.
	writer := services.NewTransactionWriter(be.Store, services.WithOutboxEvents())

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Store:          be.Store,
		Writer:         writer,
		Reports:        services.NewReportService(be.Store),
		Auditor:        services.NewBalanceAuditor(be.Store, true),
		Logger:         logger,
		JWTSecret:      cfg.JWTSecret,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting mybudget server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth_enabled", cfg.AuthEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Exit(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
