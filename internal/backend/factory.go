package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mybudget/internal/amqp"
	"mybudget/internal/sheets"
	gsheet "mybudget/internal/sheets/google"
	"mybudget/internal/sheets/memory"
	"mybudget/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the store, then the optional broker and mirror.
// Broker failures are logged and the backend continues without events;
// the outbox keeps them until a relay can publish.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, storage.Options{
		Dialect:     config.Type.dialect(),
		SQLitePath:  config.SQLiteDBPath,
		PostgresURL: config.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %w", err)
	}

	result := &BackendResult{Store: store}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			result.AMQP = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	mirror, err := f.createMirror(ctx, config)
	if err != nil {
		result.close()
		return nil, err
	}
	result.Mirror = mirror
	result.Cleanup = result.close

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"amqp_enabled", result.AMQP != nil,
		"sheets_enabled", config.GoogleSpreadsheetID != "")

	return result, nil
}

func (f *DefaultFactory) createMirror(ctx context.Context, config Config) (sheets.LedgerMirror, error) {
	if config.GoogleSpreadsheetID == "" {
		return memory.New(), nil
	}
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleCredentialsJSON,
		CredentialsFile: config.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets mirror", "spreadsheet_id", config.GoogleSpreadsheetID)
	return cli, nil
}

func (r *BackendResult) close() error {
	var errs []error
	if r.AMQP != nil {
		errs = append(errs, r.AMQP.Close())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	return errors.Join(errs...)
}
