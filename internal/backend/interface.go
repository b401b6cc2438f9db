package backend

import (
	"context"

	"mybudget/internal/amqp"
	"mybudget/internal/sheets"
	"mybudget/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds everything a process needs to reach its data.
type BackendResult struct {
	Store *storage.Store
	// AMQP is nil when no broker is configured.
	AMQP *amqp.Client
	// Mirror is the Google Sheets mirror, or an in-process one.
	Mirror  sheets.LedgerMirror
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string
}

// BackendType is the SQL dialect of the ledger store.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

func (bt BackendType) dialect() storage.Dialect {
	if bt == PostgresBackend {
		return storage.DialectPostgres
	}
	return storage.DialectSQLite
}
