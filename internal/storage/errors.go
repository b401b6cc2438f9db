package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"mybudget/internal/core"
)

// PostgreSQL SQLSTATE codes the store distinguishes.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgNotNullViolation     = "23502"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// classify maps driver errors to core error kinds. Errors that are already
// classified pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := core.AsError(err); ok {
		return err
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		return classifySQLite(op, se.Code(), err)
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return classifyPostgres(op, pe.Code, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.StorageFailure(op, err, true)
	}
	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) {
		return core.StorageFailure(op, err, true)
	}
	return core.StorageFailure(op, err, false)
}

func classifySQLite(op string, code int, err error) error {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return &core.Error{Kind: core.ErrConflict, Op: op, Detail: "duplicate value", Err: err}
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return &core.Error{Kind: core.ErrReferential, Op: op, Detail: "referenced row does not exist", Err: err}
	case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return &core.Error{Kind: core.ErrValidation, Op: op, Detail: "value rejected by schema", Err: err}
	}
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return core.StorageFailure(op, fmt.Errorf("database is busy: %w", err), true)
	}
	return core.StorageFailure(op, err, false)
}

func classifyPostgres(op, code string, err error) error {
	switch code {
	case pgUniqueViolation:
		return &core.Error{Kind: core.ErrConflict, Op: op, Detail: "duplicate value", Err: err}
	case pgForeignKeyViolation:
		return &core.Error{Kind: core.ErrReferential, Op: op, Detail: "referenced row does not exist", Err: err}
	case pgCheckViolation, pgNotNullViolation:
		return &core.Error{Kind: core.ErrValidation, Op: op, Detail: "value rejected by schema", Err: err}
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return core.StorageFailure(op, fmt.Errorf("lock not acquired: %w", err), true)
	}
	return core.StorageFailure(op, err, false)
}
