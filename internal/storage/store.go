// Package storage is the ledger store: schema, migrations and every SQL
// statement the services run. SQLite (modernc) is the default dialect,
// PostgreSQL (pgx) the alternative; both share the same statements.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) IsValid() bool {
	return d == DialectSQLite || d == DialectPostgres
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Options configures Open.
type Options struct {
	Dialect Dialect
	// SQLitePath is the database file for DialectSQLite.
	SQLitePath string
	// PostgresURL is the connection string for DialectPostgres.
	PostgresURL  string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// Store owns the database handle. It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// SQLiteDSN builds a modernc DSN with foreign keys on, WAL journaling, a
// bounded busy wait and BEGIN IMMEDIATE so writers serialize on BeginTx.
func SQLiteDSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open connects, pings and migrates the store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if !opts.Dialect.IsValid() {
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}

	var dsn string
	switch opts.Dialect {
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = SQLiteDSN(opts.SQLitePath, opts.BusyTimeout)
	case DialectPostgres:
		if opts.PostgresURL == "" {
			return nil, fmt.Errorf("postgres url is required")
		}
		dsn = opts.PostgresURL
	}

	if err := RunMigrations(opts.Dialect, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open(opts.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Dialect, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "Ledger store opened", "dialect", opts.Dialect)
	return &Store{db: db, dialect: opts.Dialect}, nil
}

// OpenSQLite is a shortcut for a file-backed SQLite store.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	return Open(ctx, Options{Dialect: DialectSQLite, SQLitePath: path})
}

func (s *Store) Dialect() Dialect { return s.dialect }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// Tx is one transaction scope. It is only valid inside the WithTx or
// WithReadTx callback.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.rebind(query), args...)
}

// WithTx runs fn inside one database transaction. The transaction commits
// when fn returns nil and rolls back otherwise; the returned error is
// classified into the core error kinds.
func (s *Store) WithTx(ctx context.Context, op string, fn func(*Tx) error) error {
	return s.withTx(ctx, op, nil, fn)
}

// WithReadTx runs fn in a read-only transaction. On SQLite it opens with a
// deferred BEGIN instead of BEGIN IMMEDIATE, so under WAL it reads a
// committed snapshot without waiting for the write lock.
func (s *Store) WithReadTx(ctx context.Context, op string, fn func(*Tx) error) error {
	return s.withTx(ctx, op, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *Store) withTx(ctx context.Context, op string, opts *sql.TxOptions, fn func(*Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return classify(op, fmt.Errorf("begin tx: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				slog.ErrorContext(ctx, "Rollback failed", "op", op, "error", rbErr)
			}
		}
	}()

	if err = fn(&Tx{tx: sqlTx, dialect: s.dialect}); err != nil {
		return classify(op, err)
	}

	if err = sqlTx.Commit(); err != nil {
		return classify(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// rowsAffected returns the affected row count of res.
func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// dbTime scans timestamps from either driver. SQLite hands back text when
// the column type is not visible (RETURNING, expressions).
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
