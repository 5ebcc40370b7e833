package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // register sqlite migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/store"
)

var (
	_ job.Store   = (*Store)(nil)
	_ store.Store = (*Store)(nil)
)

// Store is a grove implementation of store.Store using the SQLite dialect.
type Store struct {
	db     *grove.DB
	sdb    *sqlitedriver.SqliteDB
	owned  bool
	logger *slog.Logger

	// writeMu serializes mutations so concurrent claims never race for
	// the database write lock.
	writeMu sync.Mutex
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store on db. The caller owns the db lifecycle; Close does
// not close it.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		sdb:    sqlitedriver.Unwrap(db),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the SQLite database at dsn, e.g.
// "file:jobq.db?_pragma=busy_timeout(5000)". The Store owns the handle and
// closes it on Close.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	drv, err := grove.OpenDriver(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobq/sqlite: open: %w", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		return nil, fmt.Errorf("jobq/sqlite: open: %w", err)
	}
	s := New(db, opts...)
	s.owned = true
	return s, nil
}

// DB returns the underlying *grove.DB for advanced usage.
func (s *Store) DB() *grove.DB {
	return s.db
}

// Migrate applies pending schema migrations through the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("jobq/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("jobq/sqlite: migration failed: %w", err)
	}
	s.logger.Debug("sqlite schema up to date", slog.String("group", "jobq"))
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.db.Ping(ctx))
}

// Close closes the database when the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// ── helpers ──────────────────────────────────────────────────────

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a SQLite error is a unique constraint violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrap reports a SQLite failure as a *jobq.StoreError.
func wrap(op string, err error) error {
	return jobq.NewStoreError("sqlite."+op, err)
}
