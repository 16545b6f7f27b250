// Package store is the local order mirror: a relational database
// (PostgreSQL in production, SQLite for tests and single-node runs)
// holding orders, their items, history rows, assets and the per-asset
// best-order index the marketplace serves from.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DriverPostgres and DriverSQLite are the two supported backends. The
// schema and every statement are written to run unchanged on both.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// executor lets repositories run against either the database or an
// open transaction.
type executor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store owns the database handle and hands out repositories.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDriver, driver)
	}
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, NewQueryError("open", "failed to open database", err)
	}
	if driver == DriverSQLite {
		// database/sql pooling breaks in-memory SQLite: each pooled
		// connection would see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, NewQueryError("open", "failed to ping database", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, NewQueryError("migrate", "failed to apply schema", err)
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Orders returns an order repository bound to the database.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{db: s.db} }

// History returns a history repository bound to the database.
func (s *Store) History() *HistoryRepository { return &HistoryRepository{db: s.db} }

// Assets returns an asset repository bound to the database.
func (s *Store) Assets() *AssetRepository { return &AssetRepository{db: s.db} }

// Currencies returns the currency allow-list repository.
func (s *Store) Currencies() *CurrencyRepository { return &CurrencyRepository{db: s.db} }

// Watch returns the watched-collection and repair-log repository.
func (s *Store) Watch() *WatchRepository { return &WatchRepository{db: s.db} }

// Tx groups the repositories over one open transaction.
type Tx struct {
	Orders  *OrderRepository
	History *HistoryRepository
	Assets  *AssetRepository
}

// WithTx runs fn inside a transaction, committing on nil and rolling
// back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewQueryError("begin_tx", "failed to begin transaction", err)
	}

	tx := &Tx{
		Orders:  &OrderRepository{tx: sqlTx},
		History: &HistoryRepository{tx: sqlTx},
		Assets:  &AssetRepository{tx: sqlTx},
	}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return NewQueryError("commit_tx", "failed to commit transaction", err)
	}
	return nil
}
