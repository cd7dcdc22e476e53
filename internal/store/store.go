// Package store persists quizzes, sessions and graded answers on database/sql. Postgres is
// reached through the pgx stdlib driver and SQLite through modernc; both share one dialect of
// numbered placeholders and ON CONFLICT upserts.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/victornm/quizforge/internal/errors"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

type Store struct {
	db     *sql.DB
	driver Driver
}

// Open connects to the database and creates missing tables.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var name string
	switch driver {
	case DriverPostgres:
		name = "pgx"
	case DriverSQLite:
		name = "sqlite"
		if dsn == "" {
			dsn = "file:quizforge.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps in-memory databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, stderrors.Join(fmt.Errorf("store: ping: %w", err), db.Close())
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		return nil, stderrors.Join(err, db.Close())
	}

	return s, nil
}

// DB exposes the connection pool for collaborators sharing the same database.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := schemaPostgres
	if s.driver == DriverSQLite {
		schema = schemaSQLite
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}

	return nil
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback())
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// convertError maps driver constraint violations onto caller-visible errors.
func convertError(err error, format string, args ...any) error {
	if isUniqueViolation(err) {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef(format, args...),
			errors.WithCause(err),
		)
	}

	return err
}

func isUniqueViolation(err error) bool {
	const codeUniqueViolation = "23505"

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}

	var liteErr *sqlite.Error
	if stderrors.As(err, &liteErr) {
		c := liteErr.Code()
		return c == sqlite3.SQLITE_CONSTRAINT_UNIQUE || c == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return false
}
