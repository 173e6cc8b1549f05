// Package storage opens the WorkWatch database, applies the embedded goose
// migrations and vends repositories bound to either the pool or a
// transaction.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/workwatch/internal/dbx"
	"github.com/dmitrijs2005/workwatch/internal/migrations"
	"github.com/dmitrijs2005/workwatch/internal/repositories/entries"
	"github.com/dmitrijs2005/workwatch/internal/repositories/epochs"
	"github.com/dmitrijs2005/workwatch/internal/repositories/openings"
	"github.com/dmitrijs2005/workwatch/internal/repositories/trail"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Store couples a connection pool with its dialect.
type Store struct {
	DB      *sql.DB
	Dialect dbx.Dialect
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open connects using a database/sql driver name ("sqlite" or "pgx").
// SQLite pools are limited to one connection so writers serialize.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := dbx.DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlOpen(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	if d == dbx.SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	return &Store{DB: db, Dialect: d}, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations for the store dialect.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(s.Dialect.GooseDialect()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	dir := migrations.SQLiteDir
	if s.Dialect == dbx.Postgres {
		dir = migrations.PostgresDir
	}
	if err := gooseUpContext(ctx, s.DB, dir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Entries returns an entries.Repository bound to db.
func (s *Store) Entries(db dbx.DBTX) entries.Repository {
	return entries.NewSQLRepository(db, s.Dialect)
}

// Trail returns a trail.Repository bound to db.
func (s *Store) Trail(db dbx.DBTX) trail.Repository {
	return trail.NewSQLRepository(db, s.Dialect)
}

// Epochs returns an epochs.Repository bound to db.
func (s *Store) Epochs(db dbx.DBTX) epochs.Repository {
	return epochs.NewSQLRepository(db, s.Dialect)
}

// Openings returns an openings.Repository bound to db.
func (s *Store) Openings(db dbx.DBTX) openings.Repository {
	return openings.NewSQLRepository(db, s.Dialect)
}

// WithTx runs fn in a transaction on the store pool.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.DB, nil, fn)
}
