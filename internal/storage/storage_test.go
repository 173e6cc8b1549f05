package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/workwatch/internal/dbx"
	"github.com/dmitrijs2005/workwatch/internal/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "ww.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.RunMigrations(context.Background()))
	return s
}

var testNow = time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

func TestOpen_SQLiteAndMigrate(t *testing.T) {
	s := openSQLite(t)
	assert.Equal(t, dbx.SQLite, s.Dialect)

	var n int
	require.NoError(t, s.DB.QueryRow(`select count(*) from chain_entries`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, s.RunMigrations(context.Background()), "migrations are idempotent")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}

func TestOpen_PingFailureClosesPool(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("refused"))
	mock.ExpectClose()

	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driver)
		return db, nil
	}
	defer func() { sqlOpen = orig }()

	_, err = Open(context.Background(), "pgx", "postgres://x")
	assert.ErrorContains(t, err, "refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_PostgresUsesPostgresDir(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var gotDir string
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	defer func() { gooseUpContext = orig }()

	s := &Store{DB: db, Dialect: dbx.Postgres}
	require.NoError(t, s.RunMigrations(context.Background()))
	assert.Equal(t, migrations.PostgresDir, gotDir)
}

func TestRunMigrations_Error(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("migrate failed")
	}
	defer func() { gooseUpContext = orig }()

	s := &Store{DB: db, Dialect: dbx.SQLite}
	assert.ErrorContains(t, s.RunMigrations(context.Background()), "migrate failed")
}

func TestFactories_ReturnRepos(t *testing.T) {
	s := openSQLite(t)

	assert.NotNil(t, s.Entries(s.DB))
	assert.NotNil(t, s.Trail(s.DB))
	assert.NotNil(t, s.Epochs(s.DB))
	assert.NotNil(t, s.Openings(s.DB))

	err := s.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.Epochs(tx).Current(ctx, "w1", testNow)
		return err
	})
	require.NoError(t, err)
}
