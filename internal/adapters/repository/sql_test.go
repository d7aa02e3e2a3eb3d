package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	sqlite, _ := dialectFor(DriverSQLite)
	pg, _ := dialectFor(DriverPostgres)

	q := `SELECT a FROM t WHERE b = ? AND c IN (?, ?)`
	assert.Equal(t, q, sqlite.rebind(q))
	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c IN ($2, $3)`, pg.rebind(q))
	assert.True(t, sqlite.sqlite())
	assert.False(t, pg.sqlite())
}

func TestOpenSQL_UnsupportedDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "oracle", "dsn")
	assert.True(t, errors.Is(err, ErrUnsupportedDriver))
}

func TestOpenSQL_Migrations(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "migrate.db")

	s, err := OpenSQL(ctx, DriverSQLite, dsn)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.SchemaVersion())

	var tables int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'user_leagues', 'sponsors', 'transactions', 'points_ledger', 'operators')`).
		Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 6, tables)
	require.NoError(t, s.Close())

	// Reopening applies nothing new.
	s, err = OpenSQL(ctx, DriverSQLite, dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.Equal(t, int64(3), s.SchemaVersion())
}

func TestOpenSQL_WithoutMigrations(t *testing.T) {
	s, err := OpenSQL(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "bare.db"), WithoutMigrations())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.Equal(t, int64(0), s.SchemaVersion())
}

func TestNew_Memory(t *testing.T) {
	s, err := New(context.Background(), DriverMemory, "")
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}
