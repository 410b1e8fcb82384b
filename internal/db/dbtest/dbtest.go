// Package dbtest provides migrated throwaway databases for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/taskflow/apiserver/config"
	"github.com/taskflow/apiserver/internal/db"
)

// SQLiteConfig points at a fresh database file inside the test's temp dir.
func SQLiteConfig(t testing.TB) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "taskflow.db"),
		MaxOpenConns: 4,
	}
}

// NewSQLite returns an open, fully migrated sqlite pool closed on cleanup.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()

	cfg := SQLiteConfig(t)
	require.NoError(t, db.MigrateUp(t.Context(), cfg))

	conn, err := db.Open(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
