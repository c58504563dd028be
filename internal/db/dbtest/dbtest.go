// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/pixelforge/forge/internal/db/bunx"
	"github.com/pixelforge/forge/internal/migrations"
)

// NewSQLite returns a fresh in-memory SQLite database with every migration applied.
// The database is closed when the test ends.
func NewSQLite(t testing.TB) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)

	return db
}
