package migrations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/forge/internal/db/bunx"
)

func TestApply_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := bunx.NewDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	assert.False(t, IsPostgreSQL(db))

	group, err := Apply(ctx, db)
	require.NoError(t, err)
	assert.NotZero(t, group)

	group, err = Apply(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, group, "second run has nothing pending")

	for _, table := range []string{"users", "projects", "documents"} {
		var n int
		require.NoError(t, db.NewSelect().TableExpr(table).ColumnExpr("count(*)").Scan(ctx, &n), table)
	}
}

// Project deletion looks up users by containment on assigned_projects, so
// that is the column the GIN index must cover.
func TestAssignedProjectsIndexTargetsUsers(t *testing.T) {
	assert.Contains(t, assignedProjectsIndexDDL, "ON users USING gin (assigned_projects jsonb_path_ops)")
	assert.NotContains(t, assignedProjectsIndexDDL, "assigned_users")
}
