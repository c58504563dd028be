package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/pixelforge/forge/internal/db/models"
)

// assignedProjectsIndexDDL indexes the containment lookup that finds every user
// referencing a project when the project is deleted.
const assignedProjectsIndexDDL = `CREATE INDEX IF NOT EXISTS idx_users_assigned_projects_gin ON users USING gin (assigned_projects jsonb_path_ops)`

func init() {
	Migrations.MustRegister(up_20260601000001, down_20260601000001)
}

// up_20260601000001 creates the users and projects tables
func up_20260601000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	if _, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*models.User)(nil)).
		Index("idx_users_role").
		Column("role").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users role index: %w", err)
	}
	if IsPostgreSQL(db) {
		if _, err := db.ExecContext(ctx, assignedProjectsIndexDDL); err != nil {
			return fmt.Errorf("failed to create GIN index on assigned_projects: %w", err)
		}
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating projects table...")
	if _, err := db.NewCreateTable().
		Model((*models.Project)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create projects table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

func down_20260601000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping projects and users tables...")
	for _, model := range []any{(*models.Project)(nil), (*models.User)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	fmt.Println(" OK")
	return nil
}
