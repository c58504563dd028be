package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/pixelforge/forge/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260601000002, down_20260601000002)
}

// up_20260601000002 creates the documents table. Rows follow their project on delete.
func up_20260601000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating documents table...")
	if _, err := db.NewCreateTable().
		Model((*models.Document)(nil)).
		IfNotExists().
		ForeignKey(`("project_id") REFERENCES "projects" ("id") ON DELETE CASCADE`).
		ForeignKey(`("uploader_id") REFERENCES "users" ("id")`).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	if _, err := db.NewCreateIndex().
		Model((*models.Document)(nil)).
		Index("idx_documents_project_id").
		Column("project_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents project index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

func down_20260601000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping documents table...")
	if _, err := db.NewDropTable().Model((*models.Document)(nil)).IfExists().Exec(ctx); err != nil {
		return err
	}
	fmt.Println(" OK")
	return nil
}
