package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/pixelforge/forge/internal/db/bunx"
	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/domain"
)

// BunProjectRepository implements ProjectRepository using Bun ORM
type BunProjectRepository struct {
	db *bun.DB
}

// NewBunProjectRepository creates a new Bun-based project repository
func NewBunProjectRepository(db *bun.DB) *BunProjectRepository {
	return &BunProjectRepository{db: db}
}

// Create inserts a new project. ID, timestamps, status and version are filled in when empty.
func (r *BunProjectRepository) Create(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()
	if project.ID == "" {
		project.ID = bunx.NewUUIDv7()
	}
	if project.Status == "" {
		project.Status = domain.ProjectActive
	}
	if project.TechStack == nil {
		project.TechStack = models.StringList{}
	}
	if project.AssignedUsers == nil {
		project.AssignedUsers = models.IDSet{}
	}
	project.Version = 1
	project.CreatedAt = now
	project.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(project).Exec(ctx); err != nil {
		return wrap("create project", err)
	}
	return nil
}

// GetByID retrieves a project by its ID
func (r *BunProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	return getProject(ctx, r.db, id)
}

func getProject(ctx context.Context, db bun.IDB, id string) (*models.Project, error) {
	if !isUUID(id) {
		return nil, domain.NotFoundf("project %s", id)
	}
	project := new(models.Project)
	err := db.NewSelect().
		Model(project).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFoundf("project %s", id)
		}
		return nil, wrap("get project by ID", err)
	}
	return project, nil
}

// GetByIDs returns the projects that exist among ids, newest first. Missing ids are skipped.
func (r *BunProjectRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Project, error) {
	projects := []models.Project{}
	ids = uuidsOnly(ids)
	if len(ids) == 0 {
		return projects, nil
	}
	err := r.db.NewSelect().
		Model(&projects).
		Where("id IN (?)", bun.In(ids)).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("get projects by IDs", err)
	}
	return projects, nil
}

// List retrieves all projects, newest first
func (r *BunProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	projects := []models.Project{}
	err := r.db.NewSelect().
		Model(&projects).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list projects", err)
	}
	return projects, nil
}

// MarkCompleted transitions Active to Completed. Completed projects are returned unchanged.
func (r *BunProjectRepository) MarkCompleted(ctx context.Context, id string) (*models.Project, bool, error) {
	if !isUUID(id) {
		return nil, false, domain.NotFoundf("project %s", id)
	}
	var (
		project *models.Project
		changed bool
	)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*models.Project)(nil)).
			Set("status = ?", domain.ProjectCompleted).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", id).
			Where("status = ?", domain.ProjectActive).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		changed = rows > 0

		project, err = getProject(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, false, wrap("mark project completed", err)
	}
	return project, changed, nil
}

// Delete removes a project and everything that points at it in one transaction.
// Users are found both through the project's own set and by scanning their sets,
// so one-sided references are cleaned up as well.
func (r *BunProjectRepository) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	result := &DeleteResult{}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		project, err := getProject(ctx, tx, id)
		if err != nil {
			return err
		}
		result.Project = project

		var referencing []models.User
		q := tx.NewSelect().Model(&referencing)
		q = whereRefsContain(tx, q, bun.Ident("assigned_projects"), id)
		if len(project.AssignedUsers) > 0 {
			q = q.WhereOr("id IN (?)", bun.In([]string(project.AssignedUsers)))
		}
		if err := q.Scan(ctx); err != nil {
			return fmt.Errorf("find users referencing project: %w", err)
		}

		for i := range referencing {
			user := &referencing[i]
			refs, removed := user.AssignedProjects.Remove(id)
			if !removed {
				continue
			}
			if err := writeUserRefs(ctx, tx, user, refs); err != nil {
				return err
			}
			result.DetachedUsers = append(result.DetachedUsers, user.ID)
		}

		if err := tx.NewSelect().
			Model(&result.Documents).
			Where("project_id = ?", id).
			Scan(ctx); err != nil {
			return fmt.Errorf("list project documents: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*models.Document)(nil)).
			Where("project_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete project documents: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*models.Project)(nil)).
			Where("id = ?", id).
			Where("version = ?", project.Version).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return requireOneRow(res, "project", id)
	})
	if err != nil {
		return nil, wrap("delete project", err)
	}
	return result, nil
}
