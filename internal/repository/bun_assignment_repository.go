package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/pixelforge/forge/internal/db/models"
)

// BunAssignmentRepository implements AssignmentRepository using Bun ORM.
//
// Both sides of a link are rewritten inside one transaction, and each write is
// conditioned on the version read at the start of it. A concurrent writer makes
// the condition fail, the transaction rolls back with ErrVersionConflict and no
// partial link is ever visible.
type BunAssignmentRepository struct {
	db *bun.DB
}

// NewBunAssignmentRepository creates a new Bun-based assignment repository
func NewBunAssignmentRepository(db *bun.DB) *BunAssignmentRepository {
	return &BunAssignmentRepository{db: db}
}

// Assign links projectID and userID on both sides. A side that already holds
// the link is left alone, so replays are no-ops and one-sided links get repaired.
func (r *BunAssignmentRepository) Assign(ctx context.Context, projectID, userID string) (bool, error) {
	var changed bool
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		project, user, err := loadPair(ctx, tx, projectID, userID)
		if err != nil {
			return err
		}

		users, addedUser := project.AssignedUsers.Add(userID)
		projects, addedProject := user.AssignedProjects.Add(projectID)

		if addedUser {
			if err := writeProjectRefs(ctx, tx, project, users); err != nil {
				return err
			}
		}
		if addedProject {
			if err := writeUserRefs(ctx, tx, user, projects); err != nil {
				return err
			}
		}
		changed = addedUser || addedProject
		return nil
	})
	if err != nil {
		return false, wrap("assign developer", err)
	}
	return changed, nil
}

// Unassign removes the link from both sides. Removing an absent link is a no-op.
func (r *BunAssignmentRepository) Unassign(ctx context.Context, projectID, userID string) (bool, error) {
	var changed bool
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		project, user, err := loadPair(ctx, tx, projectID, userID)
		if err != nil {
			return err
		}

		users, removedUser := project.AssignedUsers.Remove(userID)
		projects, removedProject := user.AssignedProjects.Remove(projectID)

		if removedUser {
			if err := writeProjectRefs(ctx, tx, project, users); err != nil {
				return err
			}
		}
		if removedProject {
			if err := writeUserRefs(ctx, tx, user, projects); err != nil {
				return err
			}
		}
		changed = removedUser || removedProject
		return nil
	})
	if err != nil {
		return false, wrap("unassign developer", err)
	}
	return changed, nil
}

// Reconcile scans every user and project and makes the reference sets agree.
// A one-sided link between two existing entities is completed; a reference to a
// missing entity is dropped. With dryRun the repairs are reported but not written.
func (r *BunAssignmentRepository) Reconcile(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	report := &ReconcileReport{DryRun: dryRun, Repairs: []Repair{}}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var users []models.User
		if err := tx.NewSelect().Model(&users).Order("id ASC").Scan(ctx); err != nil {
			return fmt.Errorf("scan users: %w", err)
		}
		var projects []models.Project
		if err := tx.NewSelect().Model(&projects).Order("id ASC").Scan(ctx); err != nil {
			return fmt.Errorf("scan projects: %w", err)
		}
		report.UsersScanned = len(users)
		report.ProjectsScanned = len(projects)

		userRefs := make(map[string]models.IDSet, len(users))
		for _, u := range users {
			userRefs[u.ID] = u.AssignedProjects
		}
		projectRefs := make(map[string]models.IDSet, len(projects))
		for _, p := range projects {
			projectRefs[p.ID] = p.AssignedUsers
		}
		dirtyUsers := map[string]bool{}
		dirtyProjects := map[string]bool{}

		for _, u := range users {
			for _, pid := range u.AssignedProjects {
				refs, exists := projectRefs[pid]
				switch {
				case !exists:
					userRefs[u.ID], _ = userRefs[u.ID].Remove(pid)
					dirtyUsers[u.ID] = true
					report.Repairs = append(report.Repairs, Repair{UserID: u.ID, ProjectID: pid, Action: RepairDropProjectRef})
				case !refs.Contains(u.ID):
					projectRefs[pid], _ = refs.Add(u.ID)
					dirtyProjects[pid] = true
					report.Repairs = append(report.Repairs, Repair{UserID: u.ID, ProjectID: pid, Action: RepairLinkProject})
				}
			}
		}
		for _, p := range projects {
			for _, uid := range p.AssignedUsers {
				refs, exists := userRefs[uid]
				switch {
				case !exists:
					projectRefs[p.ID], _ = projectRefs[p.ID].Remove(uid)
					dirtyProjects[p.ID] = true
					report.Repairs = append(report.Repairs, Repair{UserID: uid, ProjectID: p.ID, Action: RepairDropUserRef})
				case !refs.Contains(p.ID):
					userRefs[uid], _ = refs.Add(p.ID)
					dirtyUsers[uid] = true
					report.Repairs = append(report.Repairs, Repair{UserID: uid, ProjectID: p.ID, Action: RepairLinkUser})
				}
			}
		}

		if dryRun {
			return nil
		}
		for i := range users {
			if dirtyUsers[users[i].ID] {
				if err := writeUserRefs(ctx, tx, &users[i], userRefs[users[i].ID]); err != nil {
					return err
				}
			}
		}
		for i := range projects {
			if dirtyProjects[projects[i].ID] {
				if err := writeProjectRefs(ctx, tx, &projects[i], projectRefs[projects[i].ID]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap("reconcile assignments", err)
	}
	return report, nil
}

func loadPair(ctx context.Context, tx bun.Tx, projectID, userID string) (*models.Project, *models.User, error) {
	project, err := getProject(ctx, tx, projectID)
	if err != nil {
		return nil, nil, err
	}
	user, err := getUser(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}
	return project, user, nil
}

// writeProjectRefs stores refs as the project's user set if the row is still at
// the version it was read at.
func writeProjectRefs(ctx context.Context, tx bun.Tx, project *models.Project, refs models.IDSet) error {
	res, err := tx.NewUpdate().
		Model((*models.Project)(nil)).
		Set("assigned_users = ?", refs).
		Set("version = version + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", project.ID).
		Where("version = ?", project.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update project references: %w", err)
	}
	if err := requireOneRow(res, "project", project.ID); err != nil {
		return err
	}
	project.AssignedUsers = refs
	project.Version++
	return nil
}

// writeUserRefs is writeProjectRefs for the user side.
func writeUserRefs(ctx context.Context, tx bun.Tx, user *models.User, refs models.IDSet) error {
	res, err := tx.NewUpdate().
		Model((*models.User)(nil)).
		Set("assigned_projects = ?", refs).
		Set("version = version + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", user.ID).
		Where("version = ?", user.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user references: %w", err)
	}
	if err := requireOneRow(res, "user", user.ID); err != nil {
		return err
	}
	user.AssignedProjects = refs
	user.Version++
	return nil
}

func requireOneRow(res sql.Result, entity, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s changed concurrently: %w", entity, id, ErrVersionConflict)
	}
	return nil
}
