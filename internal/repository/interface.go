package repository

import (
	"context"
	"errors"

	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/domain"
)

// ErrVersionConflict reports that a row changed between read and guarded write.
// The enclosing transaction has been rolled back and the operation may be retried.
var ErrVersionConflict = errors.New("version conflict")

// UserRepository exposes persistence operations for user accounts.
// Emails are normalised with domain.NormalizeEmail on every read and write.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]models.User, error)
	List(ctx context.Context) ([]models.User, error)

	// CompareAndSetPasswordHash replaces the hash only if it still equals oldHash.
	// It returns ErrVersionConflict when another writer got there first.
	CompareAndSetPasswordHash(ctx context.Context, id, oldHash, newHash string) error
}

// ProjectRepository exposes persistence operations for projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Project, error)
	List(ctx context.Context) ([]models.Project, error)

	// MarkCompleted moves an Active project to Completed. changed is false when it
	// was already Completed.
	MarkCompleted(ctx context.Context, id string) (project *models.Project, changed bool, err error)

	// Delete removes the project, detaches it from every user that references it and
	// deletes its document rows, all in one transaction.
	Delete(ctx context.Context, id string) (*DeleteResult, error)
}

// DeleteResult describes what a project delete cascaded to.
type DeleteResult struct {
	Project       *models.Project
	DetachedUsers []string
	Documents     []models.Document
}

// AssignmentRepository maintains the two-sided User/Project reference sets.
// Each call writes both sides in a single transaction guarded by row versions.
type AssignmentRepository interface {
	Assign(ctx context.Context, projectID, userID string) (changed bool, err error)
	Unassign(ctx context.Context, projectID, userID string) (changed bool, err error)
	Reconcile(ctx context.Context, dryRun bool) (*ReconcileReport, error)
}

// RepairAction names the fix applied to one asymmetric reference.
type RepairAction string

const (
	RepairLinkProject    RepairAction = "link-project"     // project gained a user the user already listed
	RepairLinkUser       RepairAction = "link-user"        // user gained a project the project already listed
	RepairDropProjectRef RepairAction = "drop-project-ref" // user referenced a project that no longer exists
	RepairDropUserRef    RepairAction = "drop-user-ref"    // project referenced a user that no longer exists
)

// Repair is one fix found by a reconciliation pass.
type Repair struct {
	UserID    string       `json:"userId"`
	ProjectID string       `json:"projectId"`
	Action    RepairAction `json:"action"`
}

// ReconcileReport summarises a reconciliation pass.
type ReconcileReport struct {
	UsersScanned    int      `json:"usersScanned"`
	ProjectsScanned int      `json:"projectsScanned"`
	Repairs         []Repair `json:"repairs"`
	DryRun          bool     `json:"dryRun"`
}

// DocumentRepository exposes persistence operations for document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]models.Document, error)
}
