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

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

// Create inserts a new user. ID, timestamps and version are filled in when empty.
func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = bunx.NewUUIDv7()
	}
	user.Email = domain.NormalizeEmail(user.Email)
	if user.AssignedProjects == nil {
		user.AssignedProjects = models.IDSet{}
	}
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %s: %w", user.Email, domain.ErrDuplicateEmail)
		}
		return wrap("create user", err)
	}
	return nil
}

// GetByID retrieves a user by their ID
func (r *BunUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, r.db, id)
}

func getUser(ctx context.Context, db bun.IDB, id string) (*models.User, error) {
	if !isUUID(id) {
		return nil, domain.NotFoundf("user %s", id)
	}
	user := new(models.User)
	err := db.NewSelect().
		Model(user).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFoundf("user %s", id)
		}
		return nil, wrap("get user by ID", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *BunUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("email = ?", domain.NormalizeEmail(email)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFoundf("user with email %s", email)
		}
		return nil, wrap("get user by email", err)
	}
	return user, nil
}

// GetByIDs returns the users that exist among ids. Missing ids are skipped.
func (r *BunUserRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	ids = uuidsOnly(ids)
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.NewSelect().
		Model(&users).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, wrap("get users by IDs", err)
	}
	return users, nil
}

// ListByRole returns every user holding role, oldest first
func (r *BunUserRepository) ListByRole(ctx context.Context, role domain.Role) ([]models.User, error) {
	users := []models.User{}
	err := r.db.NewSelect().
		Model(&users).
		Where("role = ?", role).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list users by role", err)
	}
	return users, nil
}

// List retrieves all users
func (r *BunUserRepository) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := r.db.NewSelect().
		Model(&users).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list users", err)
	}
	return users, nil
}

// CompareAndSetPasswordHash swaps the stored hash if it has not changed since it was read.
func (r *BunUserRepository) CompareAndSetPasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	if !isUUID(id) {
		return domain.NotFoundf("user %s", id)
	}
	result, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", newHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("password_hash = ?", oldHash).
		Exec(ctx)
	if err != nil {
		return wrap("set password hash", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrap("get rows affected", err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("set password hash for user %s: %w", id, ErrVersionConflict)
	}
	return nil
}
