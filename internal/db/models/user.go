package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/pixelforge/forge/internal/domain"
)

// User is an account that can log in. Email is stored lower-cased so the unique
// constraint compares case-insensitively. AssignedProjects mirrors
// Project.AssignedUsers; Version guards every write to it.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               string      `bun:"id,pk,type:uuid"`
	Name             string      `bun:"name,notnull"`
	Email            string      `bun:"email,notnull,unique"`
	PasswordHash     string      `bun:"password_hash,notnull"`
	Role             domain.Role `bun:"role,notnull"`
	AssignedProjects IDSet       `bun:"assigned_projects,type:jsonb,notnull"`
	Version          int64       `bun:"version,notnull"`
	CreatedAt        time.Time   `bun:"created_at,notnull"`
	UpdatedAt        time.Time   `bun:"updated_at,notnull"`
}
