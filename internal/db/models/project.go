package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/pixelforge/forge/internal/domain"
)

// Project is a unit of work developers are assigned to.
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID            string               `bun:"id,pk,type:uuid"`
	Name          string               `bun:"name,notnull"`
	Description   string               `bun:"description"`
	Deadline      *time.Time           `bun:"deadline"`
	Status        domain.ProjectStatus `bun:"status,notnull"`
	TechStack     StringList           `bun:"tech_stack,type:jsonb,notnull"`
	AssignedUsers IDSet                `bun:"assigned_users,type:jsonb,notnull"`
	Version       int64                `bun:"version,notnull"`
	CreatedAt     time.Time            `bun:"created_at,notnull"`
	UpdatedAt     time.Time            `bun:"updated_at,notnull"`
}

// Document is metadata for a file attached to a project. The bytes live in blob
// storage under StorageKey.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID           string    `bun:"id,pk,type:uuid"`
	ProjectID    string    `bun:"project_id,notnull,type:uuid"`
	UploaderID   string    `bun:"uploader_id,notnull,type:uuid"`
	OriginalName string    `bun:"original_name,notnull"`
	StorageKey   string    `bun:"storage_key,notnull,unique"`
	ContentType  string    `bun:"content_type"`
	SizeBytes    int64     `bun:"size_bytes,notnull"`
	UploadedAt   time.Time `bun:"uploaded_at,notnull"`
}
