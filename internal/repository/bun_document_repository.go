package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/pixelforge/forge/internal/db/bunx"
	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/domain"
)

// BunDocumentRepository implements DocumentRepository using Bun ORM
type BunDocumentRepository struct {
	db *bun.DB
}

// NewBunDocumentRepository creates a new Bun-based document repository
func NewBunDocumentRepository(db *bun.DB) *BunDocumentRepository {
	return &BunDocumentRepository{db: db}
}

// Create inserts document metadata. The blob must already be stored under StorageKey.
func (r *BunDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = bunx.NewUUIDv7()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if _, err := r.db.NewInsert().Model(doc).Exec(ctx); err != nil {
		if isForeignKeyViolation(err) {
			return r.missingParent(ctx, doc)
		}
		return wrap("create document", err)
	}
	return nil
}

// missingParent names the row a rejected insert referenced. The project is the
// usual culprit: it can be deleted between the upload's existence check and here.
func (r *BunDocumentRepository) missingParent(ctx context.Context, doc *models.Document) error {
	exists, err := r.db.NewSelect().Model((*models.Project)(nil)).Where("id = ?", doc.ProjectID).Exists(ctx)
	if err != nil {
		return wrap("create document", err)
	}
	if !exists {
		return domain.NotFoundf("project %s", doc.ProjectID)
	}
	return domain.NotFoundf("user %s", doc.UploaderID)
}

// GetByID retrieves a document by its ID
func (r *BunDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if !isUUID(id) {
		return nil, domain.NotFoundf("document %s", id)
	}
	doc := new(models.Document)
	err := r.db.NewSelect().
		Model(doc).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFoundf("document %s", id)
		}
		return nil, wrap("get document by ID", err)
	}
	return doc, nil
}

// ListByProject returns a project's documents, newest first
func (r *BunDocumentRepository) ListByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	docs := []models.Document{}
	if !isUUID(projectID) {
		return docs, nil
	}
	err := r.db.NewSelect().
		Model(&docs).
		Where("project_id = ?", projectID).
		Order("uploaded_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list documents", err)
	}
	return docs, nil
}
