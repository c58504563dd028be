// Package document stores files attached to projects. Metadata lives in the
// database; the bytes live in an afero filesystem under a content-derived key.
package document

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/db/bunx"
	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/domain"
	"github.com/pixelforge/forge/internal/events"
	"github.com/pixelforge/forge/internal/logging"
	"github.com/pixelforge/forge/internal/repository"
	"github.com/pixelforge/forge/internal/telemetry"
)

// DefaultMaxUploadBytes caps an upload when no limit is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// UploadInput is one file received for a project.
type UploadInput struct {
	ProjectID   string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Service uploads, lists and serves project documents.
type Service struct {
	docs     repository.DocumentRepository
	projects repository.ProjectRepository
	fs       afero.Fs
	maxBytes int64
	events   events.Publisher
	log      *zap.SugaredLogger
}

// NewService constructs a document service writing blobs to fs.
// A non-positive maxBytes selects DefaultMaxUploadBytes.
func NewService(docs repository.DocumentRepository, projects repository.ProjectRepository, fs afero.Fs, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Service{
		docs:     docs,
		projects: projects,
		fs:       fs,
		maxBytes: maxBytes,
		events:   events.NopPublisher{},
		log:      logging.OrNop(nil),
	}
}

// NewOsFs returns a filesystem rooted at dir, creating dir if needed.
func NewOsFs(dir string) (afero.Fs, error) {
	if err := afero.NewOsFs().MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create document dir %s: %w", dir, err)
	}
	return afero.NewBasePathFs(afero.NewOsFs(), dir), nil
}

// WithEvents sets the publisher notified after each upload.
func (s *Service) WithEvents(p events.Publisher) *Service {
	s.events = p
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(log *zap.SugaredLogger) *Service {
	s.log = logging.OrNop(log)
	return s
}

// MaxUploadBytes returns the configured upload limit.
func (s *Service) MaxUploadBytes() int64 { return s.maxBytes }

// Upload stores in.Body for an existing project and records its metadata.
func (s *Service) Upload(ctx context.Context, actor auth.Claims, in UploadInput) (*models.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerDocuments, "document.Upload",
		attribute.String(telemetry.AttrProjectID, in.ProjectID),
		attribute.String(telemetry.AttrUserID, actor.Subject),
	)
	defer span.End()

	name := path.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return nil, domain.Validationf("file name is required")
	}
	if in.Body == nil {
		return nil, domain.Validationf("file is required")
	}
	if _, err := s.projects.GetByID(ctx, in.ProjectID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	doc := &models.Document{
		ID:           bunx.NewUUIDv7(),
		ProjectID:    in.ProjectID,
		UploaderID:   actor.Subject,
		OriginalName: name,
		ContentType:  in.ContentType,
	}

	key, size, err := s.writeBlob(doc, in.Body)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	doc.StorageKey = key
	doc.SizeBytes = size

	if err := s.docs.Create(ctx, doc); err != nil {
		telemetry.RecordError(span, err)
		if rmErr := s.fs.Remove(key); rmErr != nil {
			s.log.Warnw("failed to remove orphaned blob", "key", key, "error", rmErr)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String(telemetry.AttrDocumentID, doc.ID))
	s.log.Infow("document uploaded", "document_id", doc.ID, "project_id", doc.ProjectID, "size_bytes", size)
	if err := s.events.Publish(ctx, events.Event{
		Type: events.DocumentUploaded, ProjectID: doc.ProjectID, DocumentID: doc.ID, ActorID: actor.Subject,
	}); err != nil {
		s.log.Warnw("failed to publish event", "type", events.DocumentUploaded, "project_id", doc.ProjectID, "error", err)
	}
	return doc, nil
}

// writeBlob streams body to a temporary file, then renames it to a key derived
// from the document ID and content hash. Bodies over the limit are rejected.
func (s *Service) writeBlob(doc *models.Document, body io.Reader) (string, int64, error) {
	if err := s.fs.MkdirAll(doc.ProjectID, 0o750); err != nil {
		return "", 0, domain.Persistence("create project blob dir", err)
	}

	tmp := path.Join(doc.ProjectID, ".upload-"+doc.ID)
	f, err := s.fs.Create(tmp)
	if err != nil {
		return "", 0, domain.Persistence("create blob", err)
	}

	hash := sha256.New()
	hash.Write([]byte(doc.ID))
	size, err := io.Copy(io.MultiWriter(f, hash), io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size > s.maxBytes {
		err = domain.Validationf("file exceeds the %d byte upload limit", s.maxBytes)
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		if errors.Is(err, domain.ErrValidation) {
			return "", 0, err
		}
		return "", 0, domain.Persistence("write blob", err)
	}

	key := path.Join(doc.ProjectID, base58.Encode(hash.Sum(nil))+safeExt(doc.OriginalName))
	if err := s.fs.Rename(tmp, key); err != nil {
		_ = s.fs.Remove(tmp)
		return "", 0, domain.Persistence("store blob", err)
	}
	return key, size, nil
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if extPattern.MatchString(ext) {
		return ext
	}
	return ""
}

// List returns a project's documents, newest first.
func (s *Service) List(ctx context.Context, projectID string) ([]models.Document, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.docs.ListByProject(ctx, projectID)
}

// Open returns a document's metadata and a reader over its bytes. The caller closes the file.
func (s *Service) Open(ctx context.Context, projectID, documentID string) (*models.Document, afero.File, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.ProjectID != projectID {
		return nil, nil, domain.NotFoundf("document %s in project %s", documentID, projectID)
	}

	f, err := s.fs.Open(doc.StorageKey)
	if err != nil {
		s.log.Errorw("document blob missing", "document_id", doc.ID, "key", doc.StorageKey, "error", err)
		return nil, nil, domain.Persistence("open blob", err)
	}
	return doc, f, nil
}

// RemoveBlobs deletes the stored bytes of docs. Failures are logged and skipped.
func (s *Service) RemoveBlobs(ctx context.Context, docs []models.Document) {
	for _, d := range docs {
		if err := s.fs.Remove(d.StorageKey); err != nil {
			s.log.Warnw("failed to remove document blob", "document_id", d.ID, "key", d.StorageKey, "error", err)
		}
	}
}
