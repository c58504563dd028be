// Package project manages projects and the two-sided developer assignments
// between projects and users.
package project

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/domain"
	"github.com/pixelforge/forge/internal/events"
	"github.com/pixelforge/forge/internal/logging"
	"github.com/pixelforge/forge/internal/repository"
	"github.com/pixelforge/forge/internal/telemetry"
)

// Assignee is the slice of a user shown on a project listing.
type Assignee struct {
	ID   string
	Name string
}

// ProjectView is a project with its assigned users resolved to names.
// References to users that no longer exist are left out.
type ProjectView struct {
	Project   *models.Project
	Assignees []Assignee
}

// BlobRemover deletes stored document contents once their rows are gone.
type BlobRemover interface {
	RemoveBlobs(ctx context.Context, docs []models.Document)
}

// Service handles project lifecycle operations.
type Service struct {
	projects repository.ProjectRepository
	users    repository.UserRepository
	events   events.Publisher
	blobs    BlobRemover
	retry    RetryPolicy
	filters  *filterCache
	log      *zap.SugaredLogger
}

// NewService constructs a project service. Events default to a no-op publisher.
func NewService(projects repository.ProjectRepository, users repository.UserRepository) *Service {
	return &Service{
		projects: projects,
		users:    users,
		events:   events.NopPublisher{},
		retry:    DefaultRetryPolicy,
		filters:  newFilterCache(DefaultFilterCacheSize),
		log:      logging.OrNop(nil),
	}
}

// WithEvents sets the publisher notified after each committed change.
func (s *Service) WithEvents(p events.Publisher) *Service {
	s.events = p
	return s
}

// WithBlobRemover sets the collaborator that deletes document blobs when a project is deleted.
func (s *Service) WithBlobRemover(b BlobRemover) *Service {
	s.blobs = b
	return s
}

// WithRetryPolicy overrides DefaultRetryPolicy for conflicting writes.
func (s *Service) WithRetryPolicy(p RetryPolicy) *Service {
	s.retry = p
	return s
}

// WithFilterCacheSize bounds how many compiled list filters are kept.
func (s *Service) WithFilterCacheSize(n int) *Service {
	s.filters = newFilterCache(n)
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(log *zap.SugaredLogger) *Service {
	s.log = logging.OrNop(log)
	return s
}

// CreateProject validates in and stores a new project.
func (s *Service) CreateProject(ctx context.Context, actor auth.Claims, in CreateProjectInput) (*models.Project, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerProjects, "project.Create",
		attribute.String(telemetry.AttrUserID, actor.Subject),
	)
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Validationf("project name is required")
	}
	deadline, err := parseDeadline(in.Deadline)
	if err != nil {
		return nil, err
	}
	status, err := domain.ParseProjectStatus(strings.TrimSpace(in.Status))
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Deadline:    deadline,
		Status:      status,
		TechStack:   cleanTechStack(in.TechStack),
	}
	if err := s.projects.Create(ctx, project); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String(telemetry.AttrProjectID, project.ID))
	s.log.Infow("project created", "project_id", project.ID, "actor", actor.Subject)
	s.publish(ctx, events.Event{Type: events.ProjectCreated, ProjectID: project.ID, ActorID: actor.Subject})
	return project, nil
}

// GetProject returns a project by ID.
func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.projects.GetByID(ctx, id)
}

// ListProjects returns every project with assignee names, narrowed by an
// optional go-bexpr filter over name, status, techStack and assignedCount.
func (s *Service) ListProjects(ctx context.Context, filter string) ([]ProjectView, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerProjects, "project.List")
	defer span.End()

	projects, err := s.projects.List(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	views, err := s.Views(ctx, projects)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return s.filters.apply(filter, views)
}

// Views pairs each project with the names of its assignees. Ids whose account
// no longer exists are left out of Assignees.
func (s *Service) Views(ctx context.Context, projects []models.Project) ([]ProjectView, error) {
	seen := map[string]bool{}
	var ids []string
	for _, p := range projects {
		for _, id := range p.AssignedUsers {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	views := make([]ProjectView, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		view := ProjectView{Project: p, Assignees: []Assignee{}}
		for _, id := range p.AssignedUsers {
			if name, ok := names[id]; ok {
				view.Assignees = append(view.Assignees, Assignee{ID: id, Name: name})
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// MarkComplete moves a project to Completed. Completing a Completed project is a no-op.
func (s *Service) MarkComplete(ctx context.Context, actor auth.Claims, id string) (*models.Project, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerProjects, "project.MarkComplete",
		attribute.String(telemetry.AttrProjectID, id),
	)
	defer span.End()

	project, changed, err := s.projects.MarkCompleted(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrChanged, changed))

	if changed {
		s.log.Infow("project completed", "project_id", id, "actor", actor.Subject)
		s.publish(ctx, events.Event{Type: events.ProjectCompleted, ProjectID: id, ActorID: actor.Subject})
	}
	return project, nil
}

// DeleteProject removes a project, detaches it from every assigned user and
// deletes its documents. Blob removal happens after commit and never fails the call.
func (s *Service) DeleteProject(ctx context.Context, actor auth.Claims, id string) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerProjects, "project.Delete",
		attribute.String(telemetry.AttrProjectID, id),
	)
	defer span.End()

	var result *repository.DeleteResult
	err := s.retry.run(ctx, span, "delete project", func(ctx context.Context) error {
		var err error
		result, err = s.projects.Delete(ctx, id)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if s.blobs != nil && len(result.Documents) > 0 {
		s.blobs.RemoveBlobs(ctx, result.Documents)
	}

	s.log.Infow("project deleted",
		"project_id", id,
		"actor", actor.Subject,
		"detached_users", len(result.DetachedUsers),
		"documents", len(result.Documents),
	)
	s.publish(ctx, events.Event{Type: events.ProjectDeleted, ProjectID: id, ActorID: actor.Subject})
	return nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	publish(ctx, s.events, s.log, ev)
}

func publish(ctx context.Context, p events.Publisher, log *zap.SugaredLogger, ev events.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warnw("failed to publish event", "type", ev.Type, "project_id", ev.ProjectID, "error", err)
	}
}
