package project

import (
	"context"
	"strings"

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

// Coordinator keeps Project.AssignedUsers and User.AssignedProjects in step.
//
// Every mutation goes through repository.AssignmentRepository, which writes
// both sides in one transaction guarded by row versions. A write that loses a
// version check is rolled back whole and replayed under the RetryPolicy, so a
// caller either sees the link on both sides or on neither.
type Coordinator struct {
	assignments repository.AssignmentRepository
	projects    repository.ProjectRepository
	users       repository.UserRepository
	events      events.Publisher
	retry       RetryPolicy
	log         *zap.SugaredLogger
}

// NewCoordinator constructs a Coordinator with DefaultRetryPolicy and no-op events.
func NewCoordinator(assignments repository.AssignmentRepository, projects repository.ProjectRepository, users repository.UserRepository) *Coordinator {
	return &Coordinator{
		assignments: assignments,
		projects:    projects,
		users:       users,
		events:      events.NopPublisher{},
		retry:       DefaultRetryPolicy,
		log:         logging.OrNop(nil),
	}
}

// WithEvents sets the publisher notified after each committed change.
func (c *Coordinator) WithEvents(p events.Publisher) *Coordinator {
	c.events = p
	return c
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func (c *Coordinator) WithRetryPolicy(p RetryPolicy) *Coordinator {
	c.retry = p
	return c
}

// WithLogger sets the logger.
func (c *Coordinator) WithLogger(log *zap.SugaredLogger) *Coordinator {
	c.log = logging.OrNop(log)
	return c
}

// Assign links developerID to projectID on both sides. The user must hold the
// Developer role. Assigning an existing pair changes nothing and succeeds.
func (c *Coordinator) Assign(ctx context.Context, actor auth.Claims, projectID, developerID string) (bool, error) {
	projectID, developerID = strings.TrimSpace(projectID), strings.TrimSpace(developerID)
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerProjects, "project.Assign",
		attribute.String(telemetry.AttrProjectID, projectID),
		attribute.String(telemetry.AttrUserID, developerID),
	)
	defer span.End()

	if projectID == "" || developerID == "" {
		return false, domain.Validationf("projectId and developerId are required")
	}

	developer, err := c.users.GetByID(ctx, developerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	if developer.Role != domain.RoleDeveloper {
		return false, domain.Validationf("user %s has role %s; only Developers can be assigned", developerID, developer.Role)
	}

	var changed bool
	err = c.retry.run(ctx, span, "assign developer", func(ctx context.Context) error {
		var err error
		changed, err = c.assignments.Assign(ctx, projectID, developerID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		c.log.Errorw("assign developer failed", "project_id", projectID, "user_id", developerID, "error", err)
		return false, err
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrChanged, changed))

	if changed {
		c.log.Infow("developer assigned", "project_id", projectID, "user_id", developerID, "actor", actor.Subject)
		publish(ctx, c.events, c.log, events.Event{
			Type: events.DeveloperAssigned, ProjectID: projectID, UserID: developerID, ActorID: actor.Subject,
		})
	}
	return changed, nil
}

// Unassign removes the link from both sides. Removing an absent link succeeds.
func (c *Coordinator) Unassign(ctx context.Context, actor auth.Claims, projectID, developerID string) (bool, error) {
	projectID, developerID = strings.TrimSpace(projectID), strings.TrimSpace(developerID)
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerProjects, "project.Unassign",
		attribute.String(telemetry.AttrProjectID, projectID),
		attribute.String(telemetry.AttrUserID, developerID),
	)
	defer span.End()

	if projectID == "" || developerID == "" {
		return false, domain.Validationf("projectId and developerId are required")
	}

	var changed bool
	err := c.retry.run(ctx, span, "unassign developer", func(ctx context.Context) error {
		var err error
		changed, err = c.assignments.Unassign(ctx, projectID, developerID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		c.log.Errorw("unassign developer failed", "project_id", projectID, "user_id", developerID, "error", err)
		return false, err
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrChanged, changed))

	if changed {
		c.log.Infow("developer unassigned", "project_id", projectID, "user_id", developerID, "actor", actor.Subject)
		publish(ctx, c.events, c.log, events.Event{
			Type: events.DeveloperUnassigned, ProjectID: projectID, UserID: developerID, ActorID: actor.Subject,
		})
	}
	return changed, nil
}

// ListAssignedProjects returns the projects userID is assigned to, in
// assignment order. References to deleted projects are skipped.
func (c *Coordinator) ListAssignedProjects(ctx context.Context, userID string) ([]models.Project, error) {
	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	found, err := c.projects.GetByIDs(ctx, user.AssignedProjects)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Project, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	projects := make([]models.Project, 0, len(found))
	for _, id := range user.AssignedProjects {
		if p, ok := byID[id]; ok {
			projects = append(projects, p)
		}
	}
	if dangling := len(user.AssignedProjects) - len(projects); dangling > 0 {
		c.log.Warnw("user references missing projects", "user_id", userID, "dangling", dangling)
	}
	return projects, nil
}

// Reconcile repairs asymmetric references left by older writers. With dryRun
// nothing is written and the report lists what would change.
func (c *Coordinator) Reconcile(ctx context.Context, dryRun bool) (*repository.ReconcileReport, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerProjects, "project.Reconcile",
		attribute.Bool("reconcile.dry_run", dryRun),
	)
	defer span.End()

	var report *repository.ReconcileReport
	err := c.retry.run(ctx, span, "reconcile assignments", func(ctx context.Context) error {
		var err error
		report, err = c.assignments.Reconcile(ctx, dryRun)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	for _, r := range report.Repairs {
		c.log.Infow("assignment repair", "action", r.Action, "user_id", r.UserID, "project_id", r.ProjectID, "dry_run", dryRun)
	}
	c.log.Infow("reconcile finished",
		"users", report.UsersScanned,
		"projects", report.ProjectsScanned,
		"repairs", len(report.Repairs),
		"dry_run", dryRun,
	)
	return report, nil
}
