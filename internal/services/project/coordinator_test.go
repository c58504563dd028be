package project

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/db/dbtest"
	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/domain"
	"github.com/pixelforge/forge/internal/events"
	"github.com/pixelforge/forge/internal/repository"
)

// MockAssignmentRepository is a mock implementation of repository.AssignmentRepository
type MockAssignmentRepository struct {
	mock.Mock
}

func (m *MockAssignmentRepository) Assign(ctx context.Context, projectID, userID string) (bool, error) {
	args := m.Called(ctx, projectID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssignmentRepository) Unassign(ctx context.Context, projectID, userID string) (bool, error) {
	args := m.Called(ctx, projectID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssignmentRepository) Reconcile(ctx context.Context, dryRun bool) (*repository.ReconcileReport, error) {
	args := m.Called(ctx, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ReconcileReport), args.Error(1)
}

var (
	lead  = auth.Claims{Subject: "lead-1", Role: domain.RoleProjectLead}
	admin = auth.Claims{Subject: "admin-1", Role: domain.RoleAdmin}
)

type env struct {
	users       *repository.BunUserRepository
	projects    *repository.BunProjectRepository
	assignments *repository.BunAssignmentRepository
	documents   *repository.BunDocumentRepository
	recorder    *events.Recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.NewSQLite(t)
	return &env{
		users:       repository.NewBunUserRepository(db),
		projects:    repository.NewBunProjectRepository(db),
		assignments: repository.NewBunAssignmentRepository(db),
		documents:   repository.NewBunDocumentRepository(db),
		recorder:    &events.Recorder{},
	}
}

func (e *env) coordinator() *Coordinator {
	return NewCoordinator(e.assignments, e.projects, e.users).WithEvents(e.recorder)
}

func (e *env) user(t *testing.T, name string, role domain.Role) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", PasswordHash: "$2a$04$x", Role: role}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *env) project(t *testing.T, name string) *models.Project {
	t.Helper()
	p := &models.Project{Name: name}
	require.NoError(t, e.projects.Create(context.Background(), p))
	return p
}

func TestCoordinator_AssignScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.coordinator()

	alpha := e.project(t, "Alpha")
	dev := e.user(t, "d", domain.RoleDeveloper)

	changed, err := c.Assign(ctx, lead, alpha.ID, dev.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Assign(ctx, lead, alpha.ID, dev.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	p, err := e.projects.GetByID(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{dev.ID}, p.AssignedUsers)

	assigned, err := c.ListAssignedProjects(ctx, dev.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "Alpha", assigned[0].Name)

	assert.Equal(t, []events.Type{events.DeveloperAssigned}, e.recorder.Types())
	assert.Equal(t, lead.Subject, e.recorder.Events()[0].ActorID)
}

func TestCoordinator_AssignRejectsNonDevelopers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.coordinator()

	p := e.project(t, "Alpha")
	other := e.user(t, "lead", domain.RoleProjectLead)

	_, err := c.Assign(ctx, lead, p.ID, other.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = c.Assign(ctx, lead, p.ID, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	dev := e.user(t, "dev", domain.RoleDeveloper)
	_, err = c.Assign(ctx, lead, "00000000-0000-0000-0000-000000000000", dev.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.Assign(ctx, lead, "", dev.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Empty(t, e.recorder.Types())
}

func TestCoordinator_Unassign(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.coordinator()

	p := e.project(t, "Alpha")
	dev := e.user(t, "dev", domain.RoleDeveloper)
	_, err := c.Assign(ctx, lead, p.ID, dev.ID)
	require.NoError(t, err)

	changed, err := c.Unassign(ctx, lead, p.ID, dev.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Unassign(ctx, lead, p.ID, dev.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	u, err := e.users.GetByID(ctx, dev.ID)
	require.NoError(t, err)
	assert.Empty(t, u.AssignedProjects)

	assert.Equal(t, []events.Type{events.DeveloperAssigned, events.DeveloperUnassigned}, e.recorder.Types())
}

func TestCoordinator_ListAssignedSkipsDeletedProjects(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.coordinator()
	svc := NewService(e.projects, e.users)

	alpha := e.project(t, "Alpha")
	beta := e.project(t, "Beta")
	dev := e.user(t, "dev", domain.RoleDeveloper)
	for _, p := range []*models.Project{alpha, beta} {
		_, err := c.Assign(ctx, lead, p.ID, dev.ID)
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteProject(ctx, admin, alpha.ID))

	assigned, err := c.ListAssignedProjects(ctx, dev.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, beta.ID, assigned[0].ID)
}

func TestCoordinator_RetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	dev := e.user(t, "dev", domain.RoleDeveloper)

	repo := new(MockAssignmentRepository)
	repo.On("Assign", mock.Anything, "p1", dev.ID).Return(false, repository.ErrVersionConflict).Twice()
	repo.On("Assign", mock.Anything, "p1", dev.ID).Return(true, nil).Once()

	c := NewCoordinator(repo, e.projects, e.users).
		WithRetryPolicy(RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond})

	changed, err := c.Assign(ctx, lead, "p1", dev.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	repo.AssertNumberOfCalls(t, "Assign", 3)
}

func TestCoordinator_RetryExhaustionIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	dev := e.user(t, "dev", domain.RoleDeveloper)

	repo := new(MockAssignmentRepository)
	repo.On("Assign", mock.Anything, "p1", dev.ID).Return(false, repository.ErrVersionConflict)

	c := NewCoordinator(repo, e.projects, e.users).
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})

	_, err := c.Assign(ctx, lead, "p1", dev.ID)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	repo.AssertNumberOfCalls(t, "Assign", 3)
}

func TestCoordinator_RetryStopsOnCancel(t *testing.T) {
	e := newEnv(t)
	dev := e.user(t, "dev", domain.RoleDeveloper)

	ctx, cancel := context.WithCancel(context.Background())
	repo := new(MockAssignmentRepository)
	repo.On("Assign", mock.Anything, "p1", dev.ID).
		Run(func(mock.Arguments) { cancel() }).
		Return(false, repository.ErrVersionConflict)

	c := NewCoordinator(repo, e.projects, e.users).
		WithRetryPolicy(RetryPolicy{MaxAttempts: 5, Backoff: time.Hour})

	_, err := c.Assign(ctx, lead, "p1", dev.ID)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, context.Canceled)
	repo.AssertNumberOfCalls(t, "Assign", 1)
}

func TestCoordinator_NonConflictErrorsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	dev := e.user(t, "dev", domain.RoleDeveloper)

	boom := domain.Persistence("assign developer", errors.New("disk full"))
	repo := new(MockAssignmentRepository)
	repo.On("Unassign", mock.Anything, "p1", dev.ID).Return(false, boom)

	_, err := NewCoordinator(repo, e.projects, e.users).Unassign(ctx, lead, "p1", dev.ID)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	repo.AssertNumberOfCalls(t, "Unassign", 1)
}

func TestCoordinator_ConcurrentAssignmentsKeepSymmetry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.coordinator().WithRetryPolicy(RetryPolicy{MaxAttempts: 20, Backoff: time.Millisecond})

	p := e.project(t, "Shared")
	var devs []*models.User
	for i := 0; i < 6; i++ {
		devs = append(devs, e.user(t, fmt.Sprintf("dev%d", i), domain.RoleDeveloper))
	}

	errs := make(chan error, len(devs))
	for _, d := range devs {
		go func(id string) {
			_, err := c.Assign(ctx, lead, p.ID, id)
			errs <- err
		}(d.ID)
	}
	for range devs {
		require.NoError(t, <-errs)
	}

	got, err := e.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.AssignedUsers, len(devs))
	for _, d := range devs {
		u, err := e.users.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, u.AssignedProjects.Contains(p.ID))
		assert.True(t, got.AssignedUsers.Contains(d.ID))
	}
}

func TestCoordinator_Reconcile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	report := &repository.ReconcileReport{
		UsersScanned: 2, ProjectsScanned: 1, DryRun: true,
		Repairs: []repository.Repair{{UserID: "u1", ProjectID: "p1", Action: repository.RepairLinkProject}},
	}
	repo := new(MockAssignmentRepository)
	repo.On("Reconcile", mock.Anything, true).Return(report, nil).Once()

	got, err := NewCoordinator(repo, e.projects, e.users).Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Same(t, report, got)
	repo.AssertExpectations(t)
}
