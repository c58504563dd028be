package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/pixelforge/forge/internal/db/dbtest"
	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/domain"
)

type repos struct {
	db          *bun.DB
	users       *BunUserRepository
	projects    *BunProjectRepository
	assignments *BunAssignmentRepository
	documents   *BunDocumentRepository
}

func setupRepos(t *testing.T) repos {
	t.Helper()
	db := dbtest.NewSQLite(t)
	return repos{
		db:          db,
		users:       NewBunUserRepository(db),
		projects:    NewBunProjectRepository(db),
		assignments: NewBunAssignmentRepository(db),
		documents:   NewBunDocumentRepository(db),
	}
}

func createUser(t *testing.T, r repos, email string, role domain.Role) *models.User {
	t.Helper()
	u := &models.User{Name: email, Email: email, PasswordHash: "$2a$04$hash", Role: role}
	require.NoError(t, r.users.Create(context.Background(), u))
	return u
}

func createProject(t *testing.T, r repos, name string) *models.Project {
	t.Helper()
	p := &models.Project{Name: name, TechStack: models.StringList{"Go"}}
	require.NoError(t, r.projects.Create(context.Background(), p))
	return p
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)

	t.Run("create normalises email and fills defaults", func(t *testing.T) {
		u := createUser(t, r, "  Dana@Example.COM ", domain.RoleDeveloper)
		assert.NotEmpty(t, u.ID)
		assert.Equal(t, "dana@example.com", u.Email)
		assert.Equal(t, int64(1), u.Version)

		got, err := r.users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, got.Email)
		assert.Equal(t, domain.RoleDeveloper, got.Role)
		assert.Empty(t, got.AssignedProjects)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		got, err := r.users.GetByEmail(ctx, "DANA@example.com")
		require.NoError(t, err)
		assert.Equal(t, "dana@example.com", got.Email)
	})

	t.Run("duplicate email in different case", func(t *testing.T) {
		err := r.users.Create(ctx, &models.User{Name: "x", Email: "dana@EXAMPLE.com", PasswordHash: "h", Role: domain.RoleAdmin})
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := r.users.GetByID(ctx, "0190e0f6-0000-7000-8000-000000000000")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = r.users.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list by role", func(t *testing.T) {
		createUser(t, r, "lead@example.com", domain.RoleProjectLead)
		createUser(t, r, "dev2@example.com", domain.RoleDeveloper)

		devs, err := r.users.ListByRole(ctx, domain.RoleDeveloper)
		require.NoError(t, err)
		require.Len(t, devs, 2)
		for _, d := range devs {
			assert.Equal(t, domain.RoleDeveloper, d.Role)
		}
	})

	t.Run("compare and set password hash", func(t *testing.T) {
		u := createUser(t, r, "cas@example.com", domain.RoleDeveloper)

		require.NoError(t, r.users.CompareAndSetPasswordHash(ctx, u.ID, u.PasswordHash, "new-hash"))
		got, err := r.users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.PasswordHash)

		err = r.users.CompareAndSetPasswordHash(ctx, u.ID, u.PasswordHash, "other-hash")
		assert.ErrorIs(t, err, ErrVersionConflict)

		got, err = r.users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.PasswordHash, "stale swap must not overwrite")
	})
}

func TestProjectRepository_MarkCompleted(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	p := createProject(t, r, "Apollo")
	assert.Equal(t, domain.ProjectActive, p.Status)

	got, changed, err := r.projects.MarkCompleted(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.ProjectCompleted, got.Status)

	got, changed, err = r.projects.MarkCompleted(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, changed, "completing twice is a no-op")
	assert.Equal(t, domain.ProjectCompleted, got.Status)

	_, _, err = r.projects.MarkCompleted(ctx, "0190e0f6-0000-7000-8000-000000000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProjectRepository_ListAndGetByIDs(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	a := createProject(t, r, "A")
	b := createProject(t, r, "B")

	all, err := r.projects.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := r.projects.GetByIDs(ctx, []string{a.ID, "0190e0f6-0000-7000-8000-000000000000"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, a.ID, some[0].ID)

	none, err := r.projects.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := r.projects.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"Go"}, got.TechStack)
}

func TestAssignmentRepository_AssignIsSymmetricAndIdempotent(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	dev := createUser(t, r, "dev@example.com", domain.RoleDeveloper)
	p := createProject(t, r, "Apollo")

	changed, err := r.assignments.Assign(ctx, p.ID, dev.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.assignments.Assign(ctx, p.ID, dev.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	gotP, err := r.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	gotU, err := r.users.GetByID(ctx, dev.ID)
	require.NoError(t, err)

	assert.Equal(t, models.IDSet{dev.ID}, gotP.AssignedUsers)
	assert.Equal(t, models.IDSet{p.ID}, gotU.AssignedProjects)
	assert.Equal(t, int64(2), gotP.Version)
	assert.Equal(t, int64(2), gotU.Version)
}

func TestAssignmentRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	dev := createUser(t, r, "dev@example.com", domain.RoleDeveloper)
	p := createProject(t, r, "Apollo")
	missing := "0190e0f6-0000-7000-8000-000000000000"

	_, err := r.assignments.Assign(ctx, missing, dev.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.assignments.Assign(ctx, p.ID, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	gotP, err := r.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, gotP.AssignedUsers, "a failed assign leaves no partial write")
}

func TestAssignmentRepository_AssignRepairsOneSidedLink(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	dev := createUser(t, r, "dev@example.com", domain.RoleDeveloper)
	p := createProject(t, r, "Apollo")

	_, err := r.db.NewUpdate().
		Model((*models.Project)(nil)).
		Set("assigned_users = ?", models.IDSet{dev.ID}).
		Where("id = ?", p.ID).
		Exec(ctx)
	require.NoError(t, err)

	changed, err := r.assignments.Assign(ctx, p.ID, dev.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	gotU, err := r.users.GetByID(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{p.ID}, gotU.AssignedProjects)

	gotP, err := r.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{dev.ID}, gotP.AssignedUsers, "no duplicate on the side that already had it")
}

func TestAssignmentRepository_Unassign(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	dev := createUser(t, r, "dev@example.com", domain.RoleDeveloper)
	p := createProject(t, r, "Apollo")

	_, err := r.assignments.Assign(ctx, p.ID, dev.ID)
	require.NoError(t, err)

	changed, err := r.assignments.Unassign(ctx, p.ID, dev.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.assignments.Unassign(ctx, p.ID, dev.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	gotP, _ := r.projects.GetByID(ctx, p.ID)
	gotU, _ := r.users.GetByID(ctx, dev.ID)
	assert.Empty(t, gotP.AssignedUsers)
	assert.Empty(t, gotU.AssignedProjects)
}

func TestAssignmentRepository_ConcurrentAssignmentsKeepEveryLink(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)

	const nDevs, nProjects = 6, 4
	var devs []*models.User
	for i := 0; i < nDevs; i++ {
		devs = append(devs, createUser(t, r, fmt.Sprintf("dev%d@example.com", i), domain.RoleDeveloper))
	}
	var projects []*models.Project
	for i := 0; i < nProjects; i++ {
		projects = append(projects, createProject(t, r, fmt.Sprintf("P%d", i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, nDevs*nProjects)
	for _, d := range devs {
		for _, p := range projects {
			wg.Add(1)
			go func(pid, uid string) {
				defer wg.Done()
				if _, err := r.assignments.Assign(ctx, pid, uid); err != nil {
					errs <- err
				}
			}(p.ID, d.ID)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, p := range projects {
		got, err := r.projects.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, got.AssignedUsers, nDevs)
	}
	for _, d := range devs {
		got, err := r.users.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Len(t, got.AssignedProjects, nProjects)
	}

	report, err := r.assignments.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, report.Repairs)
}

func TestAssignmentRepository_Reconcile(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	dev := createUser(t, r, "dev@example.com", domain.RoleDeveloper)
	other := createUser(t, r, "other@example.com", domain.RoleDeveloper)
	p := createProject(t, r, "Apollo")
	ghost := "0190e0f6-0000-7000-8000-00000000dead"

	// dev lists p but p does not list dev; p lists other but other does not list p;
	// dev also points at a project that no longer exists.
	_, err := r.db.NewUpdate().Model((*models.User)(nil)).
		Set("assigned_projects = ?", models.IDSet{p.ID, ghost}).
		Where("id = ?", dev.ID).Exec(ctx)
	require.NoError(t, err)
	_, err = r.db.NewUpdate().Model((*models.Project)(nil)).
		Set("assigned_users = ?", models.IDSet{other.ID}).
		Where("id = ?", p.ID).Exec(ctx)
	require.NoError(t, err)

	dry, err := r.assignments.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Len(t, dry.Repairs, 3)

	gotDev, _ := r.users.GetByID(ctx, dev.ID)
	assert.Equal(t, models.IDSet{p.ID, ghost}, gotDev.AssignedProjects, "dry run writes nothing")

	report, err := r.assignments.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.UsersScanned)
	assert.Equal(t, 1, report.ProjectsScanned)
	assert.ElementsMatch(t, []Repair{
		{UserID: dev.ID, ProjectID: p.ID, Action: RepairLinkProject},
		{UserID: dev.ID, ProjectID: ghost, Action: RepairDropProjectRef},
		{UserID: other.ID, ProjectID: p.ID, Action: RepairLinkUser},
	}, report.Repairs)

	gotDev, _ = r.users.GetByID(ctx, dev.ID)
	gotOther, _ := r.users.GetByID(ctx, other.ID)
	gotP, _ := r.projects.GetByID(ctx, p.ID)
	assert.Equal(t, models.IDSet{p.ID}, gotDev.AssignedProjects)
	assert.Equal(t, models.IDSet{p.ID}, gotOther.AssignedProjects)
	assert.ElementsMatch(t, []string{dev.ID, other.ID}, gotP.AssignedUsers)

	again, err := r.assignments.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, again.Repairs)
}

func TestProjectRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	admin := createUser(t, r, "admin@example.com", domain.RoleAdmin)
	dev := createUser(t, r, "dev@example.com", domain.RoleDeveloper)
	oneSided := createUser(t, r, "stale@example.com", domain.RoleDeveloper)
	p := createProject(t, r, "Apollo")
	keep := createProject(t, r, "Keep")

	_, err := r.assignments.Assign(ctx, p.ID, dev.ID)
	require.NoError(t, err)
	_, err = r.assignments.Assign(ctx, keep.ID, dev.ID)
	require.NoError(t, err)
	_, err = r.db.NewUpdate().Model((*models.User)(nil)).
		Set("assigned_projects = ?", models.IDSet{p.ID}).
		Where("id = ?", oneSided.ID).Exec(ctx)
	require.NoError(t, err)

	doc := &models.Document{ProjectID: p.ID, UploaderID: admin.ID, OriginalName: "brief.pdf", StorageKey: "k1", SizeBytes: 3}
	require.NoError(t, r.documents.Create(ctx, doc))

	result, err := r.projects.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, result.Project.ID)
	assert.ElementsMatch(t, []string{dev.ID, oneSided.ID}, result.DetachedUsers)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "k1", result.Documents[0].StorageKey)

	_, err = r.projects.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	gotDev, _ := r.users.GetByID(ctx, dev.ID)
	assert.Equal(t, models.IDSet{keep.ID}, gotDev.AssignedProjects)
	gotStale, _ := r.users.GetByID(ctx, oneSided.ID)
	assert.Empty(t, gotStale.AssignedProjects)

	docs, err := r.documents.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = r.projects.Delete(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentRepository(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	lead := createUser(t, r, "lead@example.com", domain.RoleProjectLead)
	p := createProject(t, r, "Apollo")

	doc := &models.Document{ProjectID: p.ID, UploaderID: lead.ID, OriginalName: "plan.txt", StorageKey: "abc", ContentType: "text/plain", SizeBytes: 12}
	require.NoError(t, r.documents.Create(ctx, doc))
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.UploadedAt.IsZero())

	got, err := r.documents.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "plan.txt", got.OriginalName)
	assert.Equal(t, lead.ID, got.UploaderID)

	list, err := r.documents.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = r.documents.GetByID(ctx, "0190e0f6-0000-7000-8000-000000000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	t.Run("missing project is not found", func(t *testing.T) {
		orphan := &models.Document{ProjectID: "0190e0f6-0000-7000-8000-000000000001", UploaderID: lead.ID, OriginalName: "x.txt", StorageKey: "k2", SizeBytes: 1}
		err := r.documents.Create(ctx, orphan)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NotErrorIs(t, err, domain.ErrPersistence)
		assert.Contains(t, err.Error(), "project")
	})

	t.Run("missing uploader is not found", func(t *testing.T) {
		orphan := &models.Document{ProjectID: p.ID, UploaderID: "0190e0f6-0000-7000-8000-000000000002", OriginalName: "x.txt", StorageKey: "k3", SizeBytes: 1}
		err := r.documents.Create(ctx, orphan)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), "user")
	})
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)

	_, err := r.users.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.projects.GetByID(ctx, "../etc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = r.projects.MarkCompleted(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.documents.GetByID(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	users, err := r.users.GetByIDs(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.Empty(t, users)
	docs, err := r.documents.ListByProject(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
