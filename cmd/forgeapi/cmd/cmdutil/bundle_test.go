package cmdutil

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/config"
	"github.com/pixelforge/forge/internal/domain"
	"github.com/pixelforge/forge/internal/events"
	"github.com/pixelforge/forge/internal/migrations"
	"github.com/pixelforge/forge/internal/services/iam"
	"github.com/pixelforge/forge/internal/services/project"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DatabaseURL:      "file:" + filepath.Join(t.TempDir(), "forge.db"),
		MaxDBConnections: 1,
		Session: config.SessionConfig{
			Secret: strings.Repeat("s", config.MinSessionSecretLength),
			TTL:    time.Hour,
			Issuer: "forge-test",
		},
		Password: config.PasswordConfig{Cost: 4, MaxConcurrent: 2},
		Projects: config.ProjectsConfig{RetryAttempts: 3, RetryBackoff: time.Millisecond, FilterCacheSize: 8},
	}
}

func TestNewBundle_WiresServices(t *testing.T) {
	ctx := context.Background()

	b, err := NewBundle(testConfig(t), zap.NewNop().Sugar(), nil)
	require.NoError(t, err)
	t.Cleanup(b.Close)

	assert.IsType(t, events.NopPublisher{}, b.Publisher)

	_, err = migrations.Apply(ctx, b.DB)
	require.NoError(t, err)

	lead, err := b.IAM.Register(ctx, iam.RegisterInput{
		Name: "Lead", Email: "lead@example.com", Password: "pw-lead", Role: string(domain.RoleProjectLead),
	})
	require.NoError(t, err)
	dev, err := b.IAM.Register(ctx, iam.RegisterInput{
		Name: "Dev", Email: "dev@example.com", Password: "pw-dev",
	})
	require.NoError(t, err)

	actor := auth.Claims{Subject: lead.ID, Role: lead.Role}
	p, err := b.ProjectSvc.CreateProject(ctx, actor, project.CreateProjectInput{Name: "Atlas"})
	require.NoError(t, err)

	changed, err := b.Coordinator.Assign(ctx, actor, p.ID, dev.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	report, err := b.Coordinator.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, report.Repairs)
}

func TestNewBundle_BadNATSURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.NATSURL = "nats://127.0.0.1:1"

	_, err := NewBundle(cfg, zap.NewNop().Sugar(), nil)
	require.Error(t, err)
}
