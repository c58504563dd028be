// Package cmdutil wires the services shared by the server and the maintenance
// subcommands.
package cmdutil

import (
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/config"
	"github.com/pixelforge/forge/internal/db/bunx"
	"github.com/pixelforge/forge/internal/events"
	"github.com/pixelforge/forge/internal/logging"
	"github.com/pixelforge/forge/internal/repository"
	"github.com/pixelforge/forge/internal/services/iam"
	"github.com/pixelforge/forge/internal/services/project"
	"github.com/pixelforge/forge/internal/telemetry"
)

// Bundle holds a database connection and the services built on top of it.
type Bundle struct {
	DB          *bun.DB
	Users       *repository.BunUserRepository
	Projects    *repository.BunProjectRepository
	Assignments *repository.BunAssignmentRepository
	Documents   *repository.BunDocumentRepository

	IAM         iam.Service
	ProjectSvc  *project.Service
	Coordinator *project.Coordinator
	Publisher   events.Publisher
	Log         *zap.SugaredLogger
}

// Close drains the event publisher and releases the database connection.
func (b *Bundle) Close() {
	if b == nil {
		return
	}
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			b.Log.Warnw("failed to close event publisher", "error", err)
		}
	}
	if b.DB != nil {
		_ = bunx.Close(b.DB)
	}
}

// NewBundle connects to the configured database and constructs the IAM and
// project services. Security metrics may be nil.
func NewBundle(cfg *config.Config, log *zap.SugaredLogger, metrics *telemetry.SecurityMetrics) (*Bundle, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxOpenConns(cfg.MaxDBConnections))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := &Bundle{
		DB:          db,
		Users:       repository.NewBunUserRepository(db),
		Projects:    repository.NewBunProjectRepository(db),
		Assignments: repository.NewBunAssignmentRepository(db),
		Documents:   repository.NewBunDocumentRepository(db),
		Publisher:   events.NopPublisher{},
		Log:         log,
	}

	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Publisher = pub
		log.Infow("publishing events to NATS", "url", cfg.Events.NATSURL, "prefix", cfg.Events.SubjectPrefix)
	}

	sessions, err := auth.NewSessionManager([]byte(cfg.Session.Secret), cfg.Session.TTL, cfg.Session.Issuer)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}
	policy, err := auth.NewPolicyEngine(auth.OperationRoles)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to initialize access policy: %w", err)
	}

	b.IAM, err = iam.NewIAMService(iam.IAMServiceDependencies{
		Users:    b.Users,
		Hasher:   auth.NewHasher(cfg.Password.Cost, cfg.Password.MaxConcurrent),
		Sessions: sessions,
		Policy:   policy,
		Metrics:  metrics,
		Logger:   log.Named("iam"),
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create IAM service: %w", err)
	}

	retry := project.RetryPolicy{MaxAttempts: cfg.Projects.RetryAttempts, Backoff: cfg.Projects.RetryBackoff}
	b.ProjectSvc = project.NewService(b.Projects, b.Users).
		WithEvents(b.Publisher).
		WithRetryPolicy(retry).
		WithFilterCacheSize(cfg.Projects.FilterCacheSize).
		WithLogger(log.Named("projects"))
	b.Coordinator = project.NewCoordinator(b.Assignments, b.Projects, b.Users).
		WithEvents(b.Publisher).
		WithRetryPolicy(retry).
		WithLogger(log.Named("assignments"))

	return b, nil
}

// LoadBundle loads configuration and a logger, then builds a Bundle.
func LoadBundle() (*Bundle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return NewBundle(cfg, log, nil)
}
