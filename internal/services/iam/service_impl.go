package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/domain"
	"github.com/pixelforge/forge/internal/logging"
	"github.com/pixelforge/forge/internal/repository"
	"github.com/pixelforge/forge/internal/telemetry"
)

// iamService implements the Service interface.
type iamService struct {
	users    repository.UserRepository
	hasher   *auth.Hasher
	sessions *auth.SessionManager
	policy   *auth.PolicyEngine
	metrics  *telemetry.SecurityMetrics
	log      *zap.SugaredLogger
}

// IAMServiceDependencies contains all dependencies for IAM service construction.
// Metrics and Logger are optional.
type IAMServiceDependencies struct {
	Users    repository.UserRepository
	Hasher   *auth.Hasher
	Sessions *auth.SessionManager
	Policy   *auth.PolicyEngine
	Metrics  *telemetry.SecurityMetrics
	Logger   *zap.SugaredLogger
}

// NewIAMService creates a new IAM service. It fails when a required dependency is missing.
func NewIAMService(deps IAMServiceDependencies) (Service, error) {
	switch {
	case deps.Users == nil:
		return nil, fmt.Errorf("iam: user repository is required")
	case deps.Hasher == nil:
		return nil, fmt.Errorf("iam: password hasher is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("iam: session manager is required")
	case deps.Policy == nil:
		return nil, fmt.Errorf("iam: policy engine is required")
	}

	return &iamService{
		users:    deps.Users,
		hasher:   deps.Hasher,
		sessions: deps.Sessions,
		policy:   deps.Policy,
		metrics:  deps.Metrics,
		log:      logging.OrNop(deps.Logger),
	}, nil
}

func (s *iamService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Register")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Validationf("name is required")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, domain.Validationf("email is required")
	}
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	email = domain.NormalizeEmail(email)
	if in.Password == "" {
		return nil, domain.Validationf("password is required")
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("register %s: %w", email, domain.ErrDuplicateEmail)
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: digest,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrUserID, user.ID),
		attribute.String(telemetry.AttrUserRole, string(role)),
	)
	s.log.Infow("user registered", "user_id", user.ID, "role", role)
	return user, nil
}

func (s *iamService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Login")
	defer span.End()

	result, err := s.login(ctx, domain.NormalizeEmail(email), password)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordLogin(ctx, domain.Kind(err))
		return nil, err
	}

	span.SetAttributes(attribute.String(telemetry.AttrUserID, result.User.ID))
	s.metrics.RecordLogin(ctx, "success")
	return result, nil
}

func (s *iamService) login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, domain.Validationf("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.hasher.Burn(ctx, password)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Debugw("login rejected", "user_id", user.ID)
		return nil, domain.ErrInvalidCredentials
	}

	token, claims, err := s.sessions.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user, Claims: claims, ExpiresAt: claims.ExpiresAt}, nil
}

func (s *iamService) ChangePassword(ctx context.Context, claims auth.Claims, current, next string) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.ChangePassword",
		attribute.String(telemetry.AttrUserID, claims.Subject),
	)
	defer span.End()

	if current == "" || next == "" {
		return domain.Validationf("current and new password are required")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	ok, err := s.hasher.Verify(ctx, current, user.PasswordHash)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if !ok {
		return domain.ErrWrongCurrentPassword
	}

	digest, err := s.hasher.Hash(ctx, next)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	err = s.users.CompareAndSetPasswordHash(ctx, user.ID, user.PasswordHash, digest)
	if errors.Is(err, repository.ErrVersionConflict) {
		// Another change landed first; the password we checked is no longer current.
		return fmt.Errorf("password changed concurrently: %w", domain.ErrWrongCurrentPassword)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.log.Infow("password changed", "user_id", user.ID)
	return nil
}

func (s *iamService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *iamService) ListDevelopers(ctx context.Context) ([]models.User, error) {
	return s.users.ListByRole(ctx, domain.RoleDeveloper)
}

func (s *iamService) Authenticate(ctx context.Context, token string) (auth.Claims, error) {
	claims, err := s.sessions.Verify(token)
	if err != nil {
		s.metrics.RecordSessionReject(ctx, domain.Kind(err))
		return auth.Claims{}, err
	}
	return claims, nil
}

func (s *iamService) Authorize(ctx context.Context, claims auth.Claims, op auth.Operation) error {
	if err := s.policy.Authorize(claims, op); err != nil {
		s.metrics.RecordDenial(ctx, string(op), string(claims.Role))
		s.log.Debugw("authorization denied", "user_id", claims.Subject, "role", claims.Role, "operation", op)
		return err
	}
	return nil
}
