package iam

import (
	"context"
	"time"

	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/db/models"
)

// Service is the facade for account and session operations.
type Service interface {
	// Register creates an account. Name, email and password are required; an
	// empty role defaults to Developer. Emails are unique case-insensitively.
	Register(ctx context.Context, in RegisterInput) (*models.User, error)

	// Login exchanges credentials for a session token. Unknown emails and wrong
	// passwords fail identically with domain.ErrInvalidCredentials.
	Login(ctx context.Context, email, password string) (*LoginResult, error)

	// ChangePassword replaces the caller's password after checking the current one.
	ChangePassword(ctx context.Context, claims auth.Claims, current, next string) error

	// GetUser returns an account by ID.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// ListDevelopers returns every account holding the Developer role.
	ListDevelopers(ctx context.Context) ([]models.User, error)

	// Authenticate verifies a bearer token and returns its claims.
	Authenticate(ctx context.Context, token string) (auth.Claims, error)

	// Authorize checks claims against the role set declared for op.
	Authorize(ctx context.Context, claims auth.Claims, op auth.Operation) error
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// LoginResult is a freshly issued session.
type LoginResult struct {
	Token     string
	User      *models.User
	Claims    auth.Claims
	ExpiresAt time.Time
}
