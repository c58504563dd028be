// Package middleware holds the chi middlewares that authenticate, authorize,
// log and measure API requests.
package middleware

import (
	"context"

	"github.com/pixelforge/forge/internal/auth"
)

// Authenticator verifies a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Claims, error)
}

// Authorizer decides whether claims may perform an operation.
type Authorizer interface {
	Authorize(ctx context.Context, claims auth.Claims, op auth.Operation) error
}
