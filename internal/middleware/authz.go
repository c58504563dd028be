package middleware

import (
	"fmt"
	"net/http"

	"github.com/pixelforge/forge/internal/apierror"
	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/domain"
)

// RequireOperation lets the request through only if the authenticated caller
// may perform op. It must run after Authenticate.
func RequireOperation(authz Authorizer, op auth.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				apierror.Write(w, fmt.Errorf("no session on request: %w", domain.ErrSessionMalformed))
				return
			}
			if err := authz.Authorize(r.Context(), claims, op); err != nil {
				apierror.Write(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
