package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pixelforge/forge/internal/apierror"
	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/domain"
	"github.com/pixelforge/forge/internal/logging"
)

// Authenticate requires a valid "Authorization: Bearer <token>" header and
// stores the verified claims in the request context. Requests without one are
// rejected with 401 before reaching the handler.
func Authenticate(authn Authenticator, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	log = logging.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				apierror.Write(w, err)
				return
			}

			claims, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				log.Debugw("session rejected", "path", r.URL.Path, "kind", domain.Kind(err))
				apierror.Write(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", fmt.Errorf("missing bearer token: %w", domain.ErrSessionMalformed)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("authorization header is not a bearer token: %w", domain.ErrSessionMalformed)
	}
	return strings.TrimSpace(token), nil
}
