package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pixelforge/forge/internal/apierror"
	"github.com/pixelforge/forge/internal/auth"
	"github.com/pixelforge/forge/internal/domain"
	"github.com/pixelforge/forge/internal/validation"
)

const maxJSONBodyBytes = 1 << 20

// decodeJSON reads the body, checks it against schema and decodes it into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validation.RequestValidator, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		return domain.Validationf("request body is unreadable or larger than %d bytes", maxJSONBodyBytes)
	}
	if err := v.Validate(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

// claimsOrError returns the caller's claims. Routes behind Authenticate always have them.
func claimsOrError(r *http.Request) (auth.Claims, error) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return auth.Claims{}, fmt.Errorf("no session on request: %w", domain.ErrSessionMalformed)
	}
	return claims, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	apierror.WriteJSON(w, status, v)
}

// fail writes err to the client. Server-side failures are logged with the
// request id since their detail is not returned.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apierror.Status(domain.Kind(err)) >= http.StatusInternalServerError {
		a.log.Errorw("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
	}
	apierror.Write(w, err)
}
