package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge/forge/internal/domain"
)

func TestWrite(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"expired", fmt.Errorf("%w: token is expired", domain.ErrSessionExpired), http.StatusUnauthorized, "SessionExpired", "session expired"},
		{"denied", fmt.Errorf("role Developer may not perform project:create: %w", domain.ErrAuthorizationDenied), http.StatusForbidden, "AuthorizationDenied", "authorization denied"},
		{"not found", domain.NotFoundf("project %s", "p1"), http.StatusNotFound, "NotFound", "project p1: not found"},
		{"duplicate", fmt.Errorf("register a@x.com: %w", domain.ErrDuplicateEmail), http.StatusConflict, "DuplicateEmail", "email already registered"},
		{"validation", domain.Validationf("name is required"), http.StatusBadRequest, "ValidationError", "validation failed: name is required"},
		{"wrong password", domain.ErrWrongCurrentPassword, http.StatusBadRequest, "WrongCurrentPassword", "current password is incorrect"},
		{"persistence", domain.Persistence("list projects", errors.New("dial tcp: refused")), http.StatusInternalServerError, "PersistenceError", "storage is unavailable, try again later"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "Internal", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Write(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body Body
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}

func TestStatus_UnknownKind(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Status("Nope"))
}
