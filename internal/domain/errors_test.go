package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"wrapped not found", NotFoundf("project %s", "p1"), KindNotFound},
		{"validation", Validationf("name is required"), KindValidationError},
		{"double wrapped", fmt.Errorf("login: %w", ErrInvalidCredentials), KindInvalidCredentials},
		{"persistence keeps cause", Persistence("insert user", context.DeadlineExceeded), KindPersistenceError},
		{"unknown", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestPersistenceKeepsCause(t *testing.T) {
	err := Persistence("update project", context.Canceled)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("")
	assert.NoError(t, err)
	assert.Equal(t, RoleDeveloper, r)

	r, err = ParseRole("ProjectLead")
	assert.NoError(t, err)
	assert.Equal(t, RoleProjectLead, r)

	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseProjectStatus(t *testing.T) {
	s, err := ParseProjectStatus("")
	assert.NoError(t, err)
	assert.Equal(t, ProjectActive, s)

	_, err = ParseProjectStatus("Archived")
	assert.ErrorIs(t, err, ErrValidation)
}
