// Package domain holds the vocabulary shared by every layer: roles, project
// states and the error taxonomy surfaced to callers.
package domain

import "fmt"

// Role is a user's fixed authority level.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleProjectLead Role = "ProjectLead"
	RoleDeveloper   Role = "Developer"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleProjectLead, RoleDeveloper}

// ParseRole validates s as a role name. The empty string yields the default role.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleDeveloper, nil
	}
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", Validationf("unknown role %q", s)
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// ProjectStatus is the lifecycle state of a project. Active moves to Completed; there is no way back.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "Active"
	ProjectCompleted ProjectStatus = "Completed"
)

// ParseProjectStatus validates s. The empty string yields Active.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch ProjectStatus(s) {
	case "":
		return ProjectActive, nil
	case ProjectActive, ProjectCompleted:
		return ProjectStatus(s), nil
	default:
		return "", fmt.Errorf("%w: unknown project status %q", ErrValidation, s)
	}
}
