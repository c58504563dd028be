package auth

import "github.com/pixelforge/forge/internal/domain"

// Operation names a protected action. Operations are the objects of policy
// checks; every route that requires a session declares one.
type Operation string

// Account operations
const (
	// OpRegister creates a new account
	OpRegister Operation = "user:register"

	// OpChangePassword changes the caller's own password
	OpChangePassword Operation = "auth:change-password"

	// OpWhoAmI returns the caller's session claims
	OpWhoAmI Operation = "auth:whoami"

	// OpListDevelopers lists accounts holding the Developer role
	OpListDevelopers Operation = "user:list-developers"
)

// Project operations
const (
	OpCreateProject       Operation = "project:create"
	OpListProjects        Operation = "project:list"
	OpCompleteProject     Operation = "project:complete"
	OpDeleteProject       Operation = "project:delete"
	OpAssignDeveloper     Operation = "project:assign"
	OpUnassignDeveloper   Operation = "project:unassign"
	OpListAssignedProject Operation = "project:list-assigned"
)

// Document operations
const (
	OpUploadDocument   Operation = "document:upload"
	OpListDocuments    Operation = "document:list"
	OpDownloadDocument Operation = "document:read"
)

// OperationRoles declares, per operation, the roles allowed to perform it.
// An empty set means any authenticated session may perform it. Operations
// missing from this table are denied.
var OperationRoles = map[Operation][]domain.Role{
	OpRegister:       {domain.RoleAdmin},
	OpChangePassword: nil,
	OpWhoAmI:         nil,
	OpListDevelopers: {domain.RoleProjectLead},

	OpCreateProject:       {domain.RoleAdmin},
	OpListProjects:        nil,
	OpCompleteProject:     {domain.RoleAdmin},
	OpDeleteProject:       {domain.RoleAdmin},
	OpAssignDeveloper:     {domain.RoleProjectLead},
	OpUnassignDeveloper:   {domain.RoleProjectLead},
	OpListAssignedProject: {domain.RoleDeveloper},

	OpUploadDocument:   {domain.RoleAdmin, domain.RoleProjectLead},
	OpListDocuments:    nil,
	OpDownloadDocument: nil,
}
