package models

// UserRole represents the staff roles recognised by the workflow.
type UserRole string

const (
	RoleManager     UserRole = "MANAGER"
	RoleSpecialist  UserRole = "SPECIALIST"
	RoleSocialAgent UserRole = "SOCIAL_AGENT"
)

// Actor identifies who performs a workflow action.
type Actor struct {
	ID   string
	Role UserRole
}

// IsManager reports whether the actor holds the manager role.
func (a Actor) IsManager() bool {
	return a.Role == RoleManager
}
