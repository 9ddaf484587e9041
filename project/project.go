// Package project is the client for the external project directory. The
// directory owns projects and their membership; the review engine only
// selects one as context for intake and pack assembly.
package project

// Role is a project membership role. Roles control who can approve rules
// and override decisions; enforcement lives in the directory service.
type Role string

// Membership roles known to the directory.
const (
	RoleArchitect       Role = "architect"
	RoleSeniorDeveloper Role = "senior_developer"
	RoleDeveloper       Role = "developer"
)

// IsValid returns true for a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleArchitect, RoleSeniorDeveloper, RoleDeveloper:
		return true
	default:
		return false
	}
}

// Member is a named participant with a role.
type Member struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Project groups rules, documents, and review sessions.
type Project struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     []Member `json:"members,omitempty"`
}
