package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleSales   Role = "sales"
	RoleViewer  Role = "viewer"
)

// ErrUnknownRole is returned for any role outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// Roles lists every valid role, most privileged first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleSales, RoleViewer}
}

// ParseRole converts a stored or transmitted role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSales, RoleViewer:
		return true
	}
	return false
}

// Assignable reports whether users with this role can receive leads.
func (r Role) Assignable() bool {
	return r == RoleSales || r == RoleManager
}

func (r Role) String() string {
	return string(r)
}

// Resource names a protected area of the API.
type Resource string

const (
	ResourceUsers           Resource = "users"
	ResourceLeads           Resource = "leads"
	ResourceActivities      Resource = "activities"
	ResourceAnalytics       Resource = "analytics"
	ResourceSettings        Resource = "settings"
	ResourceAssignments     Resource = "assignments"
	ResourceAssignmentRules Resource = "assignment-rules"
	ResourceEmail           Resource = "email"
	ResourceAI              Resource = "ai"
)

// Action is the operation attempted on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
