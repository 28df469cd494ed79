package models

import "sort"

// DepartmentRole is one unit of authorization context. A caller may hold
// several simultaneously, with different roles in different departments.
type DepartmentRole struct {
	DepartmentID string
	RoleID       string
}

// UserContext is derived per request from a verified token. Never persisted.
type UserContext struct {
	UserID          string
	Username        string
	DepartmentRoles map[string][]string // department -> role IDs
}

// Pairs enumerates every (department, role) pair the caller holds, in a
// deterministic order (departments sorted, then roles sorted within each).
// The authorization engine's first-match precedence depends on this order
// being stable across requests.
func (uc *UserContext) Pairs() []DepartmentRole {
	departments := make([]string, 0, len(uc.DepartmentRoles))
	for dept := range uc.DepartmentRoles {
		departments = append(departments, dept)
	}
	sort.Strings(departments)

	var pairs []DepartmentRole
	for _, dept := range departments {
		roles := append([]string(nil), uc.DepartmentRoles[dept]...)
		sort.Strings(roles)
		for _, role := range roles {
			pairs = append(pairs, DepartmentRole{DepartmentID: dept, RoleID: role})
		}
	}
	return pairs
}
