package models

import (
	"strings"
	"time"
)

// BusinessRule maps a (department, role, HTTP method, path pattern) tuple to
// an allow or deny decision. Rules are not unique by any enforced key, so
// overlapping rules are resolved by first-match precedence in the engine.
type BusinessRule struct {
	ID           string
	DepartmentID string
	RoleID       string
	HTTPMethod   string
	PathPattern  string
	Allowed      bool
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// MatchesPath reports whether the rule's pattern matches the request path.
// A trailing "*" makes the pattern a case-insensitive prefix match; any
// other pattern must match the path exactly (also case-insensitive, matching
// the prefix behavior so "/API/x" and "/api/x" rules behave alike).
func (r *BusinessRule) MatchesPath(path string) bool {
	pattern := r.PathPattern
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return len(path) >= len(prefix) && strings.EqualFold(path[:len(prefix)], prefix)
	}
	return strings.EqualFold(pattern, path)
}
