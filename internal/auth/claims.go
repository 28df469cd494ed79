package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/tgiokas/dms-auth/internal/models"
)

// Claim names the identity provider puts in access tokens.
const (
	ClaimSubject         = "sub"
	ClaimUsername        = "preferred_username"
	ClaimDepartmentRoles = "department_roles"
)

// UserContextFromClaims derives the per-request authorization context from
// verified token claims. The department_roles claim must be an object
// mapping department IDs to arrays of role IDs; a token missing the claim
// or carrying an unparseable shape is a hard authentication failure
// (ErrMalformedClaims), never a deny decision.
func UserContextFromClaims(claims jwt.MapClaims) (*models.UserContext, error) {
	sub, ok := claims[ClaimSubject].(string)
	if !ok || sub == "" {
		return nil, models.ErrMalformedClaims
	}

	username, _ := claims[ClaimUsername].(string)

	raw, ok := claims[ClaimDepartmentRoles]
	if !ok {
		return nil, models.ErrMalformedClaims
	}
	byDept, ok := raw.(map[string]interface{})
	if !ok {
		return nil, models.ErrMalformedClaims
	}

	departmentRoles := make(map[string][]string, len(byDept))
	for dept, v := range byDept {
		list, ok := v.([]interface{})
		if !ok {
			return nil, models.ErrMalformedClaims
		}
		roles := make([]string, 0, len(list))
		for _, item := range list {
			role, ok := item.(string)
			if !ok {
				return nil, models.ErrMalformedClaims
			}
			roles = append(roles, role)
		}
		departmentRoles[dept] = roles
	}

	return &models.UserContext{
		UserID:          sub,
		Username:        username,
		DepartmentRoles: departmentRoles,
	}, nil
}
