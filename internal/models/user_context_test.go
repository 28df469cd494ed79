package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairs_DeterministicOrder(t *testing.T) {
	uc := &UserContext{
		UserID: "user-1",
		DepartmentRoles: map[string][]string{
			"hr":      {"viewer"},
			"finance": {"approver", "viewer"},
		},
	}

	want := []DepartmentRole{
		{DepartmentID: "finance", RoleID: "approver"},
		{DepartmentID: "finance", RoleID: "viewer"},
		{DepartmentID: "hr", RoleID: "viewer"},
	}

	// Map iteration order varies; the enumeration must not.
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, uc.Pairs())
	}
}

func TestPairs_Empty(t *testing.T) {
	uc := &UserContext{UserID: "user-1"}
	assert.Empty(t, uc.Pairs())
}
