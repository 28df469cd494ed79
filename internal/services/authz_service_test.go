package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgiokas/dms-auth/internal/models"
)

func ruleFor(dept, role, method, pattern string, allowed bool) models.BusinessRule {
	return models.BusinessRule{
		ID:           dept + "/" + role + "/" + pattern,
		DepartmentID: dept,
		RoleID:       role,
		HTTPMethod:   method,
		PathPattern:  pattern,
		Allowed:      allowed,
	}
}

func singlePairContext(dept, role string) *models.UserContext {
	return &models.UserContext{
		UserID:          "user-1",
		Username:        "alice",
		DepartmentRoles: map[string][]string{dept: {role}},
	}
}

func TestAuthorize_WildcardAllowAndDefaultDeny(t *testing.T) {
	repo := &mockRuleRepo{
		FindFunc: func(_ context.Context, dept, role, method string) ([]models.BusinessRule, error) {
			if dept == "1" && role == "R" && method == "POST" {
				return []models.BusinessRule{ruleFor("1", "R", "POST", "/api/sig/*", true)}, nil
			}
			return nil, nil
		},
	}
	engine := NewAuthorizationEngine(repo, newTestLogger())
	caller := singlePairContext("1", "R")

	allowed, err := engine.Authorize(context.Background(), caller, "POST", "/api/sig/create")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = engine.Authorize(context.Background(), caller, "POST", "/api/other")
	require.NoError(t, err)
	assert.False(t, allowed, "unmatched path must fall through to default deny")
}

func TestAuthorize_ExactMatchIsCaseInsensitive(t *testing.T) {
	repo := &mockRuleRepo{
		FindFunc: func(_ context.Context, _, _, _ string) ([]models.BusinessRule, error) {
			return []models.BusinessRule{ruleFor("1", "R", "GET", "/api/reports", true)}, nil
		},
	}
	engine := NewAuthorizationEngine(repo, newTestLogger())

	allowed, err := engine.Authorize(context.Background(), singlePairContext("1", "R"), "GET", "/API/Reports")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAuthorize_FirstMatchingRuleWithinPairWins(t *testing.T) {
	repo := &mockRuleRepo{
		FindFunc: func(_ context.Context, _, _, _ string) ([]models.BusinessRule, error) {
			return []models.BusinessRule{
				ruleFor("1", "R", "POST", "/api/sig/*", false),
				ruleFor("1", "R", "POST", "/api/sig/create", true),
			}, nil
		},
	}
	engine := NewAuthorizationEngine(repo, newTestLogger())

	allowed, err := engine.Authorize(context.Background(), singlePairContext("1", "R"), "POST", "/api/sig/create")
	require.NoError(t, err)
	assert.False(t, allowed, "older deny rule must shadow the later allow rule")
}

func TestAuthorize_EarlyPairDenyShortCircuitsLaterPairAllow(t *testing.T) {
	// Pairs enumerate sorted, so ("alpha", "R") is evaluated before
	// ("beta", "R"). The deny match on alpha must decide overall even though
	// beta would allow.
	repo := &mockRuleRepo{
		FindFunc: func(_ context.Context, dept, _, _ string) ([]models.BusinessRule, error) {
			switch dept {
			case "alpha":
				return []models.BusinessRule{ruleFor("alpha", "R", "POST", "/api/docs/*", false)}, nil
			case "beta":
				return []models.BusinessRule{ruleFor("beta", "R", "POST", "/api/docs/*", true)}, nil
			}
			return nil, nil
		},
	}
	engine := NewAuthorizationEngine(repo, newTestLogger())
	caller := &models.UserContext{
		UserID: "user-1",
		DepartmentRoles: map[string][]string{
			"alpha": {"R"},
			"beta":  {"R"},
		},
	}

	allowed, err := engine.Authorize(context.Background(), caller, "POST", "/api/docs/42")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAuthorize_UnmatchedPairFallsThroughToNextPair(t *testing.T) {
	repo := &mockRuleRepo{
		FindFunc: func(_ context.Context, dept, _, _ string) ([]models.BusinessRule, error) {
			if dept == "beta" {
				return []models.BusinessRule{ruleFor("beta", "R", "GET", "/api/docs/*", true)}, nil
			}
			return nil, nil
		},
	}
	engine := NewAuthorizationEngine(repo, newTestLogger())
	caller := &models.UserContext{
		UserID: "user-1",
		DepartmentRoles: map[string][]string{
			"alpha": {"R"},
			"beta":  {"R"},
		},
	}

	allowed, err := engine.Authorize(context.Background(), caller, "GET", "/api/docs/42")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAuthorize_MissingClaimsIsAuthFailureNotDeny(t *testing.T) {
	engine := NewAuthorizationEngine(&mockRuleRepo{}, newTestLogger())

	_, err := engine.Authorize(context.Background(), nil, "GET", "/api/docs")
	assert.ErrorIs(t, err, models.ErrMalformedClaims)

	_, err = engine.Authorize(context.Background(), &models.UserContext{UserID: "u"}, "GET", "/api/docs")
	assert.ErrorIs(t, err, models.ErrMalformedClaims)
}

func TestAuthorize_RetriesRuleLookupOnce(t *testing.T) {
	calls := 0
	repo := &mockRuleRepo{
		FindFunc: func(_ context.Context, _, _, _ string) ([]models.BusinessRule, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset")
			}
			return []models.BusinessRule{ruleFor("1", "R", "GET", "/api/*", true)}, nil
		},
	}
	engine := NewAuthorizationEngine(repo, newTestLogger())

	allowed, err := engine.Authorize(context.Background(), singlePairContext("1", "R"), "GET", "/api/docs")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, calls)
}

func TestAuthorize_PersistentLookupFailureSurfaces(t *testing.T) {
	repo := &mockRuleRepo{
		FindFunc: func(_ context.Context, _, _, _ string) ([]models.BusinessRule, error) {
			return nil, errors.New("connection reset")
		},
	}
	engine := NewAuthorizationEngine(repo, newTestLogger())

	_, err := engine.Authorize(context.Background(), singlePairContext("1", "R"), "GET", "/api/docs")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrMalformedClaims)
}
