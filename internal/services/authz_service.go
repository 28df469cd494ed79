package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tgiokas/dms-auth/internal/metrics"
	"github.com/tgiokas/dms-auth/internal/models"
	"github.com/tgiokas/dms-auth/internal/repositories"
)

// AuthorizationEngine decides ALLOW or DENY for a (caller, method, path)
// triple against the stored rules.
//
// Evaluation order: the caller's (department, role) pairs are enumerated in
// the deterministic order UserContext.Pairs defines; for each pair the rules
// for (department, role, method) are fetched oldest first, and the first rule
// whose pattern matches the path decides that pair. The first pair with any
// match decides the overall outcome, allow or deny. A DENY found for an early
// pair short-circuits even when a later pair would have allowed. No match
// anywhere is a DENY.
type AuthorizationEngine struct {
	rules  repositories.RuleRepository
	logger *slog.Logger
}

// NewAuthorizationEngine creates a new authorization engine
func NewAuthorizationEngine(rules repositories.RuleRepository, logger *slog.Logger) *AuthorizationEngine {
	return &AuthorizationEngine{rules: rules, logger: logger}
}

// Authorize returns the decision for the caller. A nil or empty caller
// context is a hard authentication failure (models.ErrMalformedClaims), never
// a deny decision. Store failures surface as errors after one internal retry.
func (e *AuthorizationEngine) Authorize(ctx context.Context, caller *models.UserContext, method, path string) (bool, error) {
	if caller == nil || len(caller.DepartmentRoles) == 0 {
		return false, models.ErrMalformedClaims
	}

	for _, pair := range caller.Pairs() {
		rules, err := e.fetchRules(ctx, pair.DepartmentID, pair.RoleID, method)
		if err != nil {
			return false, fmt.Errorf("failed to load rules for %s/%s: %w", pair.DepartmentID, pair.RoleID, err)
		}

		for _, rule := range rules {
			if !rule.MatchesPath(path) {
				continue
			}

			e.recordDecision(rule.Allowed)
			e.logger.Debug("authorization decision",
				slog.String("user_id", caller.UserID),
				slog.String("department_id", pair.DepartmentID),
				slog.String("role_id", pair.RoleID),
				slog.String("method", method),
				slog.String("path", path),
				slog.String("rule_id", rule.ID),
				slog.Bool("allowed", rule.Allowed),
			)
			return rule.Allowed, nil
		}
	}

	e.recordDecision(false)
	e.logger.Debug("authorization decision",
		slog.String("user_id", caller.UserID),
		slog.String("method", method),
		slog.String("path", path),
		slog.Bool("allowed", false),
		slog.String("reason", "no matching rule"),
	)
	return false, nil
}

// fetchRules retries a failed read once before giving up.
func (e *AuthorizationEngine) fetchRules(ctx context.Context, departmentID, roleID, method string) ([]models.BusinessRule, error) {
	rules, err := e.rules.FindByDepartmentRoleMethod(ctx, departmentID, roleID, method)
	if err == nil {
		return rules, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	e.logger.Warn("rule lookup failed, retrying once", slog.String("error", err.Error()))
	return e.rules.FindByDepartmentRoleMethod(ctx, departmentID, roleID, method)
}

func (e *AuthorizationEngine) recordDecision(allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	metrics.AuthzDecisions.WithLabelValues(decision).Inc()
}
