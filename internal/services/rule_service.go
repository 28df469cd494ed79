package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tgiokas/dms-auth/internal/gateway"
	"github.com/tgiokas/dms-auth/internal/models"
	"github.com/tgiokas/dms-auth/internal/repositories"
	"github.com/tgiokas/dms-auth/pkg/logger"
)

var allowedRuleMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

// RuleService backs rule administration. Role IDs are checked against the
// identity provider's role list when a RoleDirectory is configured; an
// unreachable provider degrades the check to a warning rather than blocking
// rule changes.
type RuleService struct {
	rules  repositories.RuleRepository
	roles  gateway.RoleDirectory
	audit  *logger.AuditLogger
	logger *slog.Logger
}

// NewRuleService creates a new rule service. roles may be nil.
func NewRuleService(rules repositories.RuleRepository, roles gateway.RoleDirectory, audit *logger.AuditLogger, log *slog.Logger) *RuleService {
	return &RuleService{rules: rules, roles: roles, audit: audit, logger: log}
}

func (s *RuleService) List(ctx context.Context, limit, offset int) ([]models.BusinessRule, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.rules.List(ctx, limit, offset)
}

func (s *RuleService) Get(ctx context.Context, id string) (*models.BusinessRule, error) {
	return s.rules.GetByID(ctx, id)
}

// Create validates and stores a new rule. The new rule sorts after every
// existing rule for the same (department, role, method), so it can never
// change the outcome of a tuple that already has a matching rule.
func (s *RuleService) Create(ctx context.Context, rule *models.BusinessRule, actorID, clientIP string) error {
	if err := s.validate(ctx, rule); err != nil {
		return err
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	s.audit.LogAccountAction("rule_created", actorID, clientIP, map[string]string{
		"rule_id":       rule.ID,
		"department_id": rule.DepartmentID,
		"role_id":       rule.RoleID,
	})
	return nil
}

func (s *RuleService) Update(ctx context.Context, rule *models.BusinessRule, actorID, clientIP string) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", models.ErrBadRequest)
	}
	if err := s.validate(ctx, rule); err != nil {
		return err
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return err
	}

	s.audit.LogAccountAction("rule_updated", actorID, clientIP, map[string]string{"rule_id": rule.ID})
	return nil
}

func (s *RuleService) Delete(ctx context.Context, id, actorID, clientIP string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.LogAccountAction("rule_deleted", actorID, clientIP, map[string]string{"rule_id": id})
	return nil
}

func (s *RuleService) validate(ctx context.Context, rule *models.BusinessRule) error {
	if rule.DepartmentID == "" {
		return fmt.Errorf("%w: department_id is required", models.ErrBadRequest)
	}
	if rule.RoleID == "" {
		return fmt.Errorf("%w: role_id is required", models.ErrBadRequest)
	}
	if !allowedRuleMethods[strings.ToUpper(rule.HTTPMethod)] {
		return fmt.Errorf("%w: unsupported http method %q", models.ErrBadRequest, rule.HTTPMethod)
	}
	if !strings.HasPrefix(rule.PathPattern, "/") {
		return fmt.Errorf("%w: path_pattern must start with /", models.ErrBadRequest)
	}
	if strings.Count(rule.PathPattern, "*") > 1 ||
		(strings.Contains(rule.PathPattern, "*") && !strings.HasSuffix(rule.PathPattern, "*")) {
		return fmt.Errorf("%w: wildcard is only allowed as a trailing *", models.ErrBadRequest)
	}

	return s.checkRoleExists(ctx, rule.RoleID)
}

func (s *RuleService) checkRoleExists(ctx context.Context, roleID string) error {
	if s.roles == nil {
		return nil
	}

	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		if errors.Is(err, models.ErrUpstreamUnavailable) {
			s.logger.Warn("skipping role validation, identity provider unreachable")
			return nil
		}
		return fmt.Errorf("failed to list roles: %w", err)
	}

	for _, role := range roles {
		if role.ID == roleID || role.Name == roleID {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown role %q", models.ErrBadRequest, roleID)
}
