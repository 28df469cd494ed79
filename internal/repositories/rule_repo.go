package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgiokas/dms-auth/internal/database"
	"github.com/tgiokas/dms-auth/internal/models"
)

// RuleRepository is the durable store of authorization rules. The engine
// consumes FindByDepartmentRoleMethod; the remaining operations back rule
// administration.
type RuleRepository interface {
	// FindByDepartmentRoleMethod returns rules for the tuple, oldest first.
	// Rule precedence depends on this ordering staying stable.
	FindByDepartmentRoleMethod(ctx context.Context, departmentID, roleID, method string) ([]models.BusinessRule, error)

	GetByID(ctx context.Context, id string) (*models.BusinessRule, error)
	List(ctx context.Context, limit, offset int) ([]models.BusinessRule, error)
	Create(ctx context.Context, rule *models.BusinessRule) error
	Update(ctx context.Context, rule *models.BusinessRule) error
	Delete(ctx context.Context, id string) error
}

type ruleRepoImpl struct {
	db *pgxpool.Pool
}

// NewRuleRepository creates a postgres-backed RuleRepository.
func NewRuleRepository(db *pgxpool.Pool) RuleRepository {
	return &ruleRepoImpl{db: db}
}

const ruleColumns = `id, department_id, role_id, http_method, path_pattern, allowed, created_at, modified_at`

func scanRule(row pgx.Row) (*models.BusinessRule, error) {
	var rule models.BusinessRule
	err := row.Scan(
		&rule.ID, &rule.DepartmentID, &rule.RoleID, &rule.HTTPMethod,
		&rule.PathPattern, &rule.Allowed, &rule.CreatedAt, &rule.ModifiedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &rule, nil
}

func scanRules(rows pgx.Rows) ([]models.BusinessRule, error) {
	defer rows.Close()

	rules := make([]models.BusinessRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

func (r *ruleRepoImpl) FindByDepartmentRoleMethod(ctx context.Context, departmentID, roleID, method string) ([]models.BusinessRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM business_rules
		WHERE department_id = $1 AND role_id = $2 AND http_method = $3
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, departmentID, roleID, strings.ToUpper(method))
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	return scanRules(rows)
}

func (r *ruleRepoImpl) GetByID(ctx context.Context, id string) (*models.BusinessRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM business_rules WHERE id = $1`
	return scanRule(r.db.QueryRow(ctx, query, id))
}

func (r *ruleRepoImpl) List(ctx context.Context, limit, offset int) ([]models.BusinessRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM business_rules ORDER BY created_at, id LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	return scanRules(rows)
}

func (r *ruleRepoImpl) Create(ctx context.Context, rule *models.BusinessRule) error {
	rule.ID = uuid.New().String()
	now := time.Now()
	rule.CreatedAt = now
	rule.ModifiedAt = now
	rule.HTTPMethod = strings.ToUpper(rule.HTTPMethod)

	query := `
		INSERT INTO business_rules
			(id, department_id, role_id, http_method, path_pattern, allowed, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		rule.ID, rule.DepartmentID, rule.RoleID, rule.HTTPMethod,
		rule.PathPattern, rule.Allowed, rule.CreatedAt, rule.ModifiedAt,
	)
	return database.MapPostgresError(err)
}

func (r *ruleRepoImpl) Update(ctx context.Context, rule *models.BusinessRule) error {
	rule.ModifiedAt = time.Now()
	rule.HTTPMethod = strings.ToUpper(rule.HTTPMethod)

	query := `
		UPDATE business_rules
		SET department_id = $2, role_id = $3, http_method = $4,
		    path_pattern = $5, allowed = $6, modified_at = $7
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		rule.ID, rule.DepartmentID, rule.RoleID, rule.HTTPMethod,
		rule.PathPattern, rule.Allowed, rule.ModifiedAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *ruleRepoImpl) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM business_rules WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
