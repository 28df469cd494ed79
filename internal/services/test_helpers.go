package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/tgiokas/dms-auth/internal/gateway"
	"github.com/tgiokas/dms-auth/internal/models"
	"github.com/tgiokas/dms-auth/pkg/logger"
)

// Mock collaborators for service tests. Each method delegates to an
// overridable func field; unset fields fall back to a benign default.

type mockTokenClient struct {
	ValidateCredentialsFunc func(ctx context.Context, username, password string) error
	IssueTokensFunc         func(ctx context.Context, username, password string) (*models.TokenPair, error)
	RefreshTokensFunc       func(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	InvalidateFunc          func(ctx context.Context, refreshToken string) error
}

func (m *mockTokenClient) ValidateCredentials(ctx context.Context, username, password string) error {
	if m.ValidateCredentialsFunc != nil {
		return m.ValidateCredentialsFunc(ctx, username, password)
	}
	return nil
}

func (m *mockTokenClient) IssueTokens(ctx context.Context, username, password string) (*models.TokenPair, error) {
	if m.IssueTokensFunc != nil {
		return m.IssueTokensFunc(ctx, username, password)
	}
	return &models.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 300}, nil
}

func (m *mockTokenClient) RefreshTokens(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if m.RefreshTokensFunc != nil {
		return m.RefreshTokensFunc(ctx, refreshToken)
	}
	return &models.TokenPair{AccessToken: "access2", RefreshToken: "refresh2", ExpiresIn: 300}, nil
}

func (m *mockTokenClient) Invalidate(ctx context.Context, refreshToken string) error {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, refreshToken)
	}
	return nil
}

type mockUserDirectory struct {
	LookupFunc      func(ctx context.Context, username string) (*models.IdentityUser, error)
	SetPasswordFunc func(ctx context.Context, userID, password string) error
}

func (m *mockUserDirectory) Lookup(ctx context.Context, username string) (*models.IdentityUser, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, username)
	}
	return &models.IdentityUser{ID: "user-1", Username: username, Email: username + "@example.com"}, nil
}

func (m *mockUserDirectory) SetPassword(ctx context.Context, userID, password string) error {
	if m.SetPasswordFunc != nil {
		return m.SetPasswordFunc(ctx, userID, password)
	}
	return nil
}

type mockRoleDirectory struct {
	ListRolesFunc func(ctx context.Context) ([]gateway.Role, error)
}

func (m *mockRoleDirectory) ListRoles(ctx context.Context) ([]gateway.Role, error) {
	if m.ListRolesFunc != nil {
		return m.ListRolesFunc(ctx)
	}
	return nil, nil
}

type mockSecondFactorRepo struct {
	ExistsFunc        func(ctx context.Context, userID string) (bool, error)
	GetFunc           func(ctx context.Context, userID string) (*models.TotpSecret, error)
	SaveFunc          func(ctx context.Context, secret *models.TotpSecret) error
	ReplaceFunc       func(ctx context.Context, secret *models.TotpSecret) error
	TouchVerifiedFunc func(ctx context.Context, userID string, at time.Time) error
	DeleteFunc        func(ctx context.Context, userID string) error
}

func (m *mockSecondFactorRepo) Exists(ctx context.Context, userID string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, userID)
	}
	return false, nil
}

func (m *mockSecondFactorRepo) Get(ctx context.Context, userID string) (*models.TotpSecret, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *mockSecondFactorRepo) Save(ctx context.Context, secret *models.TotpSecret) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, secret)
	}
	return nil
}

func (m *mockSecondFactorRepo) Replace(ctx context.Context, secret *models.TotpSecret) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, secret)
	}
	return nil
}

func (m *mockSecondFactorRepo) TouchVerified(ctx context.Context, userID string, at time.Time) error {
	if m.TouchVerifiedFunc != nil {
		return m.TouchVerifiedFunc(ctx, userID, at)
	}
	return nil
}

func (m *mockSecondFactorRepo) Delete(ctx context.Context, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

type mockRuleRepo struct {
	FindFunc    func(ctx context.Context, departmentID, roleID, method string) ([]models.BusinessRule, error)
	GetByIDFunc func(ctx context.Context, id string) (*models.BusinessRule, error)
	ListFunc    func(ctx context.Context, limit, offset int) ([]models.BusinessRule, error)
	CreateFunc  func(ctx context.Context, rule *models.BusinessRule) error
	UpdateFunc  func(ctx context.Context, rule *models.BusinessRule) error
	DeleteFunc  func(ctx context.Context, id string) error
}

func (m *mockRuleRepo) FindByDepartmentRoleMethod(ctx context.Context, departmentID, roleID, method string) ([]models.BusinessRule, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, departmentID, roleID, method)
	}
	return nil, nil
}

func (m *mockRuleRepo) GetByID(ctx context.Context, id string) (*models.BusinessRule, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *mockRuleRepo) List(ctx context.Context, limit, offset int) ([]models.BusinessRule, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *models.BusinessRule) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rule)
	}
	return nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *models.BusinessRule) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, rule)
	}
	return nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

type mockChallengeSender struct {
	SendLoginCodeFunc     func(ctx context.Context, user *models.IdentityUser, channel, code string) error
	SendPasswordResetFunc func(ctx context.Context, user *models.IdentityUser, resetToken string) error
}

func (m *mockChallengeSender) SendLoginCode(ctx context.Context, user *models.IdentityUser, channel, code string) error {
	if m.SendLoginCodeFunc != nil {
		return m.SendLoginCodeFunc(ctx, user, channel, code)
	}
	return nil
}

func (m *mockChallengeSender) SendPasswordReset(ctx context.Context, user *models.IdentityUser, resetToken string) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, user, resetToken)
	}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAudit() *logger.AuditLogger {
	return logger.NewAuditLogger(newTestLogger())
}
