package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tgiokas/dms-auth/internal/auth"
	"github.com/tgiokas/dms-auth/internal/cache"
	"github.com/tgiokas/dms-auth/internal/models"
	"github.com/tgiokas/dms-auth/internal/services"
	pkglogger "github.com/tgiokas/dms-auth/pkg/logger"
)

// Gateway stubs for handler tests. The service layer has its own coverage;
// these tests pin the HTTP mapping.

type stubTokenClient struct {
	validateErr error
}

func (s *stubTokenClient) ValidateCredentials(context.Context, string, string) error {
	return s.validateErr
}
func (s *stubTokenClient) IssueTokens(context.Context, string, string) (*models.TokenPair, error) {
	return &models.TokenPair{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 300}, nil
}
func (s *stubTokenClient) RefreshTokens(context.Context, string) (*models.TokenPair, error) {
	return &models.TokenPair{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 300}, nil
}
func (s *stubTokenClient) Invalidate(context.Context, string) error { return nil }

type stubUserDirectory struct{}

func (stubUserDirectory) Lookup(_ context.Context, username string) (*models.IdentityUser, error) {
	return &models.IdentityUser{ID: "user-1", Username: username, Email: username + "@example.com"}, nil
}
func (stubUserDirectory) SetPassword(context.Context, string, string) error { return nil }

type stubSecondFactorRepo struct{}

func (stubSecondFactorRepo) Exists(context.Context, string) (bool, error) { return false, nil }
func (stubSecondFactorRepo) Get(context.Context, string) (*models.TotpSecret, error) {
	return nil, models.ErrNotFound
}
func (stubSecondFactorRepo) Save(context.Context, *models.TotpSecret) error    { return nil }
func (stubSecondFactorRepo) Replace(context.Context, *models.TotpSecret) error { return nil }
func (stubSecondFactorRepo) TouchVerified(context.Context, string, time.Time) error {
	return nil
}
func (stubSecondFactorRepo) Delete(context.Context, string) error { return nil }

type stubSender struct{}

func (stubSender) SendLoginCode(context.Context, *models.IdentityUser, string, string) error {
	return nil
}
func (stubSender) SendPasswordReset(context.Context, *models.IdentityUser, string) error {
	return nil
}

func newAuthHandler(tokens *stubTokenClient) *AuthHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := services.NewLoginService(
		tokens, stubUserDirectory{}, stubSecondFactorRepo{}, cache.NewMemory(),
		auth.NewTotpEngine("test"), stubSender{},
		pkglogger.NewAuditLogger(logger), auth.NewTimingDelay(0, 0), logger,
	)
	return NewAuthHandler(svc, nil, logger)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestLoginHandler_Success(t *testing.T) {
	h := newAuthHandler(&stubTokenClient{})

	rec := postJSON(t, h.Login, `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access_token":"at"`)
}

func TestLoginHandler_InvalidCredentialsIs401(t *testing.T) {
	h := newAuthHandler(&stubTokenClient{validateErr: models.ErrInvalidCredentials})

	rec := postJSON(t, h.Login, `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_credentials")
}

func TestLoginHandler_UpstreamOutageIs503(t *testing.T) {
	h := newAuthHandler(&stubTokenClient{validateErr: models.ErrUpstreamUnavailable})

	rec := postJSON(t, h.Login, `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream_unavailable")
}

func TestLoginHandler_Validation(t *testing.T) {
	h := newAuthHandler(&stubTokenClient{})

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{"username":`},
		{"missing password", `{"username":"alice"}`},
		{"unknown channel", `{"username":"alice","password":"pw","channel":"carrier-pigeon"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.Login, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestVerifyCodeHandler_Validation(t *testing.T) {
	h := newAuthHandler(&stubTokenClient{})

	cases := []struct {
		name string
		body string
	}{
		{"short token", `{"setup_token":"abc","code":"123456"}`},
		{"non-hex token", `{"setup_token":"zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz","code":"123456"}`},
		{"non-numeric code", `{"setup_token":"deadbeefdeadbeefdeadbeefdeadbeef","code":"abcdef"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.VerifyCode, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestVerifyCodeHandler_UnknownSessionIs401(t *testing.T) {
	h := newAuthHandler(&stubTokenClient{})

	rec := postJSON(t, h.VerifyCode, `{"setup_token":"deadbeefdeadbeefdeadbeefdeadbeef","code":"123456"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_expired")
}

func TestForgotPasswordHandler_AlwaysReturns200(t *testing.T) {
	h := newAuthHandler(&stubTokenClient{})

	rec := postJSON(t, h.ForgotPassword, `{"username":"anyone"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "If the account exists")
}
