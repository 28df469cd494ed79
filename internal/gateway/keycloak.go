package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tgiokas/dms-auth/internal/cache"
	"github.com/tgiokas/dms-auth/internal/models"
)

// KeycloakConfig holds connection settings for the identity provider.
type KeycloakConfig struct {
	BaseURL           string
	Realm             string
	ClientID          string
	ClientSecret      string
	AdminClientID     string
	AdminClientSecret string
	Timeout           time.Duration
}

// KeycloakClient talks to the provider's token and admin REST APIs. It is
// explicitly constructed and injected; the short-lived admin token lives in
// the ephemeral store, not in package state.
type KeycloakClient struct {
	httpClient *http.Client
	cfg        KeycloakConfig
	store      cache.Store
	logger     *slog.Logger
}

// NewKeycloakClient creates a client. store caches the admin token between
// admin API calls.
func NewKeycloakClient(cfg KeycloakConfig, store cache.Store, logger *slog.Logger) *KeycloakClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &KeycloakClient{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		store:      store,
		logger:     logger,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *KeycloakClient) tokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.cfg.BaseURL, c.cfg.Realm)
}

func (c *KeycloakClient) logoutEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/logout", c.cfg.BaseURL, c.cfg.Realm)
}

func (c *KeycloakClient) adminEndpoint(path string) string {
	return fmt.Sprintf("%s/admin/realms/%s%s", c.cfg.BaseURL, c.cfg.Realm, path)
}

// grant posts a form to the token endpoint. An invalid_grant rejection maps
// to ErrInvalidCredentials; everything else unexpected is the provider being
// unavailable.
func (c *KeycloakClient) grant(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, models.ErrUpstreamUnavailable
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("identity provider unreachable", slog.Any("error", err))
		return nil, models.ErrUpstreamUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, models.ErrUpstreamUnavailable
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var tr tokenResponse
		if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
			c.logger.Error("identity provider returned malformed token response")
			return nil, models.ErrUpstreamUnavailable
		}
		return &tr, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		var kcErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &kcErr)
		if kcErr.Error == "invalid_grant" {
			return nil, models.ErrInvalidCredentials
		}
		c.logger.Warn("identity provider rejected grant",
			slog.Int("status", resp.StatusCode),
			slog.String("error", kcErr.Error))
		return nil, models.ErrUpstreamUnavailable

	default:
		c.logger.Warn("identity provider returned unexpected status",
			slog.Int("status", resp.StatusCode))
		return nil, models.ErrUpstreamUnavailable
	}
}

func (c *KeycloakClient) ValidateCredentials(ctx context.Context, username, password string) error {
	_, err := c.IssueTokens(ctx, username, password)
	return err
}

func (c *KeycloakClient) IssueTokens(ctx context.Context, username, password string) (*models.TokenPair, error) {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"username":      {username},
		"password":      {password},
	}
	tr, err := c.grant(ctx, form)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

func (c *KeycloakClient) RefreshTokens(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	}
	tr, err := c.grant(ctx, form)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

func (c *KeycloakClient) Invalidate(ctx context.Context, refreshToken string) error {
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.logoutEndpoint(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return models.ErrUpstreamUnavailable
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ErrUpstreamUnavailable
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.ErrUpstreamUnavailable
	}
	return nil
}

// adminToken returns a bearer token for the admin API, cached in the
// ephemeral store slightly short of its real lifetime.
func (c *KeycloakClient) adminToken(ctx context.Context) (string, error) {
	if cached, err := c.store.Get(ctx, cache.AdminTokenKey()); err == nil {
		return string(cached), nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.AdminClientID},
		"client_secret": {c.cfg.AdminClientSecret},
	}
	tr, err := c.grant(ctx, form)
	if err != nil {
		return "", err
	}

	ttl := time.Duration(tr.ExpiresIn)*time.Second - 30*time.Second
	if ttl > 0 {
		if err := c.store.Put(ctx, cache.AdminTokenKey(), []byte(tr.AccessToken), ttl); err != nil {
			c.logger.Warn("failed to cache admin token", slog.Any("error", err))
		}
	}
	return tr.AccessToken, nil
}

func (c *KeycloakClient) doAdmin(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token, err := c.adminToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, models.ErrUpstreamUnavailable
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.adminEndpoint(path), reader)
	if err != nil {
		return nil, models.ErrUpstreamUnavailable
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("identity provider admin API unreachable", slog.Any("error", err))
		return nil, models.ErrUpstreamUnavailable
	}
	return resp, nil
}

type keycloakUser struct {
	ID         string              `json:"id"`
	Username   string              `json:"username"`
	Email      string              `json:"email"`
	Attributes map[string][]string `json:"attributes"`
}

func (c *KeycloakClient) Lookup(ctx context.Context, username string) (*models.IdentityUser, error) {
	path := "/users?exact=true&username=" + url.QueryEscape(username)
	resp, err := c.doAdmin(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, models.ErrUpstreamUnavailable
	}

	var users []keycloakUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, models.ErrUpstreamUnavailable
	}
	if len(users) == 0 {
		return nil, models.ErrNotFound
	}

	u := users[0]
	user := &models.IdentityUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
	if phones, ok := u.Attributes["phone"]; ok && len(phones) > 0 {
		user.Phone = phones[0]
	}
	return user, nil
}

func (c *KeycloakClient) SetPassword(ctx context.Context, userID, password string) error {
	payload := map[string]any{
		"type":      "password",
		"value":     password,
		"temporary": false,
	}
	path := "/users/" + url.PathEscape(userID) + "/reset-password"
	resp, err := c.doAdmin(ctx, http.MethodPut, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.ErrUpstreamUnavailable
	}
	return nil
}

func (c *KeycloakClient) ListRoles(ctx context.Context) ([]Role, error) {
	resp, err := c.doAdmin(ctx, http.MethodGet, "/roles", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, models.ErrUpstreamUnavailable
	}

	var roles []Role
	if err := json.NewDecoder(resp.Body).Decode(&roles); err != nil {
		return nil, models.ErrUpstreamUnavailable
	}
	return roles, nil
}
