package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgiokas/dms-auth/internal/cache"
	"github.com/tgiokas/dms-auth/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*KeycloakClient, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewKeycloakClient(KeycloakConfig{
		BaseURL:           server.URL,
		Realm:             "dms",
		ClientID:          "dms-auth",
		ClientSecret:      "client-secret",
		AdminClientID:     "dms-admin",
		AdminClientSecret: "admin-secret",
	}, cache.NewMemory(), slog.Default())

	return client, server
}

func TestKeycloakClient_IssueTokens(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/realms/dms/protocol/openid-connect/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.Form.Get("grant_type"))
		assert.Equal(t, "alice", r.Form.Get("username"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at",
			"refresh_token": "rt",
			"expires_in":    300,
		})
	}))

	tokens, err := client.IssueTokens(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "at", tokens.AccessToken)
	assert.Equal(t, "rt", tokens.RefreshToken)
	assert.Equal(t, 300, tokens.ExpiresIn)
}

func TestKeycloakClient_InvalidGrantIsInvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))

	err := client.ValidateCredentials(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestKeycloakClient_ServerErrorIsUpstreamUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.IssueTokens(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestKeycloakClient_ConnectionFailureIsUpstreamUnavailable(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := client.IssueTokens(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestKeycloakClient_AdminTokenIsCached(t *testing.T) {
	var grants atomic.Int32

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/realms/dms/protocol/openid-connect/token":
			grants.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "admin-token",
				"expires_in":   300,
			})
		case "/admin/realms/dms/roles":
			assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode([]Role{{ID: "r1", Name: "signer"}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		roles, err := client.ListRoles(ctx)
		require.NoError(t, err)
		require.Len(t, roles, 1)
	}

	assert.Equal(t, int32(1), grants.Load(), "admin token should be fetched once and cached")
}

func TestKeycloakClient_Lookup(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/realms/dms/protocol/openid-connect/token":
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "admin-token", "expires_in": 300})
		case "/admin/realms/dms/users":
			assert.Equal(t, "bob", r.URL.Query().Get("username"))
			_ = json.NewEncoder(w).Encode([]map[string]any{{
				"id":         "user-42",
				"username":   "bob",
				"email":      "bob@example.com",
				"attributes": map[string][]string{"phone": {"+15550001111"}},
			}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	user, err := client.Lookup(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "user-42", user.ID)
	assert.Equal(t, "bob@example.com", user.Email)
	assert.Equal(t, "+15550001111", user.Phone)
}

func TestKeycloakClient_LookupUnknownUser(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/realms/dms/protocol/openid-connect/token":
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "admin-token", "expires_in": 300})
		default:
			_ = json.NewEncoder(w).Encode([]any{})
		}
	}))

	_, err := client.Lookup(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestKeycloakClient_Invalidate(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/realms/dms/protocol/openid-connect/logout", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "rt", r.Form.Get("refresh_token"))
		w.WriteHeader(http.StatusNoContent)
	}))

	assert.NoError(t, client.Invalidate(context.Background(), "rt"))
}
