package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphive/crm-handoff/internal/config"
	"github.com/apphive/crm-handoff/internal/state"
)

const testIntegration = "crm-test"

func newTestManager(t *testing.T, baseURL string, store state.CredentialStore, mutate func(*config.IntegrationConfig)) *Manager {
	t.Helper()
	t.Setenv(config.EnvPrefix+"_CLIENT_SECRET", "shhh")

	cfg := &config.IntegrationConfig{
		Name:       testIntegration,
		APIBaseURL: baseURL,
		ClientID:   "client-id",
		Username:   "sync-user",
		Password:   "sync-pass",
	}
	if mutate != nil {
		mutate(cfg)
	}

	m, err := NewManager(cfg, store)
	require.NoError(t, err)
	return m
}

func TestToken_UsesPersistedCredential(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := state.NewMemoryStore()
	require.NoError(t, store.SaveCredential(context.Background(), testIntegration, state.Credential{
		AccessToken: "persisted-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	m := newTestManager(t, server.URL, store, nil)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "persisted-token", token)
	assert.Equal(t, int32(0), calls.Load(), "valid persisted credential must not trigger a token request")
}

func TestToken_PasswordGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/identity/connect/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "shhh", r.PostForm.Get("client_secret"))
		assert.Equal(t, "sync-user", r.PostForm.Get("username"))
		assert.Equal(t, "sync-pass", r.PostForm.Get("password"))
		assert.Equal(t, config.DefaultScope, r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","expires_in":3600,"refresh_token":"rt-1"}`))
	}))
	defer server.Close()

	store := state.NewMemoryStore()
	m := newTestManager(t, server.URL, store, nil)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)

	cred, err := store.LoadCredential(context.Background(), testIntegration)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", cred.AccessToken)
	assert.Equal(t, "rt-1", cred.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, time.Minute)
}

func TestToken_RefreshGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))
		assert.Empty(t, r.PostForm.Get("username"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"refreshed-token","expires_in":600,"refresh_token":"rt-new"}`))
	}))
	defer server.Close()

	store := state.NewMemoryStore()
	require.NoError(t, store.SaveCredential(context.Background(), testIntegration, state.Credential{
		AccessToken:  "stale-token",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	m := newTestManager(t, server.URL, store, func(cfg *config.IntegrationConfig) {
		cfg.Username = ""
		cfg.Password = ""
	})

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", token)

	cred, err := store.LoadCredential(context.Background(), testIntegration)
	require.NoError(t, err)
	assert.Equal(t, "rt-new", cred.RefreshToken)
}

func TestToken_NoCredentialPath(t *testing.T) {
	m := newTestManager(t, "http://crm.invalid", state.NewMemoryStore(), func(cfg *config.IntegrationConfig) {
		cfg.Username = ""
		cfg.Password = ""
	})

	_, err := m.Token(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "no credential path")
}

func TestToken_ErrorResponseKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, state.NewMemoryStore(), nil)

	_, err := m.Token(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, string(authErr.Body), "invalid_grant")
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestToken_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, state.NewMemoryStore(), nil)

	_, err := m.Token(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "no access_token")
}

func TestToken_ExpiryFromJWTClaim(t *testing.T) {
	exp := time.Now().Add(42 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + signed + `"}`))
	}))
	defer server.Close()

	store := state.NewMemoryStore()
	m := newTestManager(t, server.URL, store, nil)

	_, err = m.Token(context.Background())
	require.NoError(t, err)

	cred, err := store.LoadCredential(context.Background(), testIntegration)
	require.NoError(t, err)
	assert.True(t, cred.ExpiresAt.Equal(exp), "expiry should come from the token's exp claim")
}

func TestToken_ConcurrentCallersSingleAcquisition(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"shared-token","expires_in":3600}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, state.NewMemoryStore(), nil)

	const callers = 50
	tokens := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared-token", tokens[i])
	}
	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must collapse into one token request")
}

func TestToken_SaveFailureSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","expires_in":3600}`))
	}))
	defer server.Close()

	store := &failingCredentialStore{saveErr: errors.New("disk full")}
	m := newTestManager(t, server.URL, store, nil)

	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

type failingCredentialStore struct {
	saveErr error
}

func (f *failingCredentialStore) LoadCredential(context.Context, string) (state.Credential, error) {
	return state.Credential{}, nil
}

func (f *failingCredentialStore) SaveCredential(context.Context, string, state.Credential) error {
	return f.saveErr
}
