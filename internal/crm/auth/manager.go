// Package auth manages the OAuth credential for a CRM integration. A single
// Manager owns the credential: it loads the persisted token on first use,
// hands out valid bearer tokens, and acquires or refreshes tokens when the
// cached one has expired.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/apphive/crm-handoff/internal/config"
	"github.com/apphive/crm-handoff/internal/state"
)

// tokenPath is the identity server's token endpoint, relative to the API base.
const tokenPath = "/identity/connect/token"

// fallbackTTL bounds the lifetime of a token whose response carried no
// expires_in and whose JWT has no exp claim. Short on purpose so a bad
// token is re-acquired quickly.
const fallbackTTL = 5 * time.Minute

// AuthError means the credential exchange failed or no credential path is
// configured. It is fatal to any API call. The raw response body is kept
// for diagnostics.
type AuthError struct {
	Reason string
	Body   []byte
}

func (e *AuthError) Error() string {
	if len(e.Body) == 0 {
		return "authentication failed: " + e.Reason
	}
	return fmt.Sprintf("authentication failed: %s: %s", e.Reason, strings.TrimSpace(string(e.Body)))
}

// Manager is the token lifecycle manager for one integration. It satisfies
// crm.TokenSource. Reads of a valid cached token are unsynchronized beyond
// an RWMutex; acquisition is collapsed through singleflight so concurrent
// callers hitting an expired credential trigger exactly one token request.
type Manager struct {
	integration  string
	tokenURL     string
	clientID     string
	clientSecret string
	username     string
	password     string
	scope        string

	store  state.CredentialStore
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	loaded bool
	cred   state.Credential
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient overrides the HTTP client used for token requests.
func WithHTTPClient(hc *http.Client) ManagerOption {
	return func(m *Manager) {
		m.http = hc
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a token lifecycle manager for the configured
// integration, persisting credentials through store.
func NewManager(cfg *config.IntegrationConfig, store state.CredentialStore, opts ...ManagerOption) (*Manager, error) {
	secret, err := cfg.GetClientSecret()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		integration:  cfg.Name,
		tokenURL:     strings.TrimSuffix(cfg.APIBaseURL, "/") + tokenPath,
		clientID:     cfg.ClientID,
		clientSecret: secret,
		username:     cfg.Username,
		password:     cfg.Password,
		scope:        cfg.GetScope(),
		store:        store,
		http:         &http.Client{Timeout: cfg.GetRequestTimeout()},
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Token returns a valid bearer token, acquiring or refreshing one if the
// cached credential is missing or expired.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	if m.loaded && m.cred.Valid(m.now()) {
		token := m.cred.AccessToken
		m.mu.RUnlock()
		return token, nil
	}
	m.mu.RUnlock()

	v, err, _ := m.group.Do(m.integration, func() (any, error) {
		return m.acquire(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// acquire holds the critical section around the shared credential: it
// re-checks validity, falls back to the persisted credential, and only then
// performs a grant exchange.
func (m *Manager) acquire(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.loaded && m.cred.Valid(now) {
		return m.cred.AccessToken, nil
	}

	if !m.loaded {
		cred, err := m.store.LoadCredential(ctx, m.integration)
		if err != nil {
			return "", fmt.Errorf("failed to load persisted credential: %w", err)
		}
		m.cred = cred
		m.loaded = true
		if m.cred.Valid(now) {
			m.logger.Debug("using persisted credential", "integration", m.integration)
			return m.cred.AccessToken, nil
		}
	}

	var form url.Values
	switch {
	case m.username != "" && m.password != "":
		m.logger.Info("acquiring access token with password grant", "integration", m.integration)
		form = url.Values{
			"grant_type":    {"password"},
			"client_id":     {m.clientID},
			"client_secret": {m.clientSecret},
			"username":      {m.username},
			"password":      {m.password},
			"scope":         {m.scope},
		}
	case m.cred.RefreshToken != "":
		m.logger.Info("refreshing access token", "integration", m.integration)
		form = url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {m.cred.RefreshToken},
			"client_id":     {m.clientID},
			"client_secret": {m.clientSecret},
		}
	default:
		return "", &AuthError{Reason: "no credential path configured: set username/password or seed a refresh token"}
	}

	cred, err := m.exchange(ctx, form)
	if err != nil {
		return "", err
	}

	if err := m.store.SaveCredential(ctx, m.integration, cred); err != nil {
		return "", fmt.Errorf("failed to persist credential: %w", err)
	}
	m.cred = cred
	m.logger.Info("access token acquired",
		"integration", m.integration,
		"expires_at", cred.ExpiresAt.Format(time.RFC3339))
	return cred.AccessToken, nil
}

func (m *Manager) exchange(ctx context.Context, form url.Values) (state.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return state.Credential{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return state.Credential{}, &AuthError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return state.Credential{}, &AuthError{Reason: "failed to read token response: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return state.Credential{}, &AuthError{
			Reason: fmt.Sprintf("token endpoint returned status %d", resp.StatusCode),
			Body:   body,
		}
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return state.Credential{}, &AuthError{Reason: "malformed token response", Body: body}
	}
	if tr.AccessToken == "" {
		return state.Credential{}, &AuthError{Reason: "token response has no access_token", Body: body}
	}

	return state.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    m.expiry(tr.AccessToken, tr.ExpiresIn),
	}, nil
}

// expiry computes the absolute expiry: expires_in when present, the JWT exp
// claim when not, and a short fallback when the token carries neither.
func (m *Manager) expiry(accessToken string, expiresIn int64) time.Time {
	if expiresIn > 0 {
		return m.now().Add(time.Duration(expiresIn) * time.Second)
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(accessToken, jwt.MapClaims{})
	if err == nil {
		if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return m.now().Add(fallbackTTL)
}
