// Package session holds the ambient state Guardian reads when recording an
// incident: tokens, tenant/user identity, and the current screen location.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vantora/guardian/internal/utils"
)

// Claims is the subset of access-token claims Guardian cares about. The
// token is parsed without verification: the agent is not the token's
// audience, it only mirrors what the application session already holds.
type Claims struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"uid"`
	jwt.RegisteredClaims
}

// Context is a point-in-time snapshot of ambient session state attached to
// new incidents. Identity fields are nil when no session is live.
type Context struct {
	TenantID *string
	UserID   *string
	Page     string
	Route    string
}

// Manager owns the session state. All access is serialized internally so
// the store, collector client, and remedial actions can share one instance.
type Manager struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	tenantID     *string
	userID       *string
	page         string
	route        string

	refreshURL string
	httpClient *http.Client
	logger     *slog.Logger

	endedSubs []chan struct{}
}

// NewManager constructs a session manager. refreshURL may be empty when the
// token-refresh remedy is not available in the deployment.
func NewManager(refreshURL string, timeout time.Duration, logger *slog.Logger) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		refreshURL: refreshURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SetTokens stores the session credentials and derives tenant/user identity
// from the access token's claims.
func (m *Manager) SetTokens(accessToken, refreshToken string) {
	tenantID, userID := identityFromToken(accessToken)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = accessToken
	m.refreshToken = refreshToken
	m.tenantID = tenantID
	m.userID = userID
}

func identityFromToken(accessToken string) (tenantID, userID *string) {
	if accessToken == "" {
		return nil, nil
	}
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return nil, nil
	}
	if claims.TenantID != "" {
		tenantID = &claims.TenantID
	}
	user := claims.UserID
	if user == "" {
		user = claims.Subject
	}
	if user != "" {
		userID = &user
	}
	return tenantID, userID
}

// SetLocation records the current screen title and route.
func (m *Manager) SetLocation(page, route string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.page = page
	m.route = route
}

// Snapshot returns the ambient context attached to new incidents.
func (m *Manager) Snapshot() Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Context{
		TenantID: m.tenantID,
		UserID:   m.userID,
		Page:     m.page,
		Route:    m.route,
	}
}

// AccessToken returns the live session token, empty when signed out.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// TenantID returns the tenant identifier when a session is live.
func (m *Manager) TenantID() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tenantID == nil {
		return "", false
	}
	return *m.tenantID, true
}

// OnSessionEnd returns a channel that receives one signal when the session
// is forcefully ended. Consumed by the application's authentication layer.
func (m *Manager) OnSessionEnd() <-chan struct{} {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.endedSubs = append(m.endedSubs, ch)
	m.mu.Unlock()
	return ch
}

// EndSession clears all credentials and identity, then emits the
// session-ended signal to every subscriber.
func (m *Manager) EndSession() {
	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.tenantID = nil
	m.userID = nil
	subs := append([]chan struct{}(nil), m.endedSubs...)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

var errNoRefreshToken = errors.New("no refresh token stored")

// Refresh exchanges the stored refresh token for new credentials. On
// success the stored tokens are replaced; on failure the session is left
// untouched.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	refreshToken := m.refreshToken
	m.mu.RUnlock()

	if refreshToken == "" {
		return errNoRefreshToken
	}
	if m.refreshURL == "" {
		return errors.New("refresh endpoint not configured")
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return utils.NewAppError("session.Refresh", "encode refresh request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.refreshURL, bytes.NewReader(body))
	if err != nil {
		return utils.NewAppError("session.Refresh", "build refresh request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return utils.NewAppError("session.Refresh", "refresh request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return utils.NewAppError("session.Refresh", fmt.Sprintf("refresh endpoint returned %d", resp.StatusCode), nil)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return utils.NewAppError("session.Refresh", "decode refresh response", err)
	}
	if payload.AccessToken == "" {
		return errors.New("refresh response missing access token")
	}
	if payload.RefreshToken == "" {
		payload.RefreshToken = refreshToken
	}

	m.SetTokens(payload.AccessToken, payload.RefreshToken)
	m.logger.Info("session tokens refreshed")
	return nil
}
