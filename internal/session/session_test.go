package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, tenantID, userID string) string {
	t.Helper()
	claims := Claims{
		TenantID: tenantID,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestSetTokensDerivesIdentity(t *testing.T) {
	m := NewManager("", 0, nil)
	m.SetTokens(signedToken(t, "acme", "user-42"), "refresh-1")

	snap := m.Snapshot()
	if snap.TenantID == nil || *snap.TenantID != "acme" {
		t.Fatalf("tenant not derived from claims: %+v", snap)
	}
	if snap.UserID == nil || *snap.UserID != "user-42" {
		t.Fatalf("user not derived from claims: %+v", snap)
	}

	tenant, ok := m.TenantID()
	if !ok || tenant != "acme" {
		t.Fatalf("TenantID() = %q, %v", tenant, ok)
	}
}

func TestSetTokensMalformed(t *testing.T) {
	m := NewManager("", 0, nil)
	m.SetTokens("not-a-jwt", "")

	snap := m.Snapshot()
	if snap.TenantID != nil || snap.UserID != nil {
		t.Fatalf("expected nil identity for malformed token, got %+v", snap)
	}
	if m.AccessToken() != "not-a-jwt" {
		t.Fatalf("access token should be stored regardless")
	}
}

func TestEndSessionSignals(t *testing.T) {
	m := NewManager("", 0, nil)
	m.SetTokens(signedToken(t, "acme", "user-42"), "refresh-1")

	ended := m.OnSessionEnd()
	m.EndSession()

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatalf("session-ended signal not delivered")
	}

	if m.AccessToken() != "" {
		t.Fatalf("credentials not cleared")
	}
	if _, ok := m.TenantID(); ok {
		t.Fatalf("tenant survived sign-out")
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	m := NewManager("http://localhost/refresh", 0, nil)
	if err := m.Refresh(context.Background()); err == nil {
		t.Fatalf("expected failure with no refresh token")
	}
}

func TestRefreshSwapsTokens(t *testing.T) {
	next := signedToken(t, "acme", "user-42")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + next + `","refresh_token":"refresh-2"}`))
	}))
	defer srv.Close()

	m := NewManager(srv.URL, 0, nil)
	m.SetTokens(signedToken(t, "acme", "user-42"), "refresh-1")

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if m.AccessToken() != next {
		t.Fatalf("access token not replaced")
	}
}

func TestRefreshFailureLeavesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewManager(srv.URL, 0, nil)
	original := signedToken(t, "acme", "user-42")
	m.SetTokens(original, "refresh-1")

	if err := m.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh failure")
	}
	if m.AccessToken() != original {
		t.Fatalf("failed refresh must not touch stored tokens")
	}
}
