package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vantora/guardian/internal/actions"
	"github.com/vantora/guardian/internal/models"
	"github.com/vantora/guardian/internal/store"
)

const testToken = "panel-session-token"

type staticTokens struct{ token string }

func (s staticTokens) AccessToken() string { return s.token }

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.New(nil, nil, nil, logger)
	registry := actions.NewRegistry(s, nil, nil, time.Millisecond, logger)
	h := NewHandler(s, registry, nil, logger)
	return NewRouter(h, staticTokens{token: testToken}), s
}

func doRequest(router *gin.Engine, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthUnauthenticated(t *testing.T) {
	router, _ := newTestRouter(t)
	if w := doRequest(router, http.MethodGet, "/healthz", "", false); w.Code != http.StatusOK {
		t.Fatalf("healthz should not require auth, got %d", w.Code)
	}
}

func TestAuthRejection(t *testing.T) {
	router, _ := newTestRouter(t)

	if w := doRequest(router, http.MethodGet, "/api/v1/guardian/incidents", "", false); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token should be rejected, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/guardian/incidents", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token should be rejected, got %d", w.Code)
	}
}

func TestAuthRejectsWhenNoSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.New(nil, nil, nil, logger)
	h := NewHandler(s, actions.NewRegistry(s, nil, nil, time.Millisecond, logger), nil, logger)
	router := NewRouter(h, staticTokens{token: ""})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/guardian/incidents", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("empty session must reject all requests, got %d", w.Code)
	}
}

func TestReportAndListIncidents(t *testing.T) {
	router, s := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/guardian/incidents",
		`{"type":"api-error","severity":"error","message":"HTTP 502 on GET /api/invoices"}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("report failed: %d %s", w.Code, w.Body.String())
	}

	var created struct {
		IncidentID string `json:"incident_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.IncidentID == "" {
		t.Fatalf("missing incident_id in %s", w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/api/v1/guardian/incidents", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d", w.Code)
	}
	var listed struct {
		Incidents []models.Incident `json:"incidents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Incidents) != 1 || listed.Incidents[0].ID != created.IncidentID {
		t.Fatalf("unexpected list: %+v", listed.Incidents)
	}
	if s.Count() != 1 {
		t.Fatalf("store count mismatch")
	}
}

func TestReportValidation(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doRequest(router, http.MethodPost, "/api/v1/guardian/incidents",
		`{"type":"api-error","severity":"error"}`, true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing message should be rejected, got %d", w.Code)
	}
}

func TestGetIncidentNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	if w := doRequest(router, http.MethodGet, "/api/v1/guardian/incidents/nope", "", true); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestExecuteActionRoute(t *testing.T) {
	router, s := newTestRouter(t)
	id, err := s.AddIncident(context.Background(), models.IncidentInput{
		Type: models.IncidentTypeAuth, Severity: models.SeverityWarning, Message: "session expired",
	})
	if err != nil {
		t.Fatalf("seed incident: %v", err)
	}

	w := doRequest(router, http.MethodPost, "/api/v1/guardian/incidents/"+id+"/actions",
		`{"action":"reload_page"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("action failed: %d %s", w.Code, w.Body.String())
	}
	inc, _ := s.Incident(id)
	if len(inc.GuardianActions) != 2 {
		t.Fatalf("expected pending + resolved audit entries, got %d", len(inc.GuardianActions))
	}

	w = doRequest(router, http.MethodPost, "/api/v1/guardian/incidents/"+id+"/actions",
		`{"action":"format_disk"}`, true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown action should be rejected, got %d", w.Code)
	}
}

func TestPanelRoutesAndStatus(t *testing.T) {
	router, s := newTestRouter(t)

	doRequest(router, http.MethodPost, "/api/v1/guardian/panel/show", "", true)
	doRequest(router, http.MethodPost, "/api/v1/guardian/panel/collapse", "", true)

	w := doRequest(router, http.MethodGet, "/api/v1/guardian/status", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status failed: %d", w.Code)
	}
	var status statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.PanelVisible || !status.PanelCollapsed {
		t.Fatalf("panel state not reflected: %+v", status)
	}
	if !status.AutoCapture {
		t.Fatalf("auto capture defaults on")
	}

	w = doRequest(router, http.MethodGet, "/api/v1/guardian/panel", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("panel state failed: %d", w.Code)
	}
	var panel struct {
		Visible   bool `json:"visible"`
		Collapsed bool `json:"collapsed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &panel); err != nil {
		t.Fatalf("decode panel state: %v", err)
	}
	if !panel.Visible || !panel.Collapsed {
		t.Fatalf("panel route did not reflect state: %+v", panel)
	}

	doRequest(router, http.MethodPost, "/api/v1/guardian/panel/hide", "", true)
	if visible, _ := s.PanelState(); visible {
		t.Fatalf("hide route did not hide the panel")
	}
}

func TestClearIncidents(t *testing.T) {
	router, s := newTestRouter(t)
	if _, err := s.AddIncident(context.Background(), models.IncidentInput{
		Type: models.IncidentTypeRuntime, Severity: models.SeverityCritical, Message: "boom",
	}); err != nil {
		t.Fatalf("seed incident: %v", err)
	}

	if w := doRequest(router, http.MethodDelete, "/api/v1/guardian/incidents", "", true); w.Code != http.StatusOK {
		t.Fatalf("clear failed: %d", w.Code)
	}
	if s.Count() != 0 {
		t.Fatalf("incidents not cleared")
	}
	if visible, _ := s.PanelState(); visible {
		t.Fatalf("clearing must hide the panel")
	}
}

func TestAutoCaptureToggle(t *testing.T) {
	router, s := newTestRouter(t)

	w := doRequest(router, http.MethodPut, "/api/v1/guardian/settings/auto-capture",
		`{"enabled":false}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle failed: %d %s", w.Code, w.Body.String())
	}
	if s.AutoCaptureEnabled() {
		t.Fatalf("auto capture still enabled")
	}

	if w := doRequest(router, http.MethodPut, "/api/v1/guardian/settings/auto-capture", `{}`, true); w.Code != http.StatusBadRequest {
		t.Fatalf("missing enabled field should be rejected, got %d", w.Code)
	}
}
