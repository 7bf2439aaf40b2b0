// Package store owns the in-memory incident registry and panel state. It is
// the only component that mutates them; capture and submission are pure
// request/response helpers it invokes.
package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vantora/guardian/internal/metrics"
	"github.com/vantora/guardian/internal/models"
	"github.com/vantora/guardian/internal/session"
)

// Capturer produces a best-effort screenshot; nil means no screenshot.
type Capturer interface {
	Capture(ctx context.Context) []byte
}

// Submitter delivers an incident to the backend collector.
type Submitter interface {
	Submit(ctx context.Context, incident *models.Incident) bool
}

// SessionContext supplies the ambient context attached to new incidents.
type SessionContext interface {
	Snapshot() session.Context
}

// Store is the process-wide incident registry. It is dependency-injected,
// not ambient: the application root owns the single instance.
type Store struct {
	mu             sync.Mutex
	incidents      []*models.Incident
	panelVisible   bool
	panelCollapsed bool
	autoCapture    bool

	capturer  Capturer
	submitter Submitter
	session   SessionContext
	logger    *slog.Logger
}

// New constructs a Store. capturer, submitter, and sessionCtx may each be
// nil, degrading to no screenshots, no delivery, and empty ambient context.
func New(capturer Capturer, submitter Submitter, sessionCtx SessionContext, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		autoCapture: true,
		capturer:    capturer,
		submitter:   submitter,
		session:     sessionCtx,
		logger:      logger,
	}
}

// AddIncident validates and records a new incident, forces the panel
// visible, and kicks off backend submission without awaiting it. The id is
// returned as soon as the incident is locally recorded.
func (s *Store) AddIncident(ctx context.Context, input models.IncidentInput) (string, error) {
	if input.Type == "" {
		return "", fmt.Errorf("incident type is required")
	}
	if input.Severity == "" {
		return "", fmt.Errorf("incident severity is required")
	}
	if input.Message == "" {
		return "", fmt.Errorf("incident message is required")
	}

	var sessionCtx session.Context
	if s.session != nil {
		sessionCtx = s.session.Snapshot()
	}

	screenshot := input.ScreenshotData
	if screenshot == nil && s.autoCaptureEnabled() && s.capturer != nil {
		if data := s.capturer.Capture(ctx); len(data) > 0 {
			encoded := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
			screenshot = &encoded
		}
	}

	incident := &models.Incident{
		ID:             uuid.NewString(),
		Type:           input.Type,
		Severity:       input.Severity,
		TenantID:       sessionCtx.TenantID,
		UserID:         sessionCtx.UserID,
		Page:           sessionCtx.Page,
		Route:          sessionCtx.Route,
		Endpoint:       input.Endpoint,
		Method:         input.Method,
		HTTPStatus:     input.HTTPStatus,
		Message:        input.Message,
		Details:        input.Details,
		StackTrace:     input.StackTrace,
		Timestamp:      time.Now().UTC(),
		ScreenshotData: screenshot,
	}

	s.mu.Lock()
	s.incidents = append(s.incidents, incident)
	// Every new incident surfaces the panel regardless of prior state.
	s.panelVisible = true
	submitCopy := incident.Clone()
	s.mu.Unlock()

	metrics.ObserveIncident(string(incident.Type), string(incident.Severity))
	s.logger.Info("incident recorded",
		slog.String("incident_id", incident.ID),
		slog.String("type", string(incident.Type)),
		slog.String("severity", string(incident.Severity)))

	if s.submitter != nil {
		go func() {
			if s.submitter.Submit(context.Background(), &submitCopy) {
				s.MarkSentToBackend(submitCopy.ID)
			}
		}()
	}

	return incident.ID, nil
}

// ReportAuthIncident records an authentication failure.
func (s *Store) ReportAuthIncident(ctx context.Context, reason string, details *string) (string, error) {
	return s.AddIncident(ctx, models.IncidentInput{
		Type:     models.IncidentTypeAuth,
		Severity: models.SeverityWarning,
		Message:  reason,
		Details:  details,
	})
}

// ReportAPIIncident records a failed API call, classifying type and
// severity from the HTTP status.
func (s *Store) ReportAPIIncident(ctx context.Context, endpoint, method string, status int, body *string) (string, error) {
	incidentType, severity := models.ClassifyHTTPStatus(status)
	return s.AddIncident(ctx, models.IncidentInput{
		Type:       incidentType,
		Severity:   severity,
		Message:    fmt.Sprintf("HTTP %d on %s %s", status, method, endpoint),
		Details:    body,
		Endpoint:   &endpoint,
		Method:     &method,
		HTTPStatus: &status,
	})
}

// ReportRuntimeError records an uncaught error; this class is always
// critical.
func (s *Store) ReportRuntimeError(ctx context.Context, message string, stack *string) (string, error) {
	return s.AddIncident(ctx, models.IncidentInput{
		Type:       models.IncidentTypeRuntime,
		Severity:   models.SeverityCritical,
		Message:    message,
		StackTrace: stack,
	})
}

// ReportValidationIncident records a rejected form or document submission.
func (s *Store) ReportValidationIncident(ctx context.Context, message string, details *string) (string, error) {
	return s.AddIncident(ctx, models.IncidentInput{
		Type:     models.IncidentTypeValidation,
		Severity: models.SeverityWarning,
		Message:  message,
		Details:  details,
	})
}

// ReportBusinessIncident records a domain-rule failure surfaced by the
// application itself.
func (s *Store) ReportBusinessIncident(ctx context.Context, message string, details *string) (string, error) {
	return s.AddIncident(ctx, models.IncidentInput{
		Type:     models.IncidentTypeBusiness,
		Severity: models.SeverityError,
		Message:  message,
		Details:  details,
	})
}

// ReportNetworkIncident records a connectivity failure.
func (s *Store) ReportNetworkIncident(ctx context.Context, message string, endpoint *string) (string, error) {
	return s.AddIncident(ctx, models.IncidentInput{
		Type:     models.IncidentTypeNetwork,
		Severity: models.SeverityError,
		Message:  message,
		Endpoint: endpoint,
	})
}

// RemoveIncident deletes the named incident; unknown ids are ignored.
func (s *Store) RemoveIncident(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, incident := range s.incidents {
		if incident.ID == id {
			s.incidents = append(s.incidents[:i], s.incidents[i+1:]...)
			return
		}
	}
}

// ClearIncidents empties the registry and hides the panel.
func (s *Store) ClearIncidents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = nil
	s.panelVisible = false
}

// AcknowledgeIncident flags the incident as acknowledged without removing it.
func (s *Store) AcknowledgeIncident(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if incident := s.findLocked(id); incident != nil {
		incident.IsAcknowledged = true
	}
}

// ToggleIncidentExpanded flips the incident's expanded flag.
func (s *Store) ToggleIncidentExpanded(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if incident := s.findLocked(id); incident != nil {
		incident.IsExpanded = !incident.IsExpanded
	}
}

// AddGuardianAction appends an audit entry to the named incident's action
// log. It is a no-op returning false when the incident no longer exists.
func (s *Store) AddGuardianAction(incidentID string, input models.ActionInput) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	incident := s.findLocked(incidentID)
	if incident == nil {
		return false
	}
	incident.GuardianActions = append(incident.GuardianActions, models.ActionLogEntry{
		ID:          uuid.NewString(),
		ActionType:  input.ActionType,
		Description: input.Description,
		Timestamp:   time.Now().UTC(),
		Success:     input.Success,
		Result:      input.Result,
	})
	return true
}

// MarkSentToBackend idempotently sets the sent flag; it never reverts.
func (s *Store) MarkSentToBackend(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if incident := s.findLocked(id); incident != nil {
		incident.IsSentToBackend = true
	}
}

// SetAutoCaptureScreenshot toggles capture for future AddIncident calls.
func (s *Store) SetAutoCaptureScreenshot(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoCapture = enabled
}

// AutoCaptureEnabled reports whether new incidents attempt a capture.
func (s *Store) AutoCaptureEnabled() bool {
	return s.autoCaptureEnabled()
}

func (s *Store) autoCaptureEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoCapture
}

// ShowPanel forces the panel visible.
func (s *Store) ShowPanel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelVisible = true
}

// HidePanel hides the panel without touching incidents.
func (s *Store) HidePanel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelVisible = false
}

// CollapsePanel shrinks the panel to its summary bar.
func (s *Store) CollapsePanel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelCollapsed = true
}

// ExpandPanel restores the full panel.
func (s *Store) ExpandPanel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelCollapsed = false
}

// PanelState returns the two panel flags.
func (s *Store) PanelState() (visible, collapsed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panelVisible, s.panelCollapsed
}

// Incidents returns a copy of the registry in insertion order.
func (s *Store) Incidents() []models.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Incident, 0, len(s.incidents))
	for _, incident := range s.incidents {
		out = append(out, incident.Clone())
	}
	return out
}

// Incident returns a copy of one incident by id.
func (s *Store) Incident(id string) (models.Incident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if incident := s.findLocked(id); incident != nil {
		return incident.Clone(), true
	}
	return models.Incident{}, false
}

// Count returns the number of recorded incidents.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.incidents)
}

func (s *Store) findLocked(id string) *models.Incident {
	for _, incident := range s.incidents {
		if incident.ID == id {
			return incident
		}
	}
	return nil
}
