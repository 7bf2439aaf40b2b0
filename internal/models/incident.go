package models

import "time"

// IncidentType classifies the origin of a recorded failure.
type IncidentType string

const (
	IncidentTypeAuth       IncidentType = "auth"
	IncidentTypeAPI        IncidentType = "api"
	IncidentTypeBusiness   IncidentType = "business"
	IncidentTypeRuntime    IncidentType = "runtime-error"
	IncidentTypeNetwork    IncidentType = "network"
	IncidentTypeValidation IncidentType = "validation"
)

// Severity drives panel prominence and escalation.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ActionType enumerates the closed catalogue of remedial actions.
type ActionType string

const (
	ActionForceLogout  ActionType = "force_logout"
	ActionRefreshToken ActionType = "refresh_token"
	ActionReloadPage   ActionType = "reload_page"
	ActionNavigateBack ActionType = "navigate_back"
	ActionNavigateHome ActionType = "navigate_home"
)

// ActionLogEntry records one remedial-action attempt against an incident.
// Entries are append-only; a pending entry carries a nil Result.
type ActionLogEntry struct {
	ID          string     `json:"id"`
	ActionType  ActionType `json:"action_type"`
	Description string     `json:"description"`
	Timestamp   time.Time  `json:"timestamp"`
	Success     bool       `json:"success"`
	Result      *string    `json:"result"`
}

// Incident is the unit of record: a captured failure with diagnostic
// context, an optional screenshot, and an audit trail of remedial attempts.
type Incident struct {
	ID         string       `json:"id"`
	Type       IncidentType `json:"type"`
	Severity   Severity     `json:"severity"`
	TenantID   *string      `json:"tenant_id"`
	UserID     *string      `json:"user_id"`
	Page       string       `json:"page"`
	Route      string       `json:"route"`
	Endpoint   *string      `json:"endpoint,omitempty"`
	Method     *string      `json:"method,omitempty"`
	HTTPStatus *int         `json:"http_status,omitempty"`
	Message    string       `json:"message"`
	Details    *string      `json:"details,omitempty"`
	StackTrace *string      `json:"stack_trace,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`

	// ScreenshotData holds an inlined, compressed image encoding. Capture is
	// best-effort, so it is frequently nil.
	ScreenshotData *string `json:"screenshot_data,omitempty"`

	GuardianActions []ActionLogEntry `json:"guardian_actions"`

	IsExpanded      bool `json:"is_expanded"`
	IsAcknowledged  bool `json:"is_acknowledged"`
	IsSentToBackend bool `json:"is_sent_to_backend"`
}

// Clone returns a copy safe to hand outside the store. The action log slice
// is copied so callers cannot mutate the stored trail.
func (i *Incident) Clone() Incident {
	out := *i
	if len(i.GuardianActions) > 0 {
		out.GuardianActions = append([]ActionLogEntry(nil), i.GuardianActions...)
	}
	return out
}

// IncidentInput is the caller-supplied portion of a new incident. Identity
// and location context is read from the session by the store, not supplied
// here.
type IncidentInput struct {
	Type           IncidentType `json:"type"`
	Severity       Severity     `json:"severity"`
	Message        string       `json:"message"`
	Details        *string      `json:"details,omitempty"`
	StackTrace     *string      `json:"stack_trace,omitempty"`
	Endpoint       *string      `json:"endpoint,omitempty"`
	Method         *string      `json:"method,omitempty"`
	HTTPStatus     *int         `json:"http_status,omitempty"`
	ScreenshotData *string      `json:"screenshot_data,omitempty"`
}

// ActionInput describes one audit entry to append to an incident.
type ActionInput struct {
	ActionType  ActionType
	Description string
	Success     bool
	Result      *string
}

// ClassifyHTTPStatus maps an API failure status onto incident type and
// severity. Authentication failures are reported as auth incidents so the
// panel offers session remedies; server-side failures escalate to critical.
func ClassifyHTTPStatus(status int) (IncidentType, Severity) {
	switch {
	case status == 401 || status == 403:
		return IncidentTypeAuth, SeverityWarning
	case status >= 500:
		return IncidentTypeAPI, SeverityCritical
	default:
		return IncidentTypeAPI, SeverityError
	}
}

// KnownActionTypes lists the catalogue in display order.
func KnownActionTypes() []ActionType {
	return []ActionType{
		ActionForceLogout,
		ActionRefreshToken,
		ActionReloadPage,
		ActionNavigateBack,
		ActionNavigateHome,
	}
}

// StringPtr is a small helper for optional text fields.
func StringPtr(s string) *string { return &s }

// IntPtr is a small helper for optional numeric fields.
func IntPtr(i int) *int { return &i }
