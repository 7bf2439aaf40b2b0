// Package collector delivers sanitized incident payloads to the backend
// collector. Delivery is best-effort and fire-and-forget: one attempt, no
// retry queue, failures are dropped silently.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vantora/guardian/internal/metrics"
	"github.com/vantora/guardian/internal/models"
	"github.com/vantora/guardian/internal/privacy"
	"github.com/vantora/guardian/internal/sanitize"
	"github.com/vantora/guardian/internal/utils"
)

const (
	// maxStackTraceChars bounds the sanitized stack prefix that leaves the
	// device.
	maxStackTraceChars = 4000

	// maxScreenshotChars caps the inlined screenshot payload to bound
	// transmission cost.
	maxScreenshotChars = 500_000
)

// SessionSource exposes the live credentials a submission requires.
type SessionSource interface {
	AccessToken() string
	TenantID() (string, bool)
}

// Client submits incidents to the collector endpoint.
type Client struct {
	baseURL       string
	incidentsPath string
	httpClient    *http.Client
	session       SessionSource
	hasher        *privacy.Hasher
	latencies     *utils.LatencyTracker
	logger        *slog.Logger
}

// NewClient constructs a collector client. hasher may be nil to use the
// default SHA3-backed hasher.
func NewClient(baseURL, incidentsPath string, timeout time.Duration, session SessionSource, hasher *privacy.Hasher, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if hasher == nil {
		hasher = privacy.NewHasher(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		incidentsPath: incidentsPath,
		httpClient:    &http.Client{Timeout: timeout},
		session:       session,
		hasher:        hasher,
		latencies:     utils.NewLatencyTracker(1024),
		logger:        logger,
	}
}

// Latencies exposes recent submission latencies for the status endpoint.
func (c *Client) Latencies() *utils.LatencyTracker {
	return c.latencies
}

// incidentPayload is the outbound wire shape. The raw user id never appears;
// only its privacy hash does.
type incidentPayload struct {
	Type              models.IncidentType `json:"type"`
	Severity          models.Severity     `json:"severity"`
	UserIDHash        *string             `json:"user_id_hash,omitempty"`
	Page              string              `json:"page"`
	Route             string              `json:"route"`
	Endpoint          *string             `json:"endpoint,omitempty"`
	Method            *string             `json:"method,omitempty"`
	HTTPStatus        *int                `json:"http_status,omitempty"`
	Message           string              `json:"message"`
	Details           *string             `json:"details,omitempty"`
	StackTrace        *string             `json:"stack_trace,omitempty"`
	ScreenshotData    *string             `json:"screenshot_data,omitempty"`
	FrontendTimestamp time.Time           `json:"frontend_timestamp"`
}

// Submit attempts a single delivery and reports whether the collector
// accepted it. It never panics and never blocks beyond the client timeout.
// Without a live session token and tenant id it is a no-op returning false.
func (c *Client) Submit(ctx context.Context, incident *models.Incident) bool {
	if c == nil || incident == nil {
		return false
	}

	token := c.session.AccessToken()
	tenantID, ok := c.session.TenantID()
	if token == "" || !ok {
		c.logger.Debug("skipping incident submission without live session",
			slog.String("incident_id", incident.ID))
		metrics.ObserveSubmission(false)
		return false
	}

	payload := c.buildPayload(incident)
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("failed to encode incident payload", slog.Any("error", err))
		metrics.ObserveSubmission(false)
		return false
	}

	endpoint := c.resolveEndpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("failed to build submission request", slog.Any("error", err))
		metrics.ObserveSubmission(false)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Tenant-ID", tenantID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.latencies.Observe(time.Since(start))
	if err != nil {
		c.logger.Debug("incident submission failed", slog.Any("error", err))
		metrics.ObserveSubmission(false)
		return false
	}
	defer resp.Body.Close()

	delivered := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !delivered {
		c.logger.Debug("collector rejected incident",
			slog.String("incident_id", incident.ID),
			slog.Int("status", resp.StatusCode))
	}
	metrics.ObserveSubmission(delivered)
	return delivered
}

func (c *Client) buildPayload(incident *models.Incident) incidentPayload {
	var userIDHash *string
	if incident.UserID != nil && *incident.UserID != "" {
		hashed := c.hasher.HashIdentifier(*incident.UserID)
		userIDHash = &hashed
	}

	stack := sanitize.SanitizePtr(incident.StackTrace)
	if stack != nil && len(*stack) > maxStackTraceChars {
		truncated := (*stack)[:maxStackTraceChars]
		stack = &truncated
	}

	screenshot := incident.ScreenshotData
	if screenshot != nil && len(*screenshot) > maxScreenshotChars {
		capped := (*screenshot)[:maxScreenshotChars]
		screenshot = &capped
	}

	return incidentPayload{
		Type:              incident.Type,
		Severity:          incident.Severity,
		UserIDHash:        userIDHash,
		Page:              incident.Page,
		Route:             incident.Route,
		Endpoint:          incident.Endpoint,
		Method:            incident.Method,
		HTTPStatus:        incident.HTTPStatus,
		Message:           sanitize.Sanitize(incident.Message),
		Details:           sanitize.SanitizePtr(incident.Details),
		StackTrace:        stack,
		ScreenshotData:    screenshot,
		FrontendTimestamp: incident.Timestamp,
	}
}

func (c *Client) resolveEndpoint() string {
	cleaned := "/" + strings.TrimLeft(c.incidentsPath, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = strings.TrimRight(u.Path, "/") + cleaned
	return u.String()
}
