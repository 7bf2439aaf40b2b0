// Package api exposes the guardian panel over REST. Everything the embedded
// panel UI can do — inspect incidents, trigger remedial actions, toggle the
// panel — is a route here, authenticated with the guarded session's own
// bearer token.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vantora/guardian/internal/actions"
	"github.com/vantora/guardian/internal/models"
	"github.com/vantora/guardian/internal/store"
	"github.com/vantora/guardian/internal/utils"
)

// Handler carries the collaborators behind the panel routes.
type Handler struct {
	store     *store.Store
	actions   *actions.Registry
	latencies *utils.LatencyTracker
	logger    *slog.Logger
}

// NewHandler constructs the panel handler. latencies may be nil when no
// collector client is wired; the status route then reports zeros.
func NewHandler(s *store.Store, registry *actions.Registry, latencies *utils.LatencyTracker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: s, actions: registry, latencies: latencies, logger: logger}
}

// NewRouter assembles the gin engine: health unauthenticated, everything
// else behind the session-token check. Extra middleware (panic recovery)
// is installed ahead of the routes.
func NewRouter(h *Handler, tokens TokenSource, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	for _, mw := range extra {
		router.Use(mw)
	}

	router.GET("/healthz", h.Health)

	guarded := router.Group("/api/v1/guardian", AuthMiddleware(tokens))
	{
		guarded.GET("/status", h.Status)
		guarded.GET("/incidents", h.ListIncidents)
		guarded.POST("/incidents", h.ReportIncident)
		guarded.DELETE("/incidents", h.ClearIncidents)
		guarded.GET("/incidents/:id", h.GetIncident)
		guarded.DELETE("/incidents/:id", h.RemoveIncident)
		guarded.POST("/incidents/:id/acknowledge", h.AcknowledgeIncident)
		guarded.POST("/incidents/:id/expand", h.ToggleExpanded)
		guarded.POST("/incidents/:id/actions", h.ExecuteAction)
		guarded.GET("/panel", h.PanelState)
		guarded.POST("/panel/show", h.ShowPanel)
		guarded.POST("/panel/hide", h.HidePanel)
		guarded.POST("/panel/collapse", h.CollapsePanel)
		guarded.POST("/panel/expand", h.ExpandPanel)
		guarded.PUT("/settings/auto-capture", h.SetAutoCapture)
	}

	return router
}

// Health answers liveness probes.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type statusResponse struct {
	IncidentCount     int                   `json:"incident_count"`
	PanelVisible      bool                  `json:"panel_visible"`
	PanelCollapsed    bool                  `json:"panel_collapsed"`
	AutoCapture       bool                  `json:"auto_capture"`
	SubmissionLatency utils.LatencySnapshot `json:"submission_latency"`
}

// Status summarises guardian state for the panel header.
func (h *Handler) Status(c *gin.Context) {
	visible, collapsed := h.store.PanelState()
	resp := statusResponse{
		IncidentCount:  h.store.Count(),
		PanelVisible:   visible,
		PanelCollapsed: collapsed,
		AutoCapture:    h.store.AutoCaptureEnabled(),
	}
	if h.latencies != nil {
		resp.SubmissionLatency = h.latencies.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// ListIncidents returns all incidents in insertion order.
func (h *Handler) ListIncidents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"incidents": h.store.Incidents(),
	})
}

// GetIncident returns one incident by id.
func (h *Handler) GetIncident(c *gin.Context) {
	incident, ok := h.store.Incident(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "incident not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "incident": incident})
}

type reportRequest struct {
	Type           models.IncidentType `json:"type"`
	Severity       models.Severity     `json:"severity"`
	Message        string              `json:"message"`
	Details        *string             `json:"details"`
	Endpoint       *string             `json:"endpoint"`
	Method         *string             `json:"method"`
	HTTPStatus     *int                `json:"http_status"`
	StackTrace     *string             `json:"stack_trace"`
	ScreenshotData *string             `json:"screenshot_data"`
}

// ReportIncident records an incident supplied by the caller, for failure
// sources the agent cannot observe itself.
func (h *Handler) ReportIncident(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	id, err := h.store.AddIncident(c.Request.Context(), models.IncidentInput{
		Type:           req.Type,
		Severity:       req.Severity,
		Message:        req.Message,
		Details:        req.Details,
		Endpoint:       req.Endpoint,
		Method:         req.Method,
		HTTPStatus:     req.HTTPStatus,
		StackTrace:     req.StackTrace,
		ScreenshotData: req.ScreenshotData,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "incident_id": id})
}

// RemoveIncident deletes one incident; unknown ids succeed silently.
func (h *Handler) RemoveIncident(c *gin.Context) {
	h.store.RemoveIncident(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ClearIncidents empties the registry and hides the panel.
func (h *Handler) ClearIncidents(c *gin.Context) {
	h.store.ClearIncidents()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// AcknowledgeIncident marks an incident as seen by the operator.
func (h *Handler) AcknowledgeIncident(c *gin.Context) {
	h.store.AcknowledgeIncident(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ToggleExpanded flips the incident's expanded flag.
func (h *Handler) ToggleExpanded(c *gin.Context) {
	h.store.ToggleIncidentExpanded(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type actionRequest struct {
	Action models.ActionType `json:"action"`
}

// ExecuteAction runs a catalogue action against the incident. Only unknown
// action types fail the request; action outcomes live in the audit trail.
func (h *Handler) ExecuteAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if err := h.actions.Execute(c.Request.Context(), c.Param("id"), req.Action); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// PanelState returns the two panel flags.
func (h *Handler) PanelState(c *gin.Context) {
	visible, collapsed := h.store.PanelState()
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"visible":   visible,
		"collapsed": collapsed,
	})
}

// ShowPanel forces the panel visible.
func (h *Handler) ShowPanel(c *gin.Context) {
	h.store.ShowPanel()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// HidePanel hides the panel.
func (h *Handler) HidePanel(c *gin.Context) {
	h.store.HidePanel()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// CollapsePanel shrinks the panel to its summary bar.
func (h *Handler) CollapsePanel(c *gin.Context) {
	h.store.CollapsePanel()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ExpandPanel restores the full panel.
func (h *Handler) ExpandPanel(c *gin.Context) {
	h.store.ExpandPanel()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type autoCaptureRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetAutoCapture toggles screenshot capture for future incidents.
func (h *Handler) SetAutoCapture(c *gin.Context) {
	var req autoCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	h.store.SetAutoCaptureScreenshot(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"status": "success", "enabled": *req.Enabled})
}
