// Package dashboard serves the RTCMAS-IC web dashboard and its JSON API.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/rtcmas/internal/health"
	"github.com/jmerrifield20/rtcmas/internal/identity"
	"github.com/jmerrifield20/rtcmas/internal/incident"
	"github.com/jmerrifield20/rtcmas/internal/pipeline"
	"github.com/jmerrifield20/rtcmas/internal/telemetry"
	"github.com/jmerrifield20/rtcmas/internal/twin"
)

// Pipeline is the subset of *pipeline.Service the handlers need.
type Pipeline interface {
	Dashboard(ctx context.Context) (pipeline.Dashboard, error)
	Summary() pipeline.Summary
	Projection() []twin.Projection
	Incident(ctx context.Context, id int64) (pipeline.IncidentDetail, error)
	Ingest(ctx context.Context, e telemetry.Event) (*incident.Incident, error)
}

// Handler serves the dashboard page and the incident API.
type Handler struct {
	svc     Pipeline
	checker *health.Checker
	logger  *zap.Logger
}

// NewHandler creates a Handler. checker may be nil.
func NewHandler(svc Pipeline, checker *health.Checker, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, checker: checker, logger: logger}
}

// Index handles GET /: the HTML dashboard.
func (h *Handler) Index(c *gin.Context) {
	data, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Error("load dashboard", zap.Error(err))
		c.String(http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	c.HTML(http.StatusOK, "dashboard", data)
}

// Incidents handles GET /api/incidents.
func (h *Handler) Incidents(c *gin.Context) {
	data, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Error("load dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load incidents"})
		return
	}
	c.JSON(http.StatusOK, data)
}

// Incident handles GET /api/incidents/:id: the stored incident with its
// ledger block.
func (h *Handler) Incident(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return
	}

	detail, err := h.svc.Incident(c.Request.Context(), id)
	if errors.Is(err, incident.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	if err != nil {
		h.logger.Error("load incident", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load incident"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Projection handles GET /api/projection.
func (h *Handler) Projection(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Projection())
}

// Summary handles GET /api/summary.
func (h *Handler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Summary())
}

// Healthz handles GET /healthz. It answers 503 while any probe is degraded.
func (h *Handler) Healthz(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	report := h.checker.Report()
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// ingestRequest is the body of POST /api/v1/incidents.
type ingestRequest struct {
	Timestamp   string `json:"timestamp" binding:"required"`
	Source      string `json:"source" binding:"required"`
	IPAddress   string `json:"ip_address"`
	EventType   string `json:"event_type" binding:"required"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Region      string `json:"region"`
}

// Ingest handles POST /api/v1/incidents: scores one event, records it in the
// ledger and returns the stored incident.
func (h *Handler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inc, err := h.svc.Ingest(c.Request.Context(), telemetry.Event{
		Timestamp:   req.Timestamp,
		Source:      req.Source,
		IPAddress:   req.IPAddress,
		EventType:   req.EventType,
		Severity:    req.Severity,
		Description: req.Description,
		Region:      req.Region,
	})
	if err != nil {
		h.logger.Error("ingest incident", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record incident"})
		return
	}

	if op := identity.OperatorFromCtx(c); op != nil {
		h.logger.Info("incident submitted",
			zap.String("operator", op.Operator),
			zap.Int64("id", inc.ID),
			zap.Int("ledger_index", inc.LedgerIndex),
		)
	}
	c.JSON(http.StatusCreated, inc)
}
