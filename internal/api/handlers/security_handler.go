package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/api/middleware"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/pipeline"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/reputation"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/threat"
)

// SecurityHandler exposes the engine's records and manual block controls to
// the ops UI. Mutations run through the pipeline so the single-writer rule
// holds for operator actions too.
type SecurityHandler struct {
	db     *gorm.DB
	engine *pipeline.Engine
	rep    *reputation.Store
	scorer *threat.Scorer
}

// NewSecurityHandler returns a handler over the given services.
func NewSecurityHandler(db *gorm.DB, engine *pipeline.Engine, rep *reputation.Store, scorer *threat.Scorer) *SecurityHandler {
	return &SecurityHandler{db: db, engine: engine, rep: rep, scorer: scorer}
}

func limitParam(c *gin.Context) int {
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 && n <= 1000 {
		return n
	}
	return 100
}

// ListIntrusions returns recent intrusion attempts, newest first.
func (h *SecurityHandler) ListIntrusions(c *gin.Context) {
	q := h.db.Order("created_at desc").Limit(limitParam(c))
	if ip := c.Query("ip"); ip != "" {
		q = q.Where("source_ip = ?", ip)
	}
	var attempts []models.IntrusionAttempt
	if err := q.Find(&attempts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list intrusion attempts"})
		return
	}
	c.JSON(http.StatusOK, attempts)
}

// ListAnomalies returns recent anomaly detections, newest first.
func (h *SecurityHandler) ListAnomalies(c *gin.Context) {
	q := h.db.Order("detected_at desc").Limit(limitParam(c))
	if accountID := c.Query("account_id"); accountID != "" {
		q = q.Where("account_id = ?", accountID)
	}
	var detections []models.AnomalyDetection
	if err := q.Find(&detections).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list anomaly detections"})
		return
	}
	c.JSON(http.StatusOK, detections)
}

// ListIncidents returns incidents, optionally filtered by status.
func (h *SecurityHandler) ListIncidents(c *gin.Context) {
	q := h.db.Order("created_at desc").Limit(limitParam(c))
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var incidents []models.SecurityIncident
	if err := q.Find(&incidents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list incidents"})
		return
	}
	c.JSON(http.StatusOK, incidents)
}

type incidentStatusRequest struct {
	Status models.IncidentStatus `json:"status" binding:"required"`
}

// UpdateIncidentStatus applies an ops status transition to an incident.
func (h *SecurityHandler) UpdateIncidentStatus(c *gin.Context) {
	var req incidentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var incident models.SecurityIncident
	if err := h.db.Where("uuid = ?", c.Param("uuid")).First(&incident).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load incident"})
		return
	}

	if !incident.CanTransition(req.Status) {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
		return
	}

	incident.Status = req.Status
	if req.Status == models.IncidentResolved || req.Status == models.IncidentIgnored {
		now := time.Now()
		incident.ResolvedAt = &now
	}
	if err := h.db.Save(&incident).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update incident"})
		return
	}
	c.JSON(http.StatusOK, incident)
}

// ListAudit returns recent audit entries, newest first.
func (h *SecurityHandler) ListAudit(c *gin.Context) {
	var entries []models.AuditEntry
	if err := h.db.Order("created_at desc").Limit(limitParam(c)).Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit entries"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ListBlacklist returns all permanent blacklist entries.
func (h *SecurityHandler) ListBlacklist(c *gin.Context) {
	entries, err := h.rep.ListBlacklist(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list blacklist"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetBlockStatus reports the block state of one IP, including the transient
// entry when present.
func (h *SecurityHandler) GetBlockStatus(c *gin.Context) {
	ip := c.Param("ip")
	ctx := c.Request.Context()

	blocked, _ := h.rep.IsBlocked(ctx, ip)
	listed, _ := h.rep.IsBlacklisted(ctx, ip)
	entry, _ := h.rep.TransientEntry(ctx, ip)

	c.JSON(http.StatusOK, gin.H{
		"ip":          ip,
		"blocked":     blocked,
		"blacklisted": listed,
		"transient":   entry,
	})
}

// GetThreatScore computes the current threat score for an IP.
func (h *SecurityHandler) GetThreatScore(c *gin.Context) {
	score, err := h.scorer.Evaluate(c.Request.Context(), c.Param("ip"))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"score": score, "partial": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"score": score})
}

type manualBlockRequest struct {
	IP              string `json:"ip" binding:"required"`
	Reason          string `json:"reason" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds"` // zero blacklists permanently
}

// CreateBlock applies a manual block or a permanent blacklist entry.
func (h *SecurityHandler) CreateBlock(c *gin.Context) {
	var req manualBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := middleware.OpsUser(c)
	duration := time.Duration(req.DurationSeconds) * time.Second
	if err := h.engine.ManualBlock(c.Request.Context(), actor, req.IP, req.Reason, duration); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply block"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ip": req.IP, "blocked": true})
}

// DeleteBlock lifts both transient and permanent blocks for an IP.
func (h *SecurityHandler) DeleteBlock(c *gin.Context) {
	ip := c.Param("ip")
	if err := h.engine.ManualUnblock(c.Request.Context(), middleware.OpsUser(c), ip); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove block"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ip": ip, "blocked": false})
}

type evaluateRequest struct {
	SourceIP      string            `json:"source_ip" binding:"required"`
	AccountID     string            `json:"account_id"`
	UserAgent     string            `json:"user_agent"`
	Endpoint      string            `json:"endpoint" binding:"required"`
	Essential     bool              `json:"essential"`
	AuthSensitive bool              `json:"auth_sensitive"`
	LoginEvent    bool              `json:"login_event"`
	Inputs        map[string]string `json:"inputs"`
}

// Evaluate runs one normalized request record through the decision pipeline
// and returns the verdict; this is the contract for host-application
// callers running the engine as a sidecar.
func (h *SecurityHandler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome := h.engine.Evaluate(c.Request.Context(), pipeline.Request{
		SourceIP:      req.SourceIP,
		AccountID:     req.AccountID,
		UserAgent:     req.UserAgent,
		Endpoint:      req.Endpoint,
		Essential:     req.Essential,
		AuthSensitive: req.AuthSensitive,
		LoginEvent:    req.LoginEvent,
		Inputs:        req.Inputs,
	})
	c.JSON(http.StatusOK, outcome)
}

type failedAuthRequest struct {
	SourceIP string `json:"source_ip" binding:"required"`
}

// ReportFailedAuth lets the host application feed failed-authentication
// events into the abuse counters.
func (h *SecurityHandler) ReportFailedAuth(c *gin.Context) {
	var req failedAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.engine.ReportFailedAuth(c.Request.Context(), req.SourceIP)
	c.JSON(http.StatusAccepted, gin.H{"recorded": true})
}
