package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/abuse"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/alert"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/api/middleware"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/behavior"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/database"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/ddos"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/detect"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/kv"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/pipeline"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/reputation"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/threat"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func handlerConfig() config.Config {
	return config.Config{
		JWTSecret: "test-secret",
		JWTTTL:    time.Hour,

		BaseBlockDuration:       time.Hour,
		CriticalBlockMultiplier: 2,
		BlacklistWeight:         100,
		IntrusionWeight:         20,
		FailedAuthWeight:        5,
		FailedAuthMinCount:      5,
		ViolationWeight:         2,
		ViolationMinCount:       10,
		ThreatScoreThreshold:    100,

		FailedAuthWindow:         time.Hour,
		ViolationWindow:          time.Hour,
		IntrusionWindow:          time.Hour,
		CredentialStuffingWindow: 5 * time.Minute,
		RequestRateWindow:        time.Minute,
		RepeatOffenderWindow:     24 * time.Hour,

		PerIPRequestLimit:  1000,
		GlobalRequestLimit: 100000,
		EmergencyFactor:    0.5,
		EmergencyCooldown:  5 * time.Minute,
		GuardBlockDuration: 10 * time.Minute,

		RapidSessionFloor: 60 * time.Second,
		ProfileWindowDays: 90,
		FailOpenCounters:  true,
		AlertMinSeverity:  "high",
	}
}

func setupSecurityRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := handlerConfig()
	kvs := kv.NewMemoryStore()
	counters := abuse.New(kvs, cfg)
	rep := reputation.New(db, kvs, cfg)
	scorer := threat.New(counters, rep, cfg)
	profiles := behavior.NewProfileService(db, cfg)
	recorder := pipeline.NewRecorder(db, profiles)
	t.Cleanup(recorder.Close)

	engine := pipeline.NewEngine(
		detect.NewDetector(),
		ddos.New(counters, cfg),
		scorer,
		behavior.NewDetector(profiles, rep, cfg),
		rep,
		counters,
		recorder,
		alert.New("", models.SeverityHigh),
		cfg,
	)

	handler := NewSecurityHandler(db, engine, rep, scorer)

	router := gin.New()
	router.POST("/evaluate", handler.Evaluate)
	router.POST("/events/failed-auth", handler.ReportFailedAuth)
	router.GET("/intrusions", handler.ListIntrusions)
	router.GET("/anomalies", handler.ListAnomalies)
	router.GET("/incidents", handler.ListIncidents)
	router.GET("/audit", handler.ListAudit)
	router.GET("/blacklist", handler.ListBlacklist)
	router.GET("/blocks/:ip", handler.GetBlockStatus)
	router.GET("/threat/:ip", handler.GetThreatScore)

	protected := router.Group("", middleware.RequireOps(cfg.JWTSecret))
	protected.PUT("/incidents/:uuid/status", handler.UpdateIncidentStatus)
	protected.POST("/blocks", handler.CreateBlock)
	protected.DELETE("/blocks/:ip", handler.DeleteBlock)

	return router, db
}

func opsToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.IssueOpsToken("test-secret", "ops@example.com", time.Hour)
	require.NoError(t, err)
	return token
}

func doJSON(router *gin.Engine, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSecurityHandler_Evaluate_Allow(t *testing.T) {
	router, _ := setupSecurityRouter(t)

	body := []byte(`{"source_ip":"203.0.113.5","endpoint":"/search","inputs":{"q":"wireless mouse"}}`)
	w := doJSON(router, http.MethodPost, "/evaluate", "", body)

	assert.Equal(t, http.StatusOK, w.Code)
	var out pipeline.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, pipeline.VerdictAllow, out.Verdict)
}

func TestSecurityHandler_Evaluate_BlocksInjection(t *testing.T) {
	router, _ := setupSecurityRouter(t)

	body := []byte(`{"source_ip":"203.0.113.5","endpoint":"/login","inputs":{"username":"admin' OR '1'='1"}}`)
	w := doJSON(router, http.MethodPost, "/evaluate", "", body)

	assert.Equal(t, http.StatusOK, w.Code)
	var out pipeline.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, pipeline.VerdictBlock, out.Verdict)
	assert.Equal(t, 403, out.StatusHint)
	assert.Equal(t, "access denied", out.Reason)
}

func TestSecurityHandler_Evaluate_MissingFields(t *testing.T) {
	router, _ := setupSecurityRouter(t)

	w := doJSON(router, http.MethodPost, "/evaluate", "", []byte(`{"endpoint":"/x"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSecurityHandler_ReportFailedAuth(t *testing.T) {
	router, _ := setupSecurityRouter(t)

	w := doJSON(router, http.MethodPost, "/events/failed-auth", "", []byte(`{"source_ip":"203.0.113.5"}`))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(router, http.MethodPost, "/events/failed-auth", "", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSecurityHandler_ListIncidents_FilterByStatus(t *testing.T) {
	router, db := setupSecurityRouter(t)

	require.NoError(t, db.Create(&models.SecurityIncident{
		UUID: "inc-open", Type: "high_threat_score", Severity: models.SeverityHigh,
		Status: models.IncidentOpen, CreatedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&models.SecurityIncident{
		UUID: "inc-resolved", Type: "behavior_anomaly", Severity: models.SeverityCritical,
		Status: models.IncidentResolved, CreatedAt: time.Now(),
	}).Error)

	w := doJSON(router, http.MethodGet, "/incidents?status=open", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var incidents []models.SecurityIncident
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &incidents))
	require.Len(t, incidents, 1)
	assert.Equal(t, "inc-open", incidents[0].UUID)
}

func TestSecurityHandler_UpdateIncidentStatus_RequiresAuth(t *testing.T) {
	router, _ := setupSecurityRouter(t)

	body := []byte(`{"status":"investigating"}`)
	w := doJSON(router, http.MethodPut, "/incidents/inc-1/status", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPut, "/incidents/inc-1/status", "not-a-jwt", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSecurityHandler_UpdateIncidentStatus_Transitions(t *testing.T) {
	router, db := setupSecurityRouter(t)
	token := opsToken(t)

	require.NoError(t, db.Create(&models.SecurityIncident{
		UUID: "inc-1", Type: "high_threat_score", Severity: models.SeverityHigh,
		Status: models.IncidentOpen, CreatedAt: time.Now(),
	}).Error)

	w := doJSON(router, http.MethodPut, "/incidents/inc-1/status", token, []byte(`{"status":"investigating"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPut, "/incidents/inc-1/status", token, []byte(`{"status":"resolved"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	var incident models.SecurityIncident
	require.NoError(t, db.Where("uuid = ?", "inc-1").First(&incident).Error)
	assert.Equal(t, models.IncidentResolved, incident.Status)
	assert.NotNil(t, incident.ResolvedAt)

	// Resolved is terminal.
	w = doJSON(router, http.MethodPut, "/incidents/inc-1/status", token, []byte(`{"status":"open"}`))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSecurityHandler_UpdateIncidentStatus_NotFound(t *testing.T) {
	router, _ := setupSecurityRouter(t)

	w := doJSON(router, http.MethodPut, "/incidents/missing/status", opsToken(t), []byte(`{"status":"resolved"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSecurityHandler_ManualBlockLifecycle(t *testing.T) {
	router, _ := setupSecurityRouter(t)
	token := opsToken(t)

	// Permanent blacklist via zero duration.
	body := []byte(`{"ip":"203.0.113.5","reason":"abuse report","duration_seconds":0}`)
	w := doJSON(router, http.MethodPost, "/blocks", token, body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/blocks/203.0.113.5", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Blocked     bool `json:"blocked"`
		Blacklisted bool `json:"blacklisted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Blocked)
	assert.True(t, status.Blacklisted)

	w = doJSON(router, http.MethodDelete, "/blocks/203.0.113.5", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/blocks/203.0.113.5", "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Blocked)
	assert.False(t, status.Blacklisted)
}

func TestSecurityHandler_CreateBlock_RequiresAuth(t *testing.T) {
	router, _ := setupSecurityRouter(t)

	body := []byte(`{"ip":"203.0.113.5","reason":"abuse"}`)
	w := doJSON(router, http.MethodPost, "/blocks", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSecurityHandler_GetThreatScore(t *testing.T) {
	router, _ := setupSecurityRouter(t)

	w := doJSON(router, http.MethodGet, "/threat/203.0.113.5", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Score threat.Score `json:"score"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "203.0.113.5", resp.Score.IP)
	assert.Zero(t, resp.Score.Value)
	assert.False(t, resp.Score.Blocked)
}

func TestSecurityHandler_ListIntrusions_AfterDetection(t *testing.T) {
	router, db := setupSecurityRouter(t)

	require.NoError(t, db.Create(&models.IntrusionAttempt{
		UUID: "att-1", SourceIP: "203.0.113.5", Type: models.AttackSQLInjection,
		Severity: models.SeverityCritical, CreatedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&models.IntrusionAttempt{
		UUID: "att-2", SourceIP: "198.51.100.9", Type: models.AttackXSS,
		Severity: models.SeverityHigh, CreatedAt: time.Now(),
	}).Error)

	w := doJSON(router, http.MethodGet, "/intrusions?ip=203.0.113.5", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var attempts []models.IntrusionAttempt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &attempts))
	require.Len(t, attempts, 1)
	assert.Equal(t, "att-1", attempts[0].UUID)
}
