package middleware

import (
	"context"
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

func gateConfig() config.Config {
	return config.Config{
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
		AlertMinSeverity:  "high",
	}
}

func setupGateRouter(t *testing.T) (*gin.Engine, *reputation.Store) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := gateConfig()
	kvs := kv.NewMemoryStore()
	counters := abuse.New(kvs, cfg)
	rep := reputation.New(db, kvs, cfg)
	profiles := behavior.NewProfileService(db, cfg)
	recorder := pipeline.NewRecorder(db, profiles)
	t.Cleanup(recorder.Close)

	engine := pipeline.NewEngine(
		detect.NewDetector(),
		ddos.New(counters, cfg),
		threat.New(counters, rep, cfg),
		behavior.NewDetector(profiles, rep, cfg),
		rep,
		counters,
		recorder,
		alert.New("", models.SeverityHigh),
		cfg,
	)

	router := gin.New()
	router.Use(Gate(engine, GateConfig{
		EssentialPaths: map[string]bool{"/healthz": true},
	}))
	router.GET("/search", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router, rep
}

func gateGet(router *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGate_CleanRequestPassesThrough(t *testing.T) {
	router, _ := setupGateRouter(t)

	w := gateGet(router, "/search?q=wireless+mouse")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestGate_InjectionInQueryBlocked(t *testing.T) {
	router, _ := setupGateRouter(t)

	w := gateGet(router, "/search?q=%27%20OR%20%271%27%3D%271")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "access denied")
}

func TestGate_XSSInQueryChallenged(t *testing.T) {
	router, _ := setupGateRouter(t)

	w := gateGet(router, "/search?q=%3Cscript%3Ealert(1)%3C%2Fscript%3E")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "challenge")
}

func TestGate_BlockedIPRejected(t *testing.T) {
	router, rep := setupGateRouter(t)

	// httptest requests arrive from 192.0.2.1.
	require.NoError(t, rep.Blacklist(context.Background(), "192.0.2.1", "abuse"))

	w := gateGet(router, "/search?q=anything")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGate_PathTraversalInReferer(t *testing.T) {
	router, _ := setupGateRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Referer", "https://example.com/../../etc/passwd")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// Path traversal is a high-severity family: challenged, not blocked.
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "challenge")
}
