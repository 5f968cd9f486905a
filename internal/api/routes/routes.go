package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/api/handlers"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/api/middleware"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/kv"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/pipeline"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/reputation"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/threat"
)

// Deps carries the services the routes need.
type Deps struct {
	DB       *gorm.DB
	KV       kv.Store
	Engine   *pipeline.Engine
	Rep      *reputation.Store
	Scorer   *threat.Scorer
	Registry *prometheus.Registry
	Cfg      config.Config
}

// Register wires up the ops API under /api/v1 plus health and metrics.
func Register(router *gin.Engine, d Deps) {
	health := handlers.NewHealthHandler(d.KV)
	auth := handlers.NewAuthHandler(d.Cfg)
	security := handlers.NewSecurityHandler(d.DB, d.Engine, d.Rep, d.Scorer)

	router.GET("/healthz", health.Health)
	if d.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", auth.Login)

		// Decision contract for host-application callers.
		v1.POST("/evaluate", security.Evaluate)
		v1.POST("/events/failed-auth", security.ReportFailedAuth)

		// Read surface for the ops UI.
		v1.GET("/intrusions", security.ListIntrusions)
		v1.GET("/anomalies", security.ListAnomalies)
		v1.GET("/incidents", security.ListIncidents)
		v1.GET("/audit", security.ListAudit)
		v1.GET("/blacklist", security.ListBlacklist)
		v1.GET("/blocks/:ip", security.GetBlockStatus)
		v1.GET("/threat/:ip", security.GetThreatScore)

		// Mutations require an ops JWT.
		protected := v1.Group("", middleware.RequireOps(d.Cfg.JWTSecret))
		{
			protected.PUT("/incidents/:uuid/status", security.UpdateIncidentStatus)
			protected.POST("/blocks", security.CreateBlock)
			protected.DELETE("/blocks/:ip", security.DeleteBlock)
		}
	}
}
