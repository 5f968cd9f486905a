package server

import (
	"github.com/gin-gonic/gin"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/api/middleware"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/api/routes"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
)

// Server wraps the HTTP engine and shared dependencies for easier testing.
type Server struct {
	Engine *gin.Engine
	cfg    config.Config
}

// New wires up the HTTP router: request id, recovery, request logging, then
// the decision-pipeline gate in front of every route, then the ops API.
func New(deps routes.Deps) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	if deps.Cfg.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(deps.Cfg.Environment == "development"),
		middleware.RequestLogger(),
		middleware.Gate(deps.Engine, middleware.GateConfig{
			EssentialPaths: map[string]bool{
				"/healthz":                   true,
				"/metrics":                   true,
				"/api/v1/auth/login":         true,
				"/api/v1/evaluate":           true,
				"/api/v1/events/failed-auth": true,
			},
			AuthSensitivePaths: map[string]bool{
				"/api/v1/auth/login": true,
			},
		}),
	)

	routes.Register(router, deps)

	return &Server{Engine: router, cfg: deps.Cfg}, nil
}
