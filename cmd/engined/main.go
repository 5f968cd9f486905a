package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/abuse"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/alert"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/api/routes"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/behavior"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/database"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/ddos"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/detect"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/kv"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/logger"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/metrics"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/models"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/pipeline"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/reputation"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/server"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/threat"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log().Fatalf("load config: %v", err)
	}

	// Log to stdout and a rotated file.
	logDir := filepath.Join(filepath.Dir(cfg.DatabasePath), "logs")
	_ = os.MkdirAll(logDir, 0o755)
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "sentinel.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))
	logger.Log().Infof("starting %s %s", version.Name, version.Full())

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log().Fatalf("open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.Log().Fatalf("migrate database: %v", err)
	}

	var store kv.Store
	if cfg.RedisURL != "" {
		redisStore, err := kv.NewRedisStore(cfg.RedisURL, cfg.KVTimeout)
		if err != nil {
			logger.Log().Fatalf("connect redis: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		logger.Log().Warn("no redis configured, using in-process counters (single node only)")
		store = kv.NewMemoryStore()
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	counters := abuse.New(store, cfg)
	rep := reputation.New(db, store, cfg)
	scorer := threat.New(counters, rep, cfg)
	profiles := behavior.NewProfileService(db, cfg)
	recorder := pipeline.NewRecorder(db, profiles)
	defer recorder.Close()

	engine := pipeline.NewEngine(
		detect.NewDetector(),
		ddos.New(counters, cfg),
		scorer,
		behavior.NewDetector(profiles, rep, cfg),
		rep,
		counters,
		recorder,
		alert.New(cfg.AlertURL, models.Severity(cfg.AlertMinSeverity)),
		cfg,
	)

	// Out-of-band batch jobs: profile recompute and retention purge.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RecomputeSpec, func() {
		if err := profiles.Recompute(context.Background()); err != nil {
			logger.Log().Errorf("profile recompute: %v", err)
		}
	}); err != nil {
		logger.Log().Fatalf("schedule recompute: %v", err)
	}
	if _, err := scheduler.AddFunc(cfg.PurgeSpec, func() {
		if err := recorder.PurgeExpired(context.Background(), cfg.RetentionDays); err != nil {
			logger.Log().Errorf("retention purge: %v", err)
		}
	}); err != nil {
		logger.Log().Fatalf("schedule purge: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv, err := server.New(routes.Deps{
		DB:       db,
		KV:       store,
		Engine:   engine,
		Rep:      rep,
		Scorer:   scorer,
		Registry: registry,
		Cfg:      cfg,
	})
	if err != nil {
		logger.Log().Fatalf("build server: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           srv.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log().Infof("listening on :%s", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log().Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Log().Errorf("shutdown: %v", err)
	}
}
