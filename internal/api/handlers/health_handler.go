package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/kv"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/version"
)

// HealthHandler reports liveness plus the reachability of the shared store.
type HealthHandler struct {
	kvs kv.Store
}

// NewHealthHandler returns a health handler over the shared store.
func NewHealthHandler(kvs kv.Store) *HealthHandler {
	return &HealthHandler{kvs: kvs}
}

// Health answers 200 whenever the process is up; the kv field tells callers
// whether rate signals are currently degraded.
func (h *HealthHandler) Health(c *gin.Context) {
	kvStatus := "ok"
	if err := h.kvs.Ping(c.Request.Context()); err != nil {
		kvStatus = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"kv":      kvStatus,
		"version": version.Full(),
	})
}
