package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/api/middleware"
	"github.com/urkovsemen39-cell/smartprice-sub001/internal/config"
)

// AuthHandler exchanges the shared ops token for a short-lived JWT used on
// the mutating admin routes.
type AuthHandler struct {
	cfg config.Config
}

// NewAuthHandler returns an auth handler bound to the runtime config.
func NewAuthHandler(cfg config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type opsLoginRequest struct {
	User  string `json:"user" binding:"required"`
	Token string `json:"token" binding:"required"`
}

// Login verifies the ops token against its stored bcrypt hash and issues a
// JWT. Disabled (404) when no hash is configured.
func (h *AuthHandler) Login(c *gin.Context) {
	if h.cfg.OpsTokenHash == "" || h.cfg.JWTSecret == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "ops login disabled"})
		return
	}

	var req opsLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.cfg.OpsTokenHash), []byte(req.Token)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	signed, err := middleware.IssueOpsToken(h.cfg.JWTSecret, req.User, h.cfg.JWTTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed})
}
