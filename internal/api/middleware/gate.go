package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urkovsemen39-cell/smartprice-sub001/internal/pipeline"
)

// GateConfig controls how inbound requests are mapped to evaluations.
type GateConfig struct {
	// EssentialPaths keep answering even in emergency mode.
	EssentialPaths map[string]bool
	// AuthSensitivePaths run the threat scorer.
	AuthSensitivePaths map[string]bool
}

// Gate evaluates every inbound request through the decision pipeline before
// it reaches a handler. Query parameters and a few attack-bearing headers
// are passed as the untrusted input fields.
func Gate(engine *pipeline.Engine, cfg GateConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		inputs := map[string]string{"path": c.Request.URL.Path}
		for key, vals := range c.Request.URL.Query() {
			if len(vals) > 0 {
				inputs["query:"+key] = vals[0]
			}
		}
		if ref := c.GetHeader("Referer"); ref != "" {
			inputs["header:referer"] = ref
		}

		outcome := engine.Evaluate(c.Request.Context(), pipeline.Request{
			SourceIP:      c.ClientIP(),
			UserAgent:     c.Request.UserAgent(),
			Endpoint:      path,
			Essential:     cfg.EssentialPaths[path],
			AuthSensitive: cfg.AuthSensitivePaths[path],
			Inputs:        inputs,
		})

		switch outcome.Verdict {
		case pipeline.VerdictBlock:
			status := outcome.StatusHint
			if status == 0 {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"error": outcome.Reason})
		case pipeline.VerdictChallenge:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     outcome.Reason,
				"challenge": true,
			})
		default:
			c.Next()
		}
	}
}
