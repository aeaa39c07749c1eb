package paas

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradesetup/internal/config"
)

// RequireBearerMiddleware rejects /api and /swagger calls without a bearer
// token. The gateway validates the token itself.
func RequireBearerMiddleware(cfg config.PaaSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AuthDisabled {
			c.Next()
			return
		}
		p := c.Request.URL.Path
		if p == "/healthz" || p == "/readyz" || p == "/metrics" {
			c.Next()
			return
		}
		if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/swagger") || p == "/docs" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if !strings.HasPrefix(auth, "Bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "missing bearer token"})
				return
			}
			if cfg.RequireGateway && strings.TrimSpace(c.GetHeader("X-Easyweb3-Project")) == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "missing X-Easyweb3-Project"})
				return
			}
		}
		c.Next()
	}
}

// WriteAuditMiddleware logs every non-GET /api call after it completes.
func WriteAuditMiddleware(a *Auditor) gin.HandlerFunc {
	if !a.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}
		status := c.Writer.Status()
		a.Record("tradesetup_http_write", levelFromStatus(status), map[string]any{
			"method":     method,
			"path":       path,
			"route":      c.FullPath(),
			"status":     status,
			"duration":   time.Since(start).String(),
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"project":    strings.TrimSpace(c.GetHeader("X-Easyweb3-Project")),
			"role":       strings.TrimSpace(c.GetHeader("X-Easyweb3-Role")),
		})
	}
}

func levelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}
