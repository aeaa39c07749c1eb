package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Pinger is the market data store's liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	DB         *gorm.DB
	MarketData Pinger
	// BreakerState reports the market data circuit breaker, if any.
	BreakerState func() string
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

// @Summary Health check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Readiness check
// @Description Ready once the pipeline store answers. The market data store is reported but optional.
// @Tags health
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	sqlDB, err := h.DB.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_error"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}

	out := gin.H{"status": "ready", "market_data": "disabled"}
	if h.MarketData != nil {
		out["market_data"] = "ok"
		if err := h.MarketData.Ping(ctx); err != nil {
			out["market_data"] = "unreachable"
		}
	}
	if h.BreakerState != nil {
		out["market_data_breaker"] = h.BreakerState()
	}
	c.JSON(http.StatusOK, out)
}
