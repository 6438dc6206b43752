package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/api"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/logger"
)

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Failure      503 {object} api.HealthResponse
// @Router       /health [get]
func Health(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp := api.HealthResponse{Status: "ok", Checks: map[string]string{}}
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check failed", "dependency", "postgres", "error", err)
			resp.Checks["postgres"] = "down"
			resp.Status = "degraded"
		} else {
			resp.Checks["postgres"] = "ok"
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("health check failed", "dependency", "redis", "error", err)
			resp.Checks["redis"] = "down"
			resp.Status = "degraded"
		} else {
			resp.Checks["redis"] = "ok"
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}

// Metrics godoc
// @Summary      Prometheus metrics
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
