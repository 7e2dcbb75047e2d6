package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// healthHandler runs every check and reports "ok" or "degraded" per
// dependency. Failure detail goes to the log only.
func healthHandler(log *zap.Logger, checks ...healthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok"}
		code := http.StatusOK
		for _, hc := range checks {
			if err := hc.check(ctx); err != nil {
				log.Error("health check failed", zap.String("dependency", hc.name), zap.Error(err))
				status[hc.name], status["status"], code = "degraded", "degraded", http.StatusServiceUnavailable
				continue
			}
			status[hc.name] = "ok"
		}
		c.JSON(code, status)
	}
}
