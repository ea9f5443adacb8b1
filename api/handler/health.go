package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagesift/models"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "0.1.0"

// Health returns a handler for GET /api/health.
func Health(eng Engine, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         "ok",
			Uptime:         time.Since(startTime).Seconds(),
			Version:        Version,
			ActiveSessions: eng.ActiveSessions(),
		})
	}
}
