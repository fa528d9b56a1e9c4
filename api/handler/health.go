package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/wedi/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports "busy" while a batch run holds the browser host.
func Health(startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		running := RunningBatches()
		if running > 0 {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Running: running,
			Version: "0.1.0",
		})
	}
}
