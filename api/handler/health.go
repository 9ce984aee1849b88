package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/prerender/models"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// Health returns a handler for GET /health.
//
// Sessions are per request, so there is no pool to report on: the process
// is healthy for as long as it answers.
func Health(startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Version:   Version,
		})
	}
}
