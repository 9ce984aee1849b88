package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/prerender/models"
)

// Renderer is the engine operation the handler needs.
type Renderer interface {
	Render(ctx context.Context, req models.RenderRequest) *models.RenderResult
}

// Render returns a handler for POST /scrape and POST /api/v1/render.
//
// Flow:
//  1. Bind the JSON body; a malformed body is INVALID_INPUT.
//  2. Renderer.Render → Success or Failure envelope.
//  3. Map the failure code to an HTTP status.
func Render(rd Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.RenderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, req.URL, models.NewRenderError(
				models.ErrCodeInvalidInput, "invalid request body: "+err.Error(), err,
			), start)
			return
		}

		// ── 2. Render ───────────────────────────────────────────────
		result := rd.Render(c.Request.Context(), req)

		// ── 3. Respond ──────────────────────────────────────────────
		status := http.StatusOK
		if !result.Success {
			status = mapErrorToStatus(result.Error)
		}
		c.JSON(status, result)
	}
}

// respondError writes a Failure envelope for errors raised before the
// renderer runs.
func respondError(c *gin.Context, url string, err error, start time.Time) {
	var renderErr *models.RenderError
	if !errors.As(err, &renderErr) {
		renderErr = models.NewRenderError(models.ErrCodeInternal, err.Error(), err)
	}

	result := models.NewFailure(url, renderErr, time.Now())
	result.DurationMs = time.Since(start).Milliseconds()
	c.JSON(mapErrorToStatus(result.Error), result)
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ErrorDetail) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}
