package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagesift/models"
)

// Engine is the scrape engine as the handlers see it.
type Engine interface {
	Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error)
	ActiveSessions() int
}

// Scrape returns a handler for POST /api/scrape.
//
// Flow:
//  1. Bind and validate the body, apply defaults.
//  2. Engine.Scrape on the request context.
//  3. Apply ?fields= and respond.
func Scrape(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, err)
			return
		}
		req.Defaults()

		// ── 2. Scrape ───────────────────────────────────────────────
		result, err := eng.Scrape(c.Request.Context(), &req)
		if err != nil {
			se := models.AsScrapeError(err)
			c.JSON(mapErrorToStatus(se), models.ScrapeResponse{
				Success: false,
				Error:   se.Message,
				Code:    se.Code,
			})
			return
		}

		// ── 3. Project and respond ─────────────────────────────────
		c.JSON(http.StatusOK, models.ScrapeResponse{
			Success: true,
			Data:    models.PickFields(result, parseFields(c.Query("fields"))),
		})
	}
}

// respondInvalid writes the 400 validation envelope.
func respondInvalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ValidationErrorResponse{
		Success: false,
		Errors:  models.FieldErrors(err),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeLaunch:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	default:
		return http.StatusInternalServerError // 500
	}
}
