// Package handlers provides HTTP handler implementations for the public API.
//
// Every failure leaves through fail or failService and is rendered as an
// ErrorResponse:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "design not found"
//	}
package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-design-engagement/internal/http/middleware"
	"github.com/tbourn/go-design-engagement/internal/services"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// CooldownResponse is returned with 429 when a boost is attempted inside the
// actor's cooldown window.
type CooldownResponse struct {
	ErrorResponse
	// Instant at which the actor may boost again
	NextAvailableAt time.Time `json:"next_available_at" example:"2025-03-08T12:00:00Z"`
}

// fail aborts with an ErrorResponse. 5xx responses are also logged with
// the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failService maps a service error onto the error envelope:
//
//	ErrInvalidInput, ErrInvalidSort → 400 bad_request
//	ErrInvalidCursor                → 400 invalid_cursor
//	ErrDesignNotFound               → 404 not_found
//	*CooldownError                  → 429 boost_cooldown + Retry-After
//	ErrStorageBusy                  → 503 storage_busy + Retry-After
//	anything else                   → 500 internal_error, cause only logged
func failService(c *gin.Context, err error, now time.Time) {
	var cd *services.CooldownError
	switch {
	case errors.As(err, &cd):
		secs := int64(math.Ceil(cd.RetryAfter(now).Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.FormatInt(secs, 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, CooldownResponse{
			ErrorResponse: ErrorResponse{
				RequestID: middleware.RequestIDFrom(c),
				Code:      ErrCodeBoostCooldown,
				Message:   "boost cooldown active",
			},
			NextAvailableAt: cd.NextAvailableAt.UTC(),
		})
	case errors.Is(err, services.ErrInvalidCursor):
		fail(c, http.StatusBadRequest, ErrCodeInvalidCursor, err.Error())
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidSort):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrDesignNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "design not found")
	case errors.Is(err, services.ErrStorageBusy):
		c.Header("Retry-After", "1")
		fail(c, http.StatusServiceUnavailable, ErrCodeStorageBusy, services.ErrStorageBusy.Error())
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unmapped service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// notModified answers a conditional GET whose ETag matched If-None-Match.
func notModified(c *gin.Context) {
	c.Status(http.StatusNotModified)
}
