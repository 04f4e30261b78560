// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds request correlation and panic recovery:
//
//   - RequestID() gives every request a correlation ID, reusing a
//     well-formed incoming X-Request-ID and minting a UUID otherwise.
//   - Recovery() turns a panic in a handler into the standard JSON 500
//     envelope and logs it through the request-scoped logger, so the entry
//     carries request_id, actor_id and design_id.
//   - LoggerFrom() returns the request-scoped logger installed by
//     RedactingLogger, or the global logger outside a request.
//
// Order in the chain: RequestID, ActorIdentity, RedactingLogger, Recovery.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxRequestIDLen bounds client-supplied IDs; longer ones are replaced.
	maxRequestIDLen = 128
)

// RequestID attaches (or propagates) a correlation identifier per request.
//
// An incoming X-Request-ID is kept when it is at most 128 bytes of visible
// ASCII; anything else (empty, oversized, spaces or control characters that
// could forge log lines) is replaced with a fresh UUIDv4. The ID is echoed
// in the response header and stored in the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation ID set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.Writer.Header().Get(requestIDHeader)
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] <= ' ' || s[i] > '~' {
			return false
		}
	}
	return true
}

// Recovery intercepts panics and answers with
//
//	{ "request_id": "...", "code": "internal_error", "message": "internal server error" }
//
// unless the handler already started writing, in which case the connection
// is just aborted with 500. The panic value and stack are logged at error
// level and counted in http_panics_total.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			httpPanics.WithLabelValues(routeLabel(c)).Inc()
			LoggerFrom(c).Error().
				Str("request_id", rid).
				Str("method", c.Request.Method).
				Str("path", routeLabel(c)).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger stored by
// RedactingLogger. Without one, the global logger is returned, so callers
// never need a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}
