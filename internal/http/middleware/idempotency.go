// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// IdempotencyValidator guards engagement writes (POST like toggle, POST
// boost) that carry an Idempotency-Key header: replaying a toggle must not
// flip the like twice. The middleware only validates and classifies; the
// handler owns the stored response and serves the replay itself. Reads
// ignore the header entirely.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyRateBypass = "rate.bypass" // bool: a stored response exists, skip the rate limiter
)

// defaultKeyPattern accepts RFC 7230 token-ish keys.
var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key validated by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IdempotencyOptions configures key validation. TTL is the checker's
// business.
type IdempotencyOptions struct {
	MaxLen  int            // <= 0 → 200
	Pattern *regexp.Regexp // nil → defaultKeyPattern
}

// ReplayChecker reports whether an unexpired stored response exists for
// (actorID, designID, key) at now.
type ReplayChecker interface {
	HasReplay(ctx context.Context, actorID, designID, key string, now time.Time) (bool, error)
}

// IdempotencyValidator returns the middleware. For write requests with an
// Idempotency-Key:
//
//   - a key longer than MaxLen or not matching Pattern is rejected with 400
//     bad_idempotency_key
//   - a valid key is stashed for GetIdempotencyKey
//   - when the request has an actor and checker finds a stored response,
//     the request is exempted from rate limiting
//
// A checker error is logged and the request proceeds as a fresh write;
// checker may be nil.
func IdempotencyValidator(opts IdempotencyOptions, checker ReplayChecker) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || classOf(c.Request.Method) != classWrite {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid " + HeaderIdempotencyKey,
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		actor := ActorID(c)
		if checker == nil || actor == "" {
			c.Next()
			return
		}
		found, err := checker.HasReplay(c.Request.Context(), actor, c.Param("id"), key, time.Now().UTC())
		switch {
		case err != nil:
			LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		case found:
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}
