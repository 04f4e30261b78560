// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the in-memory token-bucket limiter in front of the
// engagement API. Reads and engagement writes draw from separate buckets:
// feeds are cheap and polled, while every like or boost is a serialized
// store transaction, so writes get a tighter per-actor budget.
//
// Buckets are process-local (golang.org/x/time/rate) and idle ones are
// evicted opportunistically. Idempotent replays flagged by
// IdempotencyValidator never consume tokens. This is abuse control, not
// authorization.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity owning a bucket, e.g.
// "actor:<id>" or "ip:<addr>".
type keyFunc func(*gin.Context) string

// KeyByActorOrIP keys buckets by the acting user (see ActorIdentity) and
// falls back to the client IP for anonymous reads.
func KeyByActorOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id := ActorID(c); id != "" {
			return "actor:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimitOptions sizes the read and write buckets.
type RateLimitOptions struct {
	RPS        float64 // reads: tokens per second
	Burst      int     // reads: bucket size (<= 0 → 1)
	WriteRPS   float64 // engagement writes: tokens per second
	WriteBurst int     // engagement writes: bucket size (<= 0 → 1)
	Key        keyFunc // nil → KeyByActorOrIP
}

// bucketClass selects which budget a request draws from.
type bucketClass byte

const (
	classRead  bucketClass = 'r'
	classWrite bucketClass = 'w'
)

func classOf(method string) bucketClass {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return classWrite
	}
	return classRead
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds per-(class, key) token buckets. Safe for concurrent use.
type RateLimiter struct {
	read, write limits
	keyFn       keyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	sweepN   uint64
}

type limits struct {
	rps   rate.Limit
	burst int
}

func newLimits(rps float64, burst int) limits {
	if burst <= 0 {
		burst = 1
	}
	return limits{rps: rate.Limit(rps), burst: burst}
}

// sweepEvery is the number of lookups between idle-bucket sweeps.
const sweepEvery = 5000

// NewRateLimiter builds a limiter from opt.
func NewRateLimiter(opt RateLimitOptions) *RateLimiter {
	key := opt.Key
	if key == nil {
		key = KeyByActorOrIP()
	}
	return &RateLimiter{
		read:     newLimits(opt.RPS, opt.Burst),
		write:    newLimits(opt.WriteRPS, opt.WriteBurst),
		keyFn:    key,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// bucket returns the limiter for (class, key), creating it if absent. The
// idle sweep runs before the lookup so a stale bucket for key is replaced
// rather than refreshed.
func (rl *RateLimiter) bucket(class bucketClass, key string, now time.Time) *rate.Limiter {
	id := string(class) + "|" + key

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweepN++
	if rl.sweepN >= sweepEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.sweepN = 0
	}

	if v, ok := rl.visitors[id]; ok {
		v.lastSeen = now
		return v.limiter
	}
	l := rl.read
	if class == classWrite {
		l = rl.write
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	rl.visitors[id] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as
// a replay of a completed write.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// retryAfter is the whole number of seconds until lim yields a token,
// at least 1. A zero-rate limiter never refills and reports 1.
func retryAfter(lim *rate.Limiter, now time.Time) int {
	if lim.Limit() == 0 {
		return 1
	}
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return 1
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	if d == rate.InfDuration {
		return 1
	}
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Handler returns the Gin middleware. A denied request gets:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <seconds>
//	{"request_id": "...", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := time.Now()
		lim := rl.bucket(classOf(c.Request.Method), rl.keyFn(c), now)
		if lim.AllowN(now, 1) {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim, now)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
