// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// SecurityHeaders hardens JSON responses and sets the cache policy of the
// engagement API: anything answered for a specific actor (like/boost state,
// mutation results) is private and never stored, while anonymous feed reads
// may be cached but must be revalidated through their ETag.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
//
// HSTS is emitted only for HTTPS requests (directly or via
// X-Forwarded-Proto) and only when EnableHSTS is set; HSTSMaxAge <= 0 means
// 180 days.
type SecurityOptions struct {
	EnableHSTS   bool          // set true only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // e.g., 180 * 24h
	NoStore      bool          // never cache anything, including public feeds
	EnablePolicy bool          // include Permissions-Policy, etc.
}

// Cache-Control values.
const (
	cachePrivate    = "private, no-store"
	cacheRevalidate = "no-cache"
)

// SecurityHeaders returns a middleware that always sets nosniff,
// X-Frame-Options DENY and Referrer-Policy no-referrer, plus:
//
//   - Cache-Control: "private, no-store" and Vary: X-User-ID for requests
//     carrying an actor (or every request when NoStore), "no-cache" for
//     anonymous reads
//   - Permissions-Policy and X-Permitted-Cross-Domain-Policies when
//     EnablePolicy
//   - Strict-Transport-Security when EnableHSTS and the request is HTTPS
//
// X-Request-ID is appended to Access-Control-Expose-Headers when present.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int64(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int64((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.FormatInt(maxAge, 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		switch {
		case opt.NoStore:
			h.Set("Cache-Control", cachePrivate)
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		case ActorID(c) != "":
			h.Set("Cache-Control", cachePrivate)
			h.Add("Vary", HeaderUserID)
		case c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead:
			h.Set("Cache-Control", cacheRevalidate)
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			if cur == "" {
				h.Set(hdr, "X-Request-ID")
			} else if !strings.Contains(cur, "X-Request-ID") {
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request used HTTPS directly or behind a proxy
// that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
