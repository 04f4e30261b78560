// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RedactingLogger is the access log of the engagement API. It never logs
// bodies, masks credential headers outright, and pattern-scrubs emails,
// phone numbers and UUIDs out of the query string, path and remaining
// headers. It also installs the request-scoped logger (request_id,
// actor_id, design_id) on both the Gin context and the request context, so
// services logging through zerolog's log.Ctx(ctx) inherit the correlation
// fields.
//
// Scrubbing reduces, but does not remove, the chance of PII reaching logs.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders names extra headers whose values are replaced by "[REDACTED]"
// (case-insensitive), on top of Authorization, Cookie and Set-Cookie.
type RedactOptions struct {
	MaskHeaders []string
}

// UUIDs go first: the phone pattern would otherwise eat their digit runs.
var scrubPatterns = []struct {
	re  *regexp.Regexp
	sub string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	// digits only, e.g. "+1 212-555-1212", "(212) 555-1212"
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

func scrub(s string) string {
	if s == "" {
		return s
	}
	for _, p := range scrubPatterns {
		s = p.re.ReplaceAllString(s, p.sub)
	}
	return s
}

// headerScrubber masks or scrubs request headers.
type headerScrubber map[string]struct{}

func newHeaderScrubber(extra []string) headerScrubber {
	hs := headerScrubber{"authorization": {}, "cookie": {}, "set-cookie": {}}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hs[h] = struct{}{}
		}
	}
	return hs
}

func (hs headerScrubber) apply(in map[string][]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, vv := range in {
		if _, ok := hs[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = scrub(strings.Join(vv, ", "))
	}
	return out
}

// requestLogger builds the logger carrying the correlation fields of c.
func requestLogger(c *gin.Context) zerolog.Logger {
	rid := RequestIDFrom(c)
	if rid == "" {
		rid = c.GetHeader(requestIDHeader)
	}
	lc := log.With().Str("request_id", rid)
	if uid := ActorID(c); uid != "" {
		lc = lc.Str("actor_id", uid)
	}
	if id := c.Param("id"); id != "" {
		lc = lc.Str("design_id", id)
	}
	return lc.Logger()
}

// RedactingLogger returns the access-log middleware. One "http_request"
// entry is written per request with method, route, scrubbed path and query,
// status, bytes, latency and scrubbed headers; engagement writes served from
// an idempotency record are flagged with replayed=true. Level is info,
// warn for 4xx, error for 5xx or when handlers attached Gin errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	headers := newHeaderScrubber(opts.MaskHeaders)

	return func(c *gin.Context) {
		start := time.Now()

		l := requestLogger(c)
		c.Set("logger", &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		path := scrub(c.Request.URL.Path)
		query := scrub(c.Request.URL.RawQuery)
		safeHeaders := headers.apply(c.Request.Header)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		if c.Writer.Header().Get(HeaderIdempotencyReplayed) == "true" {
			ev = ev.Bool("replayed", true)
		}

		ev.
			Str("method", c.Request.Method).
			Str("route", routeLabel(c)).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
