package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// accessEntries returns the decoded "http_request" lines of buf.
func accessEntries(t *testing.T, out string) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if m["message"] == "http_request" {
			entries = append(entries, m)
		}
	}
	return entries
}

func TestScrub(t *testing.T) {
	cases := map[string]string{
		"":                          "",
		"sort=popular":              "sort=popular",
		"email=a.b+tag@example.com": "email=[REDACTED:email]",
		"id=123e4567-e89b-12d3-a456-426614174000": "id=[REDACTED:id]",
		"call 555-123-4567 now":                   "call [REDACTED:phone] now",
	}
	for in, want := range cases {
		if got := scrub(in); got != want {
			t.Fatalf("scrub(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHeaderScrubber(t *testing.T) {
	hs := newHeaderScrubber([]string{" X-Api-Key ", ""})
	got := hs.apply(map[string][]string{
		"Authorization": {"Bearer secret"},
		"Cookie":        {"sid=1"},
		"X-Api-Key":     {"shhh"},
		"X-Custom":      {"a@b.com", "plain"},
	})
	for _, k := range []string{"Authorization", "Cookie", "X-Api-Key"} {
		if got[k] != "[REDACTED]" {
			t.Fatalf("%s must be masked, got %q", k, got[k])
		}
	}
	if got["X-Custom"] != "[REDACTED:email], plain" {
		t.Fatalf("X-Custom = %q", got["X-Custom"])
	}
}

func TestRedactingLogger_ScopedLoggerAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(ActorIdentity())
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/designs/:id", func(c *gin.Context) {
		log.Ctx(c.Request.Context()).Info().Msg("from service")
		c.String(http.StatusOK, "ok")
	})

	q := "email=a.b+tag@example.com&phone=+1-555-123-4567"
	req := httptest.NewRequest(http.MethodGet, "/designs/123e4567-e89b-12d3-a456-426614174000?"+q, nil)
	req.Header.Set(HeaderUserID, "alice")
	req.Header.Set(requestIDHeader, "rid-1")
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Api-Key", "shhh")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, `"request_id":"rid-1","actor_id":"alice","design_id":"123e4567-e89b-12d3-a456-426614174000","message":"from service"`) {
		t.Fatalf("service log did not inherit request fields:\n%s", out)
	}

	entries := accessEntries(t, out)
	if len(entries) != 1 {
		t.Fatalf("expected one access entry, got %d:\n%s", len(entries), out)
	}
	e := entries[0]
	if e["level"] != "info" || e["route"] != "/designs/:id" || e["status"] != float64(200) {
		t.Fatalf("unexpected access entry: %v", e)
	}
	if e["path"] != "/designs/[REDACTED:id]" {
		t.Fatalf("path not scrubbed: %v", e["path"])
	}
	if q := e["query"].(string); !strings.Contains(q, "[REDACTED:email]") || !strings.Contains(q, "[REDACTED:phone]") {
		t.Fatalf("query not scrubbed: %q", q)
	}
	hdr := e["headers"].(map[string]any)
	if hdr["Authorization"] != "[REDACTED]" || hdr["X-Api-Key"] != "[REDACTED]" {
		t.Fatalf("headers not masked: %v", hdr)
	}
	if _, ok := e["replayed"]; ok {
		t.Fatalf("replayed must be absent on a fresh request: %v", e)
	}
}

func TestRedactingLogger_LevelsReplayAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	// No RequestID middleware: the incoming header is used as is.
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.POST("/designs/:id/like", func(c *gin.Context) {
		c.Header(HeaderIdempotencyReplayed, "true")
		c.Status(http.StatusOK)
	})
	r.POST("/designs/:id/boost", func(c *gin.Context) { c.Status(http.StatusTooManyRequests) })
	r.GET("/designs", func(c *gin.Context) {
		_ = c.Error(errors.New("feed query failed"))
		c.Status(http.StatusServiceUnavailable)
	})

	send := func(method, path, rid string) {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(requestIDHeader, rid)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	send(http.MethodPost, "/designs/d1/like", "rid-replay")
	send(http.MethodPost, "/designs/d1/boost", "rid-cooldown")
	send(http.MethodGet, "/designs", "rid-err")
	send(http.MethodGet, "/nope", "rid-missing")

	byID := map[string]map[string]any{}
	for _, e := range accessEntries(t, buf.String()) {
		byID[e["request_id"].(string)] = e
	}
	if e := byID["rid-replay"]; e == nil || e["level"] != "info" || e["replayed"] != true {
		t.Fatalf("replay entry: %v", e)
	}
	if e := byID["rid-cooldown"]; e == nil || e["level"] != "warn" || e["design_id"] != "d1" {
		t.Fatalf("cooldown entry: %v", e)
	}
	if e := byID["rid-err"]; e == nil || e["level"] != "error" || !strings.Contains(e["errors"].(string), "feed query failed") {
		t.Fatalf("error entry: %v", e)
	}
	if e := byID["rid-missing"]; e == nil || e["level"] != "warn" || e["route"] != unmatchedRoute || e["path"] != "/nope" {
		t.Fatalf("unmatched entry: %v", e)
	}
}
