package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestActorIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ActorIdentity())
	r.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, ActorID(c))
	})

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"trimmed", "  alice ", http.StatusOK, "alice"},
		{"blank", "   ", http.StatusBadRequest, ""},
		{"too long", strings.Repeat("x", MaxActorIDLen+1), http.StatusBadRequest, ""},
		{"max length", strings.Repeat("é", MaxActorIDLen), http.StatusOK, strings.Repeat("é", MaxActorIDLen)},
		{"control char", "bob\x01", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tc.header != "" {
				req.Header.Set(HeaderUserID, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if tc.status == http.StatusOK && w.Body.String() != tc.body {
				t.Fatalf("actor = %q, want %q", w.Body.String(), tc.body)
			}
		})
	}
}
