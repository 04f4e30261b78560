// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the acting identity. The identity provider sits in front
// of this service and forwards the verified actor id in X-User-ID; the
// middleware validates its shape and stores it under CtxKeyUserID, where the
// rate limiter, idempotency validator and handlers pick it up.
package middleware

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the verified actor id.
const HeaderUserID = "X-User-ID"

// CtxKeyUserID is the gin context key holding the actor id.
const CtxKeyUserID = "userID"

// MaxActorIDLen caps actor ids, in runes.
const MaxActorIDLen = 64

// ActorIdentity copies a well-formed X-User-ID header into the context. A
// missing header leaves the request anonymous; a malformed one is rejected
// with 400.
func ActorIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		if raw == "" {
			c.Next()
			return
		}
		id := strings.TrimSpace(raw)
		if !validActorID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_request",
				"message": "invalid " + HeaderUserID,
			})
			return
		}
		c.Set(CtxKeyUserID, id)
		c.Next()
	}
}

// ActorID returns the actor id stored by ActorIdentity, or "" when the
// request is anonymous.
func ActorID(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func validActorID(id string) bool {
	if id == "" || utf8.RuneCountInString(id) > MaxActorIDLen {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
