// Engagement HTTP handlers.
//
// This file exposes the like and boost endpoints:
//   - POST /designs/{id}/like    (toggle; Idempotency-Key replay)
//   - PUT  /designs/{id}/like    (set to desired state)
//   - GET  /designs/{id}/like    (like state)
//   - POST /designs/{id}/boost   (boost; Idempotency-Key replay)
//   - GET  /designs/{id}/boost   (boost state)
//
// All of them require an actor (X-User-ID).
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// response for the same (actor, design, key) is still stored, the handler
// returns that body unchanged and sets `Idempotency-Replayed: true`. A toggle
// retried after a dropped response therefore does not flip the like back.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-design-engagement/internal/http/middleware"
)

// Operations recorded with idempotency entries.
const (
	opLikeToggle = "like.toggle"
	opBoost      = "boost"
)

//
// DTOs
//

// designURI binds the {id} path parameter.
type designURI struct {
	ID string `uri:"id" binding:"required,designid"`
}

// SetLikeRequest is the JSON payload for PUT /designs/{id}/like.
type SetLikeRequest struct {
	// Liked is the desired state.
	Liked *bool `json:"liked" binding:"required" example:"true"`
}

//
// Helpers
//

// engagementTarget resolves the design id and the actor, writing 400/401 on
// failure.
func engagementTarget(c *gin.Context) (designID, actor string, ok bool) {
	var uri designURI
	if err := c.ShouldBindUri(&uri); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid design id")
		return "", "", false
	}
	actor = actorID(c)
	if actor == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, middleware.HeaderUserID+" header required")
		return "", "", false
	}
	return uri.ID, actor, true
}

// replay serves a stored response for the request's Idempotency-Key and
// reports whether it did.
func (h *Handlers) replay(c *gin.Context, designID, actor, op string) bool {
	key, has := middleware.GetIdempotencyKey(c)
	if !has || h.idem == nil {
		return false
	}
	rec, err := h.idem.Lookup(c.Request.Context(), actor, designID, key, h.now())
	if err != nil || rec == nil {
		return false
	}
	if rec.Operation != op {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Idempotency-Key already used for another operation")
		return true
	}
	c.Header(middleware.HeaderIdempotencyReplayed, "true")
	c.Data(rec.Status, "application/json; charset=utf-8", []byte(rec.Body))
	return true
}

// respond writes body as JSON and, when the request carries an
// Idempotency-Key, stores it for replays (best effort).
func (h *Handlers) respond(c *gin.Context, designID, actor, op string, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "encode response")
		return
	}
	if key, has := middleware.GetIdempotencyKey(c); has && h.idem != nil {
		if err := h.idem.Save(c.Request.Context(), actor, designID, key, op, http.StatusOK, b); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("op", op).Msg("store idempotency record")
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

//
// Handlers
//

// ToggleLike godoc
// @ID          toggleLike
// @Summary     Toggle a like
// @Description Flips the actor's like on a design and returns the new state and like count.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Engagement
// @Produce     json
//
// @Param       X-User-ID        header  string  true   "Acting user id"  example(user123)
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true   "Design id"
//
// @Success     200  {object}  services.LikeResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing actor"
// @Failure     404  {object}  handlers.ErrorResponse  "Design not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage busy"
// @Router      /designs/{id}/like [post]
func (h *Handlers) ToggleLike(c *gin.Context) {
	designID, actor, okReq := engagementTarget(c)
	if !okReq {
		return
	}
	if h.replay(c, designID, actor, opLikeToggle) {
		return
	}
	res, err := h.eng.ToggleLike(c.Request.Context(), designID, actor)
	if err != nil {
		failService(c, err, h.now())
		return
	}
	h.respond(c, designID, actor, opLikeToggle, res)
}

// SetLike godoc
// @ID          setLike
// @Summary     Set like state
// @Description Moves the actor's like to the desired state; a no-op when it already holds.
// @Tags        Engagement
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Acting user id"  example(user123)
// @Param       id         path    string  true  "Design id"
// @Param       body       body    handlers.SetLikeRequest  true  "Desired state"
//
// @Success     200  {object}  services.LikeResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing actor"
// @Failure     404  {object}  handlers.ErrorResponse  "Design not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Storage busy"
// @Router      /designs/{id}/like [put]
func (h *Handlers) SetLike(c *gin.Context) {
	designID, actor, okReq := engagementTarget(c)
	if !okReq {
		return
	}
	var req SetLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Liked == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "liked (bool) required")
		return
	}
	res, err := h.eng.SetLike(c.Request.Context(), designID, actor, *req.Liked)
	if err != nil {
		failService(c, err, h.now())
		return
	}
	ok(c, http.StatusOK, res)
}

// GetLikeState godoc
// @ID          getLikeState
// @Summary     Like state
// @Description Reports whether the actor likes the design.
// @Tags        Engagement
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Acting user id"  example(user123)
// @Param       id         path    string  true  "Design id"
//
// @Success     200  {object}  services.LikeState
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing actor"
// @Failure     404  {object}  handlers.ErrorResponse  "Design not found"
// @Router      /designs/{id}/like [get]
func (h *Handlers) GetLikeState(c *gin.Context) {
	designID, actor, okReq := engagementTarget(c)
	if !okReq {
		return
	}
	st, err := h.eng.GetLikeState(c.Request.Context(), designID, actor)
	if err != nil {
		failService(c, err, h.now())
		return
	}
	ok(c, http.StatusOK, st)
}

// Boost godoc
// @ID          boostDesign
// @Summary     Boost a design
// @Description Spends the actor's global boost on the design. One boost per actor per cooldown window (7 days by default).
// @Description Supports idempotency via the Idempotency-Key header.
// @Tags        Engagement
// @Produce     json
//
// @Param       X-User-ID        header  string  true   "Acting user id"  example(user123)
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       id               path    string  true   "Design id"
//
// @Success     200  {object}  services.BoostResult
// @Header      429  {integer} Retry-After  "Seconds until the actor may boost again"
// @Failure     400  {object}  handlers.ErrorResponse     "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse     "Missing actor"
// @Failure     404  {object}  handlers.ErrorResponse     "Design not found"
// @Failure     429  {object}  handlers.CooldownResponse  "Cooldown active"
// @Failure     503  {object}  handlers.ErrorResponse     "Storage busy"
// @Router      /designs/{id}/boost [post]
func (h *Handlers) Boost(c *gin.Context) {
	designID, actor, okReq := engagementTarget(c)
	if !okReq {
		return
	}
	if h.replay(c, designID, actor, opBoost) {
		return
	}
	res, err := h.eng.Boost(c.Request.Context(), designID, actor)
	if err != nil {
		failService(c, err, h.now())
		return
	}
	h.respond(c, designID, actor, opBoost, res)
}

// GetBoostState godoc
// @ID          getBoostState
// @Summary     Boost state
// @Description Reports whether the actor boosted the design, how often, and when the next boost is available.
// @Tags        Engagement
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Acting user id"  example(user123)
// @Param       id         path    string  true  "Design id"
//
// @Success     200  {object}  services.BoostState
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing actor"
// @Failure     404  {object}  handlers.ErrorResponse  "Design not found"
// @Router      /designs/{id}/boost [get]
func (h *Handlers) GetBoostState(c *gin.Context) {
	designID, actor, okReq := engagementTarget(c)
	if !okReq {
		return
	}
	st, err := h.eng.GetBoostState(c.Request.Context(), designID, actor)
	if err != nil {
		failService(c, err, h.now())
		return
	}
	ok(c, http.StatusOK, st)
}
