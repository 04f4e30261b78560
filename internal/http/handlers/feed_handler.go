// Feed HTTP handlers.
//
// This file exposes the read endpoints:
//   - GET /designs        (cursor-paginated feed, weak ETag support)
//   - GET /designs/{id}   (design detail)
//   - GET /ranking        (top designs by score, rank-annotated)
//
// Reads need no actor.
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-design-engagement/internal/repo"
	"github.com/tbourn/go-design-engagement/internal/services"
	"github.com/tbourn/go-design-engagement/internal/tags"
	"github.com/tbourn/go-design-engagement/internal/utils"
)

//
// DTOs
//

// FeedParams are the query parameters of GET /designs. Affinity accepts both
// repeated parameters and comma-separated values.
type FeedParams struct {
	Sort     string   `form:"sort"`
	Owner    string   `form:"owner" binding:"omitempty,designid"`
	Group    string   `form:"group" binding:"omitempty,tag"`
	Concept  string   `form:"concept" binding:"omitempty,tag"`
	LikedBy  string   `form:"liked_by" binding:"omitempty,designid"`
	Affinity []string `form:"affinity" binding:"omitempty,max=32,dive,tag"`
	Cursor   string   `form:"cursor" binding:"omitempty,designid"`
}

// RankingResponse wraps the leaderboard.
type RankingResponse struct {
	Items []services.RankedItem `json:"items"`
}

//
// Helpers
//

// feedETag derives a weak ETag from the candidate set fingerprint and the
// canonical query (sorted parameters), so pages of the same feed differ.
func feedETag(c *gin.Context, fp repo.FeedFingerprint) string {
	var maxUnixNano int64
	if fp.MaxUpdatedAt != nil {
		maxUnixNano = fp.MaxUpdatedAt.UnixNano()
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(c.Request.URL.Query().Encode()))
	return fmt.Sprintf(`W/"feed:%x:%d:%d:%d:%d"`, h.Sum64(), fp.Count, fp.Likes, fp.Boosts, maxUnixNano)
}

//
// Handlers
//

// ListDesigns godoc
// @ID          listDesigns
// @Summary     Design feed
// @Description Returns one page of public designs. Sort modes: newest (default), popular, recommended.
// @Description The cursor is the id of the last item of the previous page; next_cursor is set only on a full page.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Feed
// @Produce     json
//
// @Param       sort           query   string    false  "newest|popular|recommended"  default(newest)
// @Param       owner          query   string    false  "Only designs of this owner"
// @Param       group          query   string    false  "Group tag"
// @Param       concept        query   string    false  "Concept tag"
// @Param       liked_by       query   string    false  "Only designs this actor likes"
// @Param       affinity       query   []string  false  "Affinity tags (recommended sort)"  collectionFormat(multi)
// @Param       cursor         query   string    false  "Id of the last item already served"
// @Param       page_size      query   int       false  "Items per page"  minimum(1) maximum(100) default(12)
// @Param       If-None-Match  header  string    false  "Return 304 if ETag matches"
//
// @Success     200  {object}  services.FeedPage
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or unknown cursor"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /designs [get]
func (h *Handlers) ListDesigns(c *gin.Context) {
	ctx := c.Request.Context()

	var p FeedParams
	if err := c.ShouldBindQuery(&p); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid feed parameters")
		return
	}
	mode, err := services.ParseSort(p.Sort)
	if err != nil {
		failService(c, err, h.now())
		return
	}
	var affinity []string
	for _, a := range p.Affinity {
		affinity = append(affinity, tags.SplitCSV(a)...)
	}

	q := services.FeedQuery{
		Sort:       mode,
		OwnerID:    strings.TrimSpace(p.Owner),
		GroupTag:   p.Group,
		ConceptTag: p.Concept,
		LikedBy:    strings.TrimSpace(p.LikedBy),
		Affinity:   affinity,
		Cursor:     strings.TrimSpace(p.Cursor),
		PageSize:   utils.PositiveInt(c.Query("page_size"), 0, 0),
	}

	// ETag pre-check (best effort).
	if fp, err := h.feed.Stats(ctx, q); err == nil {
		etag := feedETag(c, fp)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			notModified(c)
			return
		}
	}

	page, err := h.feed.Page(ctx, q)
	if err != nil {
		c.Writer.Header().Del("ETag")
		failService(c, err, h.now())
		return
	}
	ok(c, http.StatusOK, page)
}

// GetDesign godoc
// @ID          getDesign
// @Summary     Design detail
// @Description Returns a public design with its counters and score.
// @Tags        Feed
// @Produce     json
//
// @Param       id  path  string  true  "Design id"
//
// @Success     200  {object}  services.FeedItem
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Design not found"
// @Router      /designs/{id} [get]
func (h *Handlers) GetDesign(c *gin.Context) {
	var uri designURI
	if err := c.ShouldBindUri(&uri); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid design id")
		return
	}
	item, err := h.feed.Get(c.Request.Context(), uri.ID)
	if err != nil {
		failService(c, err, h.now())
		return
	}
	ok(c, http.StatusOK, item)
}

// Ranking godoc
// @ID          ranking
// @Summary     Leaderboard
// @Description Returns the top public designs by score (likes + 10 × boosts), ranks starting at 1.
// @Tags        Feed
// @Produce     json
//
// @Param       limit  query  int  false  "Number of entries"  minimum(1) maximum(50) default(50)
//
// @Success     200  {object}  handlers.RankingResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /ranking [get]
func (h *Handlers) Ranking(c *gin.Context) {
	items, err := h.feed.Ranking(c.Request.Context(), utils.PositiveInt(c.Query("limit"), 0, 0))
	if err != nil {
		failService(c, err, h.now())
		return
	}
	ok(c, http.StatusOK, RankingResponse{Items: items})
}
