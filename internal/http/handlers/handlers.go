// Package handlers exposes the engagement engine over HTTP.
//
// Handlers are transport-thin: they validate input (gin binding with the
// custom validations from validation.go), resolve the acting identity set by
// middleware.ActorIdentity, call the services, and translate results into
// HTTP responses (conditional feed responses, idempotent replays).
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-design-engagement/internal/domain"
	"github.com/tbourn/go-design-engagement/internal/http/middleware"
	"github.com/tbourn/go-design-engagement/internal/repo"
	"github.com/tbourn/go-design-engagement/internal/services"
)

//
// Service contracts (context-aware)
//

// EngagementService defines the like and boost operations consumed by the
// handlers. Implementations must be safe for concurrent use.
type EngagementService interface {
	ToggleLike(ctx context.Context, designID, actorID string) (*services.LikeResult, error)
	SetLike(ctx context.Context, designID, actorID string, liked bool) (*services.LikeResult, error)
	GetLikeState(ctx context.Context, designID, actorID string) (*services.LikeState, error)
	Boost(ctx context.Context, designID, actorID string) (*services.BoostResult, error)
	GetBoostState(ctx context.Context, designID, actorID string) (*services.BoostState, error)
}

// FeedService defines the read paths.
type FeedService interface {
	Page(ctx context.Context, q services.FeedQuery) (*services.FeedPage, error)
	// Stats feeds the weak ETag of a feed query.
	Stats(ctx context.Context, q services.FeedQuery) (repo.FeedFingerprint, error)
	Ranking(ctx context.Context, limit int) ([]services.RankedItem, error)
	Get(ctx context.Context, id string) (*services.FeedItem, error)
}

// IdempotencyStore persists the first successful response of an engagement
// write so a retried request with the same Idempotency-Key replays it.
type IdempotencyStore interface {
	// Lookup returns the unexpired record for (userID, designID, key), or
	// nil when there is none.
	Lookup(ctx context.Context, userID, designID, key string, now time.Time) (*domain.Idempotency, error)
	// Save records a response body. Failures are logged, never surfaced.
	Save(ctx context.Context, userID, designID, key, operation string, status int, body []byte) error
}

//
// Handler wiring
//

// Handlers groups the engagement, feed and ranking endpoints.
type Handlers struct {
	eng  EngagementService
	feed FeedService
	idem IdempotencyStore // optional

	// Now is the clock used for Retry-After and replay lookups.
	Now func() time.Time
}

var validationsOnce sync.Once

// New constructs Handlers bound to the given services. idem may be nil, in
// which case Idempotency-Key headers are validated but not replayed. The
// custom validations are registered on gin's validator on first use.
func New(eng EngagementService, feed FeedService, idem IdempotencyStore) *Handlers {
	validationsOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := RegisterValidations(v); err != nil {
				log.Error().Err(err).Msg("register request validations")
			}
		}
	})
	return &Handlers{eng: eng, feed: feed, idem: idem, Now: time.Now}
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// actorID returns the acting identity set by middleware.ActorIdentity, or ""
// for anonymous requests.
func actorID(c *gin.Context) string { return middleware.ActorID(c) }
