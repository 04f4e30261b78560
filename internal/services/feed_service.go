// Package services – FeedService
//
// This file implements the read path: cursor-paginated feeds (newest,
// popular, recommended), the rank-annotated leaderboard and design detail.
//
// A feed page is computed over the full filtered candidate set: the public
// designs matching the filters are loaded, ordered in process by a total
// ranking ordering, and the cursor (the id of the last item served) is
// resolved against that order. Counters are read fresh on every call.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/domain"
	"github.com/tbourn/go-design-engagement/internal/observability"
	"github.com/tbourn/go-design-engagement/internal/ranking"
	"github.com/tbourn/go-design-engagement/internal/repo"
	"github.com/tbourn/go-design-engagement/internal/tags"
)

// SortMode selects a feed ordering.
type SortMode string

// Supported sort modes.
const (
	SortNewest      SortMode = "newest"
	SortPopular     SortMode = "popular"
	SortRecommended SortMode = "recommended"
)

// Page size defaults.
const (
	DefaultGalleryPageSize = 12
	DefaultMaxPageSize     = 100
	DefaultRankingLimit    = 50
)

// ParseSort maps a query value to a SortMode. Empty means newest.
func ParseSort(s string) (SortMode, error) {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortPopular:
		return SortPopular, nil
	case SortRecommended:
		return SortRecommended, nil
	}
	return "", ErrInvalidSort
}

// FeedQuery describes one feed page request. Tag fields are normalized by
// the service.
type FeedQuery struct {
	Sort       SortMode
	OwnerID    string
	GroupTag   string
	ConceptTag string
	LikedBy    string   // only designs this actor likes
	Affinity   []string // recommended mode only
	Cursor     string   // id of the last item of the previous page
	PageSize   int
}

// FeedItem is a design as served by feeds.
type FeedItem struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	GroupTag   string    `json:"group_tag,omitempty"`
	ConceptTag string    `json:"concept_tag,omitempty"`
	LikeCount  int64     `json:"like_count"`
	BoostCount int64     `json:"boost_count"`
	Score      int64     `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// FeedPage is one page of a feed. NextCursor is set only when the page is
// full; HasMore reports whether items remain past this page.
type FeedPage struct {
	Items      []FeedItem `json:"items"`
	NextCursor *string    `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}

// RankedItem is a leaderboard row; Rank starts at 1.
type RankedItem struct {
	Rank int `json:"rank"`
	FeedItem
}

// FeedService serves feeds and the leaderboard.
type FeedService struct {
	DB *gorm.DB

	DefaultPageSize int // GALLERY_PAGE_SIZE
	MaxPageSize     int // MAX_PAGE_SIZE
	RankingLimit    int // RANKING_LIMIT
}

func toItem(d domain.Design) FeedItem {
	return FeedItem{
		ID:         d.ID,
		OwnerID:    d.OwnerID,
		GroupTag:   d.GroupTag,
		ConceptTag: d.ConceptTag,
		LikeCount:  d.LikeCount,
		BoostCount: d.BoostCount,
		Score:      ranking.Score(d.LikeCount, d.BoostCount),
		CreatedAt:  d.CreatedAt,
	}
}

func (s *FeedService) pageSize(n int) int {
	def, limit := s.DefaultPageSize, s.MaxPageSize
	if def <= 0 {
		def = DefaultGalleryPageSize
	}
	if limit <= 0 {
		limit = DefaultMaxPageSize
	}
	switch {
	case n <= 0:
		return def
	case n > limit:
		return limit
	}
	return n
}

// resolveFilter normalizes q and resolves the liked-by pre-pass into an id
// restriction.
func (s *FeedService) resolveFilter(ctx context.Context, q *FeedQuery) (repo.FeedFilter, error) {
	q.GroupTag = tags.Normalize(q.GroupTag)
	q.ConceptTag = tags.Normalize(q.ConceptTag)
	q.Affinity = tags.NormalizeAll(q.Affinity)
	q.OwnerID = strings.TrimSpace(q.OwnerID)
	q.LikedBy = strings.TrimSpace(q.LikedBy)

	f := repo.FeedFilter{OwnerID: q.OwnerID, GroupTag: q.GroupTag, ConceptTag: q.ConceptTag}
	if q.LikedBy != "" {
		if err := checkID("liked_by", q.LikedBy); err != nil {
			return f, err
		}
		ids, err := repo.LikedDesignIDs(ctx, s.DB, q.LikedBy)
		if err != nil {
			return f, err
		}
		f.IDs = ids
		f.RestrictIDs = true
	}
	return f, nil
}

// Page returns one page of the feed described by q.
func (s *FeedService) Page(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	ctx, span := otel.Tracer("services/FeedService").Start(ctx, "Page",
		trace.WithAttributes(
			attribute.String("feed.sort", string(q.Sort)),
			attribute.String("feed.cursor", q.Cursor),
			attribute.Int("feed.page_size", q.PageSize),
		),
	)
	defer span.End()

	if q.Sort == "" {
		q.Sort = SortNewest
	}
	var less ranking.Less
	switch q.Sort {
	case SortNewest:
		less = ranking.Newest
	case SortPopular:
		less = ranking.Popular
	case SortRecommended:
		// set below, once the affinity tags are normalized
	default:
		return nil, ErrInvalidSort
	}
	size := s.pageSize(q.PageSize)

	f, err := s.resolveFilter(ctx, &q)
	if err != nil {
		return nil, err
	}
	designs, err := repo.ListFeedCandidates(ctx, s.DB, f)
	if err != nil {
		return nil, spanErr(span, err)
	}

	byID := make(map[string]domain.Design, len(designs))
	entries := make([]ranking.Entry, 0, len(designs))
	for _, d := range designs {
		byID[d.ID] = d
		entries = append(entries, repo.Entry(d))
	}

	if q.Sort == SortRecommended {
		aff := ranking.NewAffinity(q.Affinity...)
		less = ranking.Recommended(aff)
		entries = ranking.MergeRecommended(entries, aff)
	} else {
		ranking.Sort(entries, less)
	}

	start := 0
	if c := strings.TrimSpace(q.Cursor); c != "" {
		cur, ok := byID[c]
		if !ok {
			d, err := repo.GetDesign(ctx, s.DB, c)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return nil, ErrInvalidCursor
				}
				return nil, spanErr(span, err)
			}
			// a private design must not reveal where it would sort
			if !d.IsPublic() {
				return nil, ErrInvalidCursor
			}
			cur = *d
		}
		start = ranking.After(entries, repo.Entry(cur), less)
	}

	end := start + size
	if end > len(entries) {
		end = len(entries)
	}
	page := &FeedPage{Items: make([]FeedItem, 0, end-start)}
	for _, e := range entries[start:end] {
		page.Items = append(page.Items, toItem(byID[e.ID]))
	}
	if len(page.Items) == size {
		last := page.Items[len(page.Items)-1].ID
		page.NextCursor = &last
	}
	page.HasMore = end < len(entries)

	observability.FeedPageItems.WithLabelValues(string(q.Sort)).Observe(float64(len(page.Items)))
	span.SetAttributes(attribute.Int("feed.items", len(page.Items)), attribute.Int("feed.candidates", len(entries)))
	return page, nil
}

// Stats returns the fingerprint of the candidate set for q's filters.
// Handlers derive feed ETags from it.
func (s *FeedService) Stats(ctx context.Context, q FeedQuery) (repo.FeedFingerprint, error) {
	f, err := s.resolveFilter(ctx, &q)
	if err != nil {
		return repo.FeedFingerprint{}, err
	}
	return repo.FeedStats(ctx, s.DB, f)
}

// Ranking returns the top public designs by score, ranks 1..N by position.
// limit is clamped to [1, RankingLimit]; non-positive means RankingLimit.
func (s *FeedService) Ranking(ctx context.Context, limit int) ([]RankedItem, error) {
	ctx, span := otel.Tracer("services/FeedService").Start(ctx, "Ranking",
		trace.WithAttributes(attribute.Int("ranking.limit", limit)),
	)
	defer span.End()

	top := s.RankingLimit
	if top <= 0 {
		top = DefaultRankingLimit
	}
	if limit <= 0 || limit > top {
		limit = top
	}

	designs, err := repo.TopDesigns(ctx, s.DB, limit)
	if err != nil {
		return nil, spanErr(span, err)
	}
	out := make([]RankedItem, 0, len(designs))
	for i, d := range designs {
		out = append(out, RankedItem{Rank: i + 1, FeedItem: toItem(d)})
	}
	return out, nil
}

// Get returns a public design. Private and missing designs both yield
// ErrDesignNotFound.
func (s *FeedService) Get(ctx context.Context, id string) (*FeedItem, error) {
	ctx, span := otel.Tracer("services/FeedService").Start(ctx, "Get",
		trace.WithAttributes(attribute.String("design.id", id)),
	)
	defer span.End()

	if err := checkID("design id", id); err != nil {
		return nil, err
	}
	d, err := repo.GetDesign(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDesignNotFound
		}
		return nil, spanErr(span, err)
	}
	if !d.IsPublic() {
		return nil, ErrDesignNotFound
	}
	item := toItem(*d)
	return &item, nil
}
