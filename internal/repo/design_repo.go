// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Design
// model: lookups, feed candidate queries and the atomic counter updates used
// inside engagement transactions.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Error semantics:
//   - When a design is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/domain"
	"github.com/tbourn/go-design-engagement/internal/ranking"
	"github.com/tbourn/go-design-engagement/internal/tags"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// popularOrder is the SQL rendering of ranking.Popular.
var popularOrder = fmt.Sprintf("(like_count + boost_count * %d) DESC, like_count DESC, id DESC", ranking.BoostWeight)

// CreateDesign inserts a design. Tags are normalized, counters start at zero
// unless set, visibility defaults to public and CreatedAt defaults to now.
func CreateDesign(ctx context.Context, db *gorm.DB, d *domain.Design) error {
	if d.Visibility == "" {
		d.Visibility = domain.VisibilityPublic
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.CreatedAt = domain.Millis(d.CreatedAt)
	d.UpdatedAt = d.CreatedAt
	d.GroupTag = tags.Normalize(d.GroupTag)
	d.ConceptTag = tags.Normalize(d.ConceptTag)
	return db.WithContext(ctx).Create(d).Error
}

// GetDesign fetches a design by id regardless of visibility. It returns
// ErrNotFound when missing.
func GetDesign(ctx context.Context, db *gorm.DB, id string) (*domain.Design, error) {
	var d domain.Design
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// FeedFilter narrows the public candidate set. Empty fields do not filter.
// When RestrictIDs is set, only designs whose id is in IDs qualify (an empty
// IDs slice then yields no candidates).
type FeedFilter struct {
	OwnerID     string
	GroupTag    string
	ConceptTag  string
	IDs         []string
	RestrictIDs bool
}

func (f FeedFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("visibility = ?", domain.VisibilityPublic)
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.GroupTag != "" {
		q = q.Where("group_tag = ?", f.GroupTag)
	}
	if f.ConceptTag != "" {
		q = q.Where("concept_tag = ?", f.ConceptTag)
	}
	if f.RestrictIDs {
		q = q.Where("id IN ?", f.IDs)
	}
	return q
}

// ListFeedCandidates returns every public design matching f. Order is not
// significant; callers sort with a ranking ordering.
func ListFeedCandidates(ctx context.Context, db *gorm.DB, f FeedFilter) ([]domain.Design, error) {
	out := []domain.Design{}
	if f.RestrictIDs && len(f.IDs) == 0 {
		return out, nil
	}
	err := f.apply(db.WithContext(ctx).Model(&domain.Design{})).Find(&out).Error
	return out, err
}

// TopDesigns returns up to limit public designs in popular order.
func TopDesigns(ctx context.Context, db *gorm.DB, limit int) ([]domain.Design, error) {
	var out []domain.Design
	err := db.WithContext(ctx).
		Where("visibility = ?", domain.VisibilityPublic).
		Order(popularOrder).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// AdjustLikeCount adds +1 or -1 to a design's like counter. Decrements are
// floored at zero. It returns ErrNotFound when no row matched.
func AdjustLikeCount(ctx context.Context, db *gorm.DB, id string, delta int, now time.Time) error {
	expr := gorm.Expr("like_count + 1")
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")
	}
	res := db.WithContext(ctx).
		Model(&domain.Design{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"like_count": expr, "updated_at": domain.Millis(now)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementBoostCount adds one to a design's boost counter.
func IncrementBoostCount(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Design{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"boost_count": gorm.Expr("boost_count + 1"), "updated_at": domain.Millis(now)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Counters re-reads the counters of a design.
func Counters(ctx context.Context, db *gorm.DB, id string) (likes, boosts int64, err error) {
	var row struct {
		LikeCount  int64
		BoostCount int64
	}
	res := db.WithContext(ctx).
		Model(&domain.Design{}).
		Select("like_count", "boost_count").
		Where("id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, 0, ErrNotFound
	}
	return row.LikeCount, row.BoostCount, nil
}

// Entry projects a design onto the fields orderings need.
func Entry(d domain.Design) ranking.Entry {
	return ranking.Entry{
		ID:         d.ID,
		LikeCount:  d.LikeCount,
		BoostCount: d.BoostCount,
		GroupTag:   d.GroupTag,
		CreatedAt:  d.CreatedAt,
	}
}
