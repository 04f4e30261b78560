// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/domain"
)

// FeedFingerprint summarizes the public designs matching a filter. Every
// counter mutation bumps UpdatedAt and moves Likes or Boosts, so the
// fingerprint changes whenever a page could, even when two mutations share
// an UpdatedAt millisecond.
type FeedFingerprint struct {
	Count        int64
	Likes        int64 // sum of like_count
	Boosts       int64 // sum of boost_count
	MaxUpdatedAt *time.Time
}

// FeedStats returns the fingerprint of the public designs matching f. When
// no design matches, the fingerprint is zero and MaxUpdatedAt is nil.
func FeedStats(ctx context.Context, db *gorm.DB, f FeedFilter) (FeedFingerprint, error) {
	var fp FeedFingerprint
	if f.RestrictIDs && len(f.IDs) == 0 {
		return fp, nil
	}

	var agg struct {
		Count  int64
		Likes  int64
		Boosts int64
	}
	q := f.apply(db.WithContext(ctx).Model(&domain.Design{}))
	err := q.Select("COUNT(*) AS count, COALESCE(SUM(like_count), 0) AS likes, COALESCE(SUM(boost_count), 0) AS boosts").
		Scan(&agg).Error
	if err != nil {
		return fp, err
	}
	if agg.Count == 0 {
		return fp, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	q = f.apply(db.WithContext(ctx).Model(&domain.Design{}))
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return fp, err
	}
	return FeedFingerprint{Count: agg.Count, Likes: agg.Likes, Boosts: agg.Boosts, MaxUpdatedAt: &row.UpdatedAt}, nil
}
