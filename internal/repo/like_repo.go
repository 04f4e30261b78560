// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Like
// existence records.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/domain"
)

// HasLike reports whether actorID currently likes designID.
func HasLike(ctx context.Context, db *gorm.DB, designID, actorID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Like{}).
		Where("design_id = ? AND actor_id = ?", designID, actorID).
		Count(&n).Error
	return n > 0, err
}

// InsertLike creates the like record. A concurrent insert of the same pair
// surfaces as ErrDuplicate.
func InsertLike(ctx context.Context, db *gorm.DB, designID, actorID string, now time.Time) error {
	l := &domain.Like{DesignID: designID, ActorID: actorID, CreatedAt: domain.Millis(now)}
	if err := db.WithContext(ctx).Omit("Design").Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteLike removes the like record and reports whether a row was removed.
func DeleteLike(ctx context.Context, db *gorm.DB, designID, actorID string) (bool, error) {
	res := db.WithContext(ctx).
		Where("design_id = ? AND actor_id = ?", designID, actorID).
		Delete(&domain.Like{})
	return res.RowsAffected > 0, res.Error
}

// LikedDesignIDs lists the ids of every design actorID likes.
func LikedDesignIDs(ctx context.Context, db *gorm.DB, actorID string) ([]string, error) {
	ids := []string{}
	err := db.WithContext(ctx).
		Model(&domain.Like{}).
		Where("actor_id = ?", actorID).
		Pluck("design_id", &ids).Error
	return ids, err
}

// CountLikes counts like records for a design.
func CountLikes(ctx context.Context, db *gorm.DB, designID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Like{}).Where("design_id = ?", designID).Count(&n).Error
	return n, err
}
