// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for owner
// notifications.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/domain"
)

// CreateNotification inserts an unread notification for recipientID.
func CreateNotification(ctx context.Context, db *gorm.DB, recipientID, kind, relatedID, message string, now time.Time) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Kind:        kind,
		RelatedID:   relatedID,
		Message:     message,
		CreatedAt:   domain.Millis(now),
	}
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotifications returns a recipient's notifications, newest first.
// A non-positive limit means no limit.
func ListNotifications(ctx context.Context, db *gorm.DB, recipientID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	q := db.WithContext(ctx).Where("recipient_id = ?", recipientID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
