package domain

import "time"

// Idempotency represents a recorded result of a previously processed
// engagement request, keyed by (user_id, design_id, key). It lets a client
// retry a toggle or boost after a dropped response and receive the original
// body instead of flipping state a second time.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_design_key,priority:1"`
	DesignID  string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_design_key,priority:2"`
	Key       string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_user_design_key,priority:3"`
	Operation string    `gorm:"type:varchar(32);not null"`
	Status    int       `gorm:"not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
