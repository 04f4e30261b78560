// Package domain defines the persistence models for designs and the
// engagement facts attached to them (likes, boosts, notifications). These
// types are mapped with GORM and form the core data layer of the engagement
// and ranking engine.
package domain

import "time"

// Visibility values for Design.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Design is the engaged-with entity. Its counters are mutated only by the
// engagement transactions; every other field is owned by the publish
// workflow.
//
// Fields:
//   - ID: opaque string primary key.
//   - OwnerID: identity of the creator (indexed for owner feeds).
//   - Visibility: "public" or "private"; only public designs are servable by feeds.
//   - LikeCount / BoostCount: aggregate counters, never negative.
//   - GroupTag: normalized group-affinity tag (empty when absent).
//   - ConceptTag: concept tag used for filtering.
//   - CreatedAt: creation instant, millisecond resolution, UTC.
//   - UpdatedAt: bumped by every counter mutation (feeds use it for ETags).
type Design struct {
	ID         string    `json:"id"          gorm:"type:varchar(64);primaryKey"`
	OwnerID    string    `json:"owner_id"    gorm:"type:varchar(64);not null;index:idx_designs_owner"`
	Visibility string    `json:"visibility"  gorm:"type:varchar(16);not null;default:'public';index:idx_designs_visibility;check:visibility IN ('public','private')"`
	LikeCount  int64     `json:"like_count"  gorm:"not null;default:0;check:like_count >= 0"`
	BoostCount int64     `json:"boost_count" gorm:"not null;default:0;check:boost_count >= 0"`
	GroupTag   string    `json:"group_tag,omitempty"   gorm:"type:varchar(128);not null;default:'';index:idx_designs_group"`
	ConceptTag string    `json:"concept_tag,omitempty" gorm:"type:varchar(128);not null;default:'';index:idx_designs_concept"`
	CreatedAt  time.Time `json:"created_at"  gorm:"not null;index:idx_designs_created"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Design.
func (Design) TableName() string { return "designs" }

// IsPublic reports whether the design can be served through feeds.
func (d Design) IsPublic() bool { return d.Visibility == VisibilityPublic }

// Like is the existence record meaning "ActorID likes DesignID". It has no
// update semantics: it is created or deleted by the toggle transaction.
type Like struct {
	DesignID  string    `json:"design_id"  gorm:"type:varchar(64);primaryKey"`
	ActorID   string    `json:"actor_id"   gorm:"type:varchar(64);primaryKey;index:idx_likes_actor"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`

	// Design is the liked entity.
	Design Design `json:"-" gorm:"foreignKey:DesignID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Like.
func (Like) TableName() string { return "likes" }

// BoostLedger is the global per-actor rate-limit ledger. It is keyed by the
// actor only, so the cooldown spans every design.
type BoostLedger struct {
	ActorID         string    `json:"actor_id"          gorm:"type:varchar(64);primaryKey"`
	LastBoostAt     time.Time `json:"last_boost_at"     gorm:"not null"`
	TotalBoostCount int64     `json:"total_boost_count" gorm:"not null;default:0"`
}

// TableName returns the database table name for BoostLedger.
func (BoostLedger) TableName() string { return "boost_ledger" }

// BoostRecord counts how many times an actor boosted one design.
type BoostRecord struct {
	DesignID    string    `json:"design_id"     gorm:"type:varchar(64);primaryKey"`
	ActorID     string    `json:"actor_id"      gorm:"type:varchar(64);primaryKey"`
	Count       int64     `json:"count"         gorm:"not null;default:0"`
	LastBoostAt time.Time `json:"last_boost_at" gorm:"not null"`

	// Design is the boosted entity.
	Design Design `json:"-" gorm:"foreignKey:DesignID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for BoostRecord.
func (BoostRecord) TableName() string { return "boost_records" }

// Notification is a record addressed to a design owner. Delivery is handled
// elsewhere; this service only writes the record.
type Notification struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	RecipientID string    `json:"recipient_id" gorm:"type:varchar(64);not null;index:idx_notifications_recipient"`
	Kind        string    `json:"kind"         gorm:"type:varchar(32);not null"`
	RelatedID   string    `json:"related_id"   gorm:"type:varchar(64);not null"`
	Message     string    `json:"message"      gorm:"type:text;not null"`
	Read        bool      `json:"read"         gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"   gorm:"not null"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Millis truncates t to millisecond resolution in UTC, the canonical instant
// representation used for every stored timestamp.
func Millis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
