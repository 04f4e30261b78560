// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the per-actor
// boost ledger and the per-(design, actor) boost records.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-design-engagement/internal/domain"
)

// ErrStale is returned when a conditional ledger update matched no row
// because another transaction advanced the ledger first.
var ErrStale = errors.New("stale ledger")

// GetBoostLedger returns the actor's ledger or ErrNotFound.
func GetBoostLedger(ctx context.Context, db *gorm.DB, actorID string) (*domain.BoostLedger, error) {
	var l domain.BoostLedger
	if err := db.WithContext(ctx).Where("actor_id = ?", actorID).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertBoostLedger creates the first ledger row for an actor. A concurrent
// first boost by the same actor surfaces as ErrDuplicate.
func InsertBoostLedger(ctx context.Context, db *gorm.DB, actorID string, now time.Time) (*domain.BoostLedger, error) {
	l := &domain.BoostLedger{ActorID: actorID, LastBoostAt: domain.Millis(now), TotalBoostCount: 1}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return l, nil
}

// AdvanceBoostLedger records a new boost for an actor whose ledger was read
// with total == prev.TotalBoostCount. The update is conditional on that total,
// so two transactions that both passed the cooldown check cannot both
// advance it; the loser gets ErrStale.
func AdvanceBoostLedger(ctx context.Context, db *gorm.DB, prev *domain.BoostLedger, now time.Time) (*domain.BoostLedger, error) {
	res := db.WithContext(ctx).
		Model(&domain.BoostLedger{}).
		Where("actor_id = ? AND total_boost_count = ?", prev.ActorID, prev.TotalBoostCount).
		UpdateColumns(map[string]any{
			"last_boost_at":     domain.Millis(now),
			"total_boost_count": gorm.Expr("total_boost_count + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStale
	}
	return &domain.BoostLedger{
		ActorID:         prev.ActorID,
		LastBoostAt:     domain.Millis(now),
		TotalBoostCount: prev.TotalBoostCount + 1,
	}, nil
}

// UpsertBoostRecord increments the (design, actor) boost count, creating the
// record on first boost, and returns the new count.
func UpsertBoostRecord(ctx context.Context, db *gorm.DB, designID, actorID string, now time.Time) (int64, error) {
	rec := &domain.BoostRecord{DesignID: designID, ActorID: actorID, Count: 1, LastBoostAt: domain.Millis(now)}
	err := db.WithContext(ctx).
		Omit("Design").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "design_id"}, {Name: "actor_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":         gorm.Expr("boost_records.count + 1"),
				"last_boost_at": domain.Millis(now),
			}),
		}).
		Create(rec).Error
	if err != nil {
		return 0, err
	}
	return BoostRecordCount(ctx, db, designID, actorID)
}

// BoostRecordCount returns how many times actorID boosted designID (0 when
// never).
func BoostRecordCount(ctx context.Context, db *gorm.DB, designID, actorID string) (int64, error) {
	var counts []int64
	err := db.WithContext(ctx).
		Model(&domain.BoostRecord{}).
		Where("design_id = ? AND actor_id = ?", designID, actorID).
		Limit(1).
		Pluck("count", &counts).Error
	if err != nil || len(counts) == 0 {
		return 0, err
	}
	return counts[0], nil
}
