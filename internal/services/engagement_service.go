// Package services – EngagementService
//
// This file implements the write path of the engine: likes and boosts. Every
// mutation is a single transaction run by txn.Manager, which retries
// transient storage conflicts with bounded backoff. Business-rule failures
// (ErrDesignNotFound, *CooldownError) are never retried.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry the design and actor identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/domain"
	"github.com/tbourn/go-design-engagement/internal/observability"
	"github.com/tbourn/go-design-engagement/internal/repo"
	"github.com/tbourn/go-design-engagement/internal/txn"
)

// DefaultBoostCooldown is the global per-actor boost window.
const DefaultBoostCooldown = 7 * 24 * time.Hour

// LikeResult is the outcome of a like mutation.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

// LikeState reports whether an actor likes a design.
type LikeState struct {
	Liked bool `json:"liked"`
}

// BoostResult is the outcome of a successful boost.
type BoostResult struct {
	Boosted         bool      `json:"boosted"`
	BoostCount      int64     `json:"boost_count"`
	UserBoostCount  int64     `json:"user_boost_count"`
	NextAvailableAt time.Time `json:"next_available_at"`
}

// BoostState reports an actor's boost standing for one design.
// NextAvailableAt is nil when the actor has never boosted anything.
type BoostState struct {
	Boosted         bool       `json:"boosted"`
	UserBoostCount  int64      `json:"user_boost_count"`
	CanBoost        bool       `json:"can_boost"`
	NextAvailableAt *time.Time `json:"next_available_at"`
}

// EngagementService owns likes and boosts.
type EngagementService struct {
	DB       *gorm.DB
	Tx       *txn.Manager
	Notifier *Notifier // optional
	Cooldown time.Duration
	Now      func() time.Time
}

func (s *EngagementService) now() time.Time {
	if s.Now != nil {
		return domain.Millis(s.Now())
	}
	return domain.Millis(time.Now())
}

func (s *EngagementService) cooldown() time.Duration {
	if s.Cooldown > 0 {
		return s.Cooldown
	}
	return DefaultBoostCooldown
}

func (s *EngagementService) tx() *txn.Manager {
	if s.Tx != nil {
		return s.Tx
	}
	return txn.New(s.DB, txn.Options{})
}

// ToggleLike flips the actor's like on a design: an existing like is removed
// (counter decremented, floored at zero), otherwise one is created (counter
// incremented) and the owner is notified after commit.
func (s *EngagementService) ToggleLike(ctx context.Context, designID, actorID string) (*LikeResult, error) {
	ctx, span := otel.Tracer("services/EngagementService").Start(ctx, "ToggleLike",
		trace.WithAttributes(attribute.String("design.id", designID), attribute.String("actor.id", actorID)),
	)
	defer span.End()

	res, err := s.mutateLike(ctx, "like.toggle", designID, actorID, nil)
	return res, spanErr(span, err)
}

// SetLike moves the actor's like to the desired state and is a no-op when it
// already holds. Replaying it is safe.
func (s *EngagementService) SetLike(ctx context.Context, designID, actorID string, liked bool) (*LikeResult, error) {
	ctx, span := otel.Tracer("services/EngagementService").Start(ctx, "SetLike",
		trace.WithAttributes(
			attribute.String("design.id", designID),
			attribute.String("actor.id", actorID),
			attribute.Bool("liked", liked),
		),
	)
	defer span.End()

	res, err := s.mutateLike(ctx, "like.set", designID, actorID, &liked)
	return res, spanErr(span, err)
}

// mutateLike runs the like transaction. desired == nil toggles.
func (s *EngagementService) mutateLike(ctx context.Context, op, designID, actorID string, desired *bool) (*LikeResult, error) {
	if err := checkPair(designID, actorID); err != nil {
		return nil, err
	}

	var (
		res    LikeResult
		design *domain.Design
		action string
	)
	err := s.tx().Run(ctx, op, func(tx *gorm.DB) error {
		now := s.now()
		d, err := repo.GetDesign(ctx, tx, designID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrDesignNotFound
			}
			return err
		}
		design = d

		has, err := repo.HasLike(ctx, tx, designID, actorID)
		if err != nil {
			return err
		}
		want := !has
		if desired != nil {
			want = *desired
		}

		switch {
		case want == has:
			action = "noop"
		case want:
			if err := repo.InsertLike(ctx, tx, designID, actorID, now); err != nil {
				if errors.Is(err, repo.ErrDuplicate) {
					return txn.ErrConflict
				}
				return err
			}
			if err := repo.AdjustLikeCount(ctx, tx, designID, +1, now); err != nil {
				return err
			}
			action = "like"
		default:
			removed, err := repo.DeleteLike(ctx, tx, designID, actorID)
			if err != nil {
				return err
			}
			if !removed {
				return txn.ErrConflict
			}
			if err := repo.AdjustLikeCount(ctx, tx, designID, -1, now); err != nil {
				return err
			}
			action = "unlike"
		}

		likes, _, err := repo.Counters(ctx, tx, designID)
		if err != nil {
			return err
		}
		res = LikeResult{Liked: want, LikeCount: likes}
		return nil
	})
	if err != nil {
		return nil, mapTxErr(err)
	}

	observability.LikeToggles.WithLabelValues(action).Inc()
	if action == "like" {
		s.Notifier.LikeReceived(ctx, design, actorID)
	}
	return &res, nil
}

// GetLikeState reports whether actorID likes designID.
func (s *EngagementService) GetLikeState(ctx context.Context, designID, actorID string) (*LikeState, error) {
	ctx, span := otel.Tracer("services/EngagementService").Start(ctx, "GetLikeState",
		trace.WithAttributes(attribute.String("design.id", designID), attribute.String("actor.id", actorID)),
	)
	defer span.End()

	if err := checkPair(designID, actorID); err != nil {
		return nil, err
	}
	if err := s.ensureDesign(ctx, designID); err != nil {
		return nil, spanErr(span, err)
	}
	has, err := repo.HasLike(ctx, s.DB, designID, actorID)
	if err != nil {
		return nil, spanErr(span, err)
	}
	return &LikeState{Liked: has}, nil
}

// Boost spends the actor's global boost on a design. Inside the cooldown
// window it fails with *CooldownError and writes nothing; otherwise the
// design counter, the (design, actor) record and the actor ledger are
// updated in one transaction together with the cooldown check.
func (s *EngagementService) Boost(ctx context.Context, designID, actorID string) (*BoostResult, error) {
	ctx, span := otel.Tracer("services/EngagementService").Start(ctx, "Boost",
		trace.WithAttributes(attribute.String("design.id", designID), attribute.String("actor.id", actorID)),
	)
	defer span.End()

	if err := checkPair(designID, actorID); err != nil {
		return nil, err
	}

	var res BoostResult
	err := s.tx().Run(ctx, "boost", func(tx *gorm.DB) error {
		now := s.now()
		if _, err := repo.GetDesign(ctx, tx, designID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrDesignNotFound
			}
			return err
		}

		ledger, err := repo.GetBoostLedger(ctx, tx, actorID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if ledger != nil {
			next := ledger.LastBoostAt.Add(s.cooldown())
			if now.Before(next) {
				return &CooldownError{NextAvailableAt: domain.Millis(next)}
			}
		}

		if err := repo.IncrementBoostCount(ctx, tx, designID, now); err != nil {
			return err
		}
		userCount, err := repo.UpsertBoostRecord(ctx, tx, designID, actorID, now)
		if err != nil {
			return err
		}
		if ledger == nil {
			_, err = repo.InsertBoostLedger(ctx, tx, actorID, now)
		} else {
			_, err = repo.AdvanceBoostLedger(ctx, tx, ledger, now)
		}
		if errors.Is(err, repo.ErrDuplicate) || errors.Is(err, repo.ErrStale) {
			return txn.ErrConflict
		}
		if err != nil {
			return err
		}

		_, boosts, err := repo.Counters(ctx, tx, designID)
		if err != nil {
			return err
		}
		res = BoostResult{
			Boosted:         true,
			BoostCount:      boosts,
			UserBoostCount:  userCount,
			NextAvailableAt: now.Add(s.cooldown()),
		}
		return nil
	})
	if err != nil {
		var cd *CooldownError
		switch {
		case errors.As(err, &cd):
			observability.Boosts.WithLabelValues("cooldown").Inc()
			span.SetAttributes(attribute.String("boost.next_available_at", cd.NextAvailableAt.Format(time.RFC3339)))
			return nil, err
		case errors.Is(err, ErrDesignNotFound):
			observability.Boosts.WithLabelValues("not_found").Inc()
		default:
			observability.Boosts.WithLabelValues("error").Inc()
		}
		return nil, spanErr(span, mapTxErr(err))
	}
	observability.Boosts.WithLabelValues("ok").Inc()
	return &res, nil
}

// GetBoostState reports whether the actor has boosted the design, how often,
// and when the actor's global boost is available again.
func (s *EngagementService) GetBoostState(ctx context.Context, designID, actorID string) (*BoostState, error) {
	ctx, span := otel.Tracer("services/EngagementService").Start(ctx, "GetBoostState",
		trace.WithAttributes(attribute.String("design.id", designID), attribute.String("actor.id", actorID)),
	)
	defer span.End()

	if err := checkPair(designID, actorID); err != nil {
		return nil, err
	}
	if err := s.ensureDesign(ctx, designID); err != nil {
		return nil, spanErr(span, err)
	}

	count, err := repo.BoostRecordCount(ctx, s.DB, designID, actorID)
	if err != nil {
		return nil, spanErr(span, err)
	}
	st := &BoostState{Boosted: count > 0, UserBoostCount: count, CanBoost: true}

	ledger, err := repo.GetBoostLedger(ctx, s.DB, actorID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return st, nil
	case err != nil:
		return nil, spanErr(span, err)
	}
	next := domain.Millis(ledger.LastBoostAt.Add(s.cooldown()))
	st.NextAvailableAt = &next
	st.CanBoost = !s.now().Before(next)
	return st, nil
}

func (s *EngagementService) ensureDesign(ctx context.Context, designID string) error {
	if _, err := repo.GetDesign(ctx, s.DB, designID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDesignNotFound
		}
		return err
	}
	return nil
}

// mapTxErr turns an exhausted retry budget into ErrStorageBusy and leaves
// every other error untouched.
func mapTxErr(err error) error {
	if errors.Is(err, txn.ErrTransient) {
		return fmt.Errorf("%w: %w", ErrStorageBusy, err)
	}
	return err
}

// spanErr records unexpected errors on the span and returns err.
func spanErr(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	var cd *CooldownError
	if errors.Is(err, ErrDesignNotFound) || errors.Is(err, ErrInvalidInput) || errors.As(err, &cd) {
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
