// Package services – Notifier
//
// This file implements the owner-notification side effect of a like. The
// emitter is best-effort: it runs after the like transaction committed, makes
// at most one attempt, and swallows and logs every failure so that a broken
// sink can never fail or roll back a like. A circuit breaker in front of the
// sink stops hammering it while it is down.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/domain"
	"github.com/tbourn/go-design-engagement/internal/observability"
	"github.com/tbourn/go-design-engagement/internal/repo"
)

// NotificationKindLike is the kind recorded for a new like.
const NotificationKindLike = "like"

// NotificationSink accepts fire-and-forget notifications for an owner.
type NotificationSink interface {
	Enqueue(ctx context.Context, ownerID, kind, relatedID, message string) error
}

// SyntheticIdentities recognises actors that are not real people (simulation
// agents, bots). They never receive notifications.
type SyntheticIdentities interface {
	IsSynthetic(actorID string) bool
}

// PrefixSynthetic treats any identity starting with one of its prefixes as
// synthetic.
type PrefixSynthetic []string

// IsSynthetic implements SyntheticIdentities.
func (p PrefixSynthetic) IsSynthetic(actorID string) bool {
	for _, pre := range p {
		if pre != "" && strings.HasPrefix(actorID, pre) {
			return true
		}
	}
	return false
}

// GormSink writes notifications to the notifications table.
type GormSink struct {
	DB  *gorm.DB
	Now func() time.Time
}

// Enqueue implements NotificationSink.
func (s *GormSink) Enqueue(ctx context.Context, ownerID, kind, relatedID, message string) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	_, err := repo.CreateNotification(ctx, s.DB, ownerID, kind, relatedID, message, now())
	return err
}

// NotifierOptions tunes the sink circuit breaker.
type NotifierOptions struct {
	// BreakerFailures is the number of consecutive sink failures that opens
	// the breaker (default 5).
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before letting a
	// trial call through (default 30s).
	BreakerTimeout time.Duration
}

// Notifier decides whether a like deserves a notification and emits it.
type Notifier struct {
	Sink      NotificationSink
	Synthetic SyntheticIdentities

	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewNotifier wires a sink behind a circuit breaker. synthetic may be nil.
func NewNotifier(sink NotificationSink, synthetic SyntheticIdentities, opt NotifierOptions) *Notifier {
	if opt.BreakerFailures == 0 {
		opt.BreakerFailures = 5
	}
	if opt.BreakerTimeout <= 0 {
		opt.BreakerTimeout = 30 * time.Second
	}
	failures := opt.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notification-sink",
		MaxRequests: 1,
		Timeout:     opt.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("notification breaker state change")
		},
	})
	return &Notifier{Sink: sink, Synthetic: synthetic, cb: cb}
}

// LikeReceived emits a like notification to the design owner. Self-likes and
// synthetic owners are skipped. It never returns an error.
func (n *Notifier) LikeReceived(ctx context.Context, d *domain.Design, actorID string) {
	if n == nil || n.Sink == nil || d == nil {
		return
	}
	if d.OwnerID == "" || d.OwnerID == actorID {
		observability.Notifications.WithLabelValues("skipped_self").Inc()
		return
	}
	if n.Synthetic != nil && n.Synthetic.IsSynthetic(d.OwnerID) {
		observability.Notifications.WithLabelValues("skipped_synthetic").Inc()
		return
	}

	_, err := n.cb.Execute(func() (struct{}, error) {
		return struct{}{}, n.Sink.Enqueue(ctx, d.OwnerID, NotificationKindLike, d.ID, "Someone liked your design")
	})
	switch {
	case err == nil:
		observability.Notifications.WithLabelValues("sent").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.Notifications.WithLabelValues("breaker_open").Inc()
		log.Ctx(ctx).Debug().Str("design_id", d.ID).Msg("notification dropped, breaker open")
	default:
		observability.Notifications.WithLabelValues("failed").Inc()
		log.Ctx(ctx).Warn().Err(err).Str("design_id", d.ID).Str("owner_id", d.OwnerID).Msg("notification failed")
	}
}
