package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tbourn/go-design-engagement/internal/domain"
	"github.com/tbourn/go-design-engagement/internal/observability"
)

func TestPrefixSynthetic(t *testing.T) {
	p := PrefixSynthetic{"sim-", "", "bot-"}
	assert.True(t, p.IsSynthetic("sim-42"))
	assert.True(t, p.IsSynthetic("bot-x"))
	assert.False(t, p.IsSynthetic("simon"))
	assert.False(t, p.IsSynthetic("alice"))
	assert.False(t, PrefixSynthetic(nil).IsSynthetic("sim-1"))
}

func TestNotifier_NilSafe(t *testing.T) {
	var n *Notifier
	n.LikeReceived(context.Background(), &domain.Design{ID: "d", OwnerID: "o"}, "a")

	n = NewNotifier(nil, nil, NotifierOptions{})
	n.LikeReceived(context.Background(), &domain.Design{ID: "d", OwnerID: "o"}, "a")
}

func TestNotifier_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}
	n := NewNotifier(sink, nil, NotifierOptions{BreakerFailures: 3, BreakerTimeout: time.Hour})
	d := &domain.Design{ID: "d1", OwnerID: "owner"}
	open := observability.Notifications.WithLabelValues("breaker_open")
	before := testutil.ToFloat64(open)

	for i := 0; i < 6; i++ {
		n.LikeReceived(context.Background(), d, "alice")
	}

	assert.Len(t, sink.Calls(), 3, "sink is not called once the breaker is open")
	assert.Equal(t, before+3, testutil.ToFloat64(open))
}

func TestNotifier_SuccessResetsFailureStreak(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(sink, nil, NotifierOptions{BreakerFailures: 2, BreakerTimeout: time.Hour})
	d := &domain.Design{ID: "d1", OwnerID: "owner"}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sink.mu.Lock()
		sink.err = errors.New("flaky")
		sink.mu.Unlock()
		n.LikeReceived(ctx, d, "alice")

		sink.mu.Lock()
		sink.err = nil
		sink.mu.Unlock()
		n.LikeReceived(ctx, d, "alice")
	}
	assert.Len(t, sink.Calls(), 6)
}

func TestNotifier_SkipRules(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(sink, PrefixSynthetic{"sim-"}, NotifierOptions{})
	ctx := context.Background()

	n.LikeReceived(ctx, &domain.Design{ID: "d1", OwnerID: "owner"}, "owner")
	n.LikeReceived(ctx, &domain.Design{ID: "d2", OwnerID: "sim-7"}, "alice")
	n.LikeReceived(ctx, &domain.Design{ID: "d3", OwnerID: ""}, "alice")
	n.LikeReceived(ctx, nil, "alice")
	assert.Empty(t, sink.Calls())

	n.LikeReceived(ctx, &domain.Design{ID: "d4", OwnerID: "owner"}, "alice")
	assert.Equal(t, []string{"owner|like|d4"}, sink.Calls())
}
