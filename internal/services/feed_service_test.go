package services

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/domain"
	"github.com/tbourn/go-design-engagement/internal/ranking"
	"github.com/tbourn/go-design-engagement/internal/repo"
)

// seedGallery inserts n public designs with random counters (including many
// score ties) and a few private ones.
func seedGallery(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	r := rand.New(rand.NewSource(42))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	groups := []string{"alpha", "beta", "gamma", ""}
	for i := 0; i < n; i++ {
		seed(t, db, domain.Design{
			ID:         fmt.Sprintf("d%03d", i),
			OwnerID:    fmt.Sprintf("owner-%d", i%3),
			LikeCount:  int64(r.Intn(5)),
			BoostCount: int64(r.Intn(2)),
			GroupTag:   groups[i%len(groups)],
			ConceptTag: fmt.Sprintf("c%d", i%2),
			// consecutive pairs share a timestamp to exercise the id tie-break
			CreatedAt: base.Add(time.Duration(i/2) * time.Hour),
		})
	}
	for i := 0; i < 3; i++ {
		seed(t, db, domain.Design{
			ID: fmt.Sprintf("p%02d", i), OwnerID: "owner-0", Visibility: domain.VisibilityPrivate,
			LikeCount: 1000, GroupTag: "alpha", CreatedAt: base.Add(1000 * time.Hour),
		})
	}
}

func walk(t *testing.T, svc *FeedService, q FeedQuery) []FeedItem {
	t.Helper()
	var out []FeedItem
	for guard := 0; guard < 1000; guard++ {
		page, err := svc.Page(context.Background(), q)
		require.NoError(t, err)
		out = append(out, page.Items...)
		if page.NextCursor == nil {
			assert.Less(t, len(page.Items), svc.pageSize(q.PageSize), "short page expected when no cursor")
			return out
		}
		assert.Len(t, page.Items, svc.pageSize(q.PageSize))
		q.Cursor = *page.NextCursor
	}
	t.Fatalf("pagination did not terminate")
	return nil
}

func expectedOrder(t *testing.T, db *gorm.DB, less ranking.Less, keep func(domain.Design) bool) []string {
	t.Helper()
	ds, err := repo.ListFeedCandidates(context.Background(), db, repo.FeedFilter{})
	require.NoError(t, err)
	var entries []ranking.Entry
	for _, d := range ds {
		if keep == nil || keep(d) {
			entries = append(entries, repo.Entry(d))
		}
	}
	ranking.Sort(entries, less)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func ids(items []FeedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestFeed_PaginationTotality(t *testing.T) {
	db := newTestDB(t)
	seedGallery(t, db, 57)
	svc := &FeedService{DB: db}

	for _, tc := range []struct {
		sort SortMode
		less ranking.Less
	}{
		{SortNewest, ranking.Newest},
		{SortPopular, ranking.Popular},
	} {
		t.Run(string(tc.sort), func(t *testing.T) {
			got := ids(walk(t, svc, FeedQuery{Sort: tc.sort, PageSize: 12}))
			want := expectedOrder(t, db, tc.less, nil)
			require.Len(t, want, 57)
			assert.Equal(t, want, got)
		})
	}
}

func TestFeed_DefaultPageSizeAndNextCursorRule(t *testing.T) {
	db := newTestDB(t)
	seedGallery(t, db, 24)
	svc := &FeedService{DB: db}
	ctx := context.Background()

	p1, err := svc.Page(ctx, FeedQuery{})
	require.NoError(t, err)
	assert.Len(t, p1.Items, 12)
	require.NotNil(t, p1.NextCursor)
	assert.True(t, p1.HasMore)

	// Exactly full last page still yields a cursor; the follow-up is empty.
	p2, err := svc.Page(ctx, FeedQuery{Cursor: *p1.NextCursor})
	require.NoError(t, err)
	assert.Len(t, p2.Items, 12)
	require.NotNil(t, p2.NextCursor)
	assert.False(t, p2.HasMore)

	p3, err := svc.Page(ctx, FeedQuery{Cursor: *p2.NextCursor})
	require.NoError(t, err)
	assert.Empty(t, p3.Items)
	assert.Nil(t, p3.NextCursor)

	big, err := svc.Page(ctx, FeedQuery{PageSize: 10_000})
	require.NoError(t, err)
	assert.Len(t, big.Items, 24, "clamped to max page size, which exceeds the set")
	assert.Nil(t, big.NextCursor)
}

func TestFeed_PrivateNeverServed(t *testing.T) {
	db := newTestDB(t)
	seedGallery(t, db, 10)
	svc := &FeedService{DB: db}

	for _, sm := range []SortMode{SortNewest, SortPopular, SortRecommended} {
		for _, it := range walk(t, svc, FeedQuery{Sort: sm, PageSize: 4, Affinity: []string{"alpha"}}) {
			assert.NotContains(t, it.ID, "p", "private design %s served by %s", it.ID, sm)
		}
	}

	_, err := svc.Get(context.Background(), "p00")
	assert.ErrorIs(t, err, ErrDesignNotFound)
	item, err := svc.Get(context.Background(), "d001")
	require.NoError(t, err)
	assert.Equal(t, ranking.Score(item.LikeCount, item.BoostCount), item.Score)
}

func TestFeed_Filters(t *testing.T) {
	db := newTestDB(t)
	seedGallery(t, db, 30)
	svc := &FeedService{DB: db}

	byOwner := walk(t, svc, FeedQuery{OwnerID: "owner-1", PageSize: 5})
	assert.Equal(t, expectedOrder(t, db, ranking.Newest, func(d domain.Design) bool { return d.OwnerID == "owner-1" }), ids(byOwner))

	byGroup := walk(t, svc, FeedQuery{Sort: SortPopular, GroupTag: "#Beta ", PageSize: 5})
	assert.Equal(t, expectedOrder(t, db, ranking.Popular, func(d domain.Design) bool { return d.GroupTag == "beta" }), ids(byGroup))

	both := walk(t, svc, FeedQuery{GroupTag: "alpha", ConceptTag: "C0", PageSize: 5})
	assert.Equal(t, expectedOrder(t, db, ranking.Newest, func(d domain.Design) bool {
		return d.GroupTag == "alpha" && d.ConceptTag == "c0"
	}), ids(both))
}

func TestFeed_LikedByFilter(t *testing.T) {
	db := newTestDB(t)
	seedGallery(t, db, 20)
	svc := &FeedService{DB: db}
	eng, _ := newEngagement(t, db, nil)
	ctx := context.Background()

	liked := map[string]bool{"d002": true, "d007": true, "d015": true, "p01": true}
	for id := range liked {
		_, err := eng.SetLike(ctx, id, "fan", true)
		require.NoError(t, err)
	}

	got := walk(t, svc, FeedQuery{LikedBy: "fan", PageSize: 2})
	want := expectedOrder(t, db, ranking.Newest, func(d domain.Design) bool { return liked[d.ID] })
	assert.Equal(t, want, ids(got))
	assert.Len(t, got, 3, "private liked design is filtered out")

	none, err := svc.Page(ctx, FeedQuery{LikedBy: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, none.Items)
	assert.Nil(t, none.NextCursor)
}

func TestFeed_RecommendedPartitionAcrossPages(t *testing.T) {
	db := newTestDB(t)
	seedGallery(t, db, 40)
	// A very popular unmatched design must still come after every match.
	seed(t, db, domain.Design{ID: "hot", OwnerID: "x", LikeCount: 900, BoostCount: 9, GroupTag: "gamma"})
	svc := &FeedService{DB: db}

	q := FeedQuery{Sort: SortRecommended, Affinity: []string{"Alpha", "BETA"}, PageSize: 7}
	got := walk(t, svc, q)

	aff := ranking.NewAffinity("alpha", "beta")
	ds, err := repo.ListFeedCandidates(context.Background(), db, repo.FeedFilter{})
	require.NoError(t, err)
	entries := make([]ranking.Entry, len(ds))
	for i, d := range ds {
		entries[i] = repo.Entry(d)
	}
	want := ranking.MergeRecommended(entries, aff)
	wantIDs := make([]string, len(want))
	for i, e := range want {
		wantIDs[i] = e.ID
	}
	assert.Equal(t, wantIDs, ids(got))

	seenRest := false
	for _, it := range got {
		matched := it.GroupTag == "alpha" || it.GroupTag == "beta"
		if matched {
			require.False(t, seenRest, "matched %s served after an unmatched item", it.ID)
		} else {
			seenRest = true
		}
	}
}

func TestFeed_CursorEdgeCases(t *testing.T) {
	db := newTestDB(t)
	seedGallery(t, db, 15)
	svc := &FeedService{DB: db}
	ctx := context.Background()

	_, err := svc.Page(ctx, FeedQuery{Cursor: "ghost"})
	assert.ErrorIs(t, err, ErrInvalidCursor)

	// a private design is indistinguishable from a missing one
	for _, sm := range []SortMode{SortNewest, SortPopular, SortRecommended} {
		_, err = svc.Page(ctx, FeedQuery{Sort: sm, Cursor: "p00", Affinity: []string{"alpha"}})
		assert.ErrorIs(t, err, ErrInvalidCursor, "sort %s", sm)
	}

	_, err = svc.Page(ctx, FeedQuery{Sort: "trending"})
	assert.ErrorIs(t, err, ErrInvalidSort)

	// A cursor outside the filtered set is positioned by its own sort keys.
	all := walk(t, svc, FeedQuery{PageSize: 100})
	page, err := svc.Page(ctx, FeedQuery{OwnerID: "owner-1", Cursor: all[4].ID, PageSize: 100})
	require.NoError(t, err)
	want := expectedOrder(t, db, ranking.Newest, func(d domain.Design) bool { return d.OwnerID == "owner-1" })
	var after []string
	cursor := repo.Entry(domain.Design{ID: all[4].ID, CreatedAt: all[4].CreatedAt})
	for _, id := range want {
		d, err := repo.GetDesign(ctx, db, id)
		require.NoError(t, err)
		if ranking.Newest(cursor, repo.Entry(*d)) {
			after = append(after, id)
		}
	}
	assert.Equal(t, after, ids(page.Items))
}

func TestFeed_StatsTracksMutations(t *testing.T) {
	db := newTestDB(t)
	seedGallery(t, db, 5)
	svc := &FeedService{DB: db}
	eng, clk := newEngagement(t, db, nil)
	ctx := context.Background()

	fp1, err := svc.Stats(ctx, FeedQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, fp1.Count)

	clk.Advance(24 * 365 * time.Hour)
	_, err = eng.ToggleLike(ctx, "d001", "alice")
	require.NoError(t, err)

	fp2, err := svc.Stats(ctx, FeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, fp1.Count, fp2.Count)
	assert.Equal(t, fp1.Likes+1, fp2.Likes)
	require.NotNil(t, fp1.MaxUpdatedAt)
	require.NotNil(t, fp2.MaxUpdatedAt)
	assert.True(t, fp2.MaxUpdatedAt.After(*fp1.MaxUpdatedAt))
}

func TestRanking_RanksByPosition(t *testing.T) {
	db := newTestDB(t)
	seedGallery(t, db, 70)
	svc := &FeedService{DB: db}
	ctx := context.Background()

	top, err := svc.Ranking(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, DefaultRankingLimit)
	want := expectedOrder(t, db, ranking.Popular, nil)[:DefaultRankingLimit]
	for i, it := range top {
		assert.Equal(t, i+1, it.Rank)
		assert.Equal(t, want[i], it.ID)
	}

	top, err = svc.Ranking(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, top, 5)

	top, err = svc.Ranking(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, top, DefaultRankingLimit)
}

func TestParseSort(t *testing.T) {
	for in, want := range map[string]SortMode{"": SortNewest, "Newest": SortNewest, "popular": SortPopular, " recommended ": SortRecommended} {
		got, err := ParseSort(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseSort("hot")
	assert.ErrorIs(t, err, ErrInvalidSort)
}
