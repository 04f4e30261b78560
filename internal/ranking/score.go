// Package ranking holds the pure ordering logic of the engine: the popularity
// score, the tie-break chains for each feed ordering, and the affinity merge
// used by the recommended feed. Nothing here performs I/O.
//
// Every ordering ends with the design id so that it is total over any
// candidate set. Cursor pagination relies on that: a cursor is the id of the
// last item served, and its position in a total order is unambiguous.
package ranking

import (
	"sort"
	"time"
)

// BoostWeight is how many likes a single boost is worth.
const BoostWeight = 10

// Score maps engagement counters to the popularity sort key.
func Score(likeCount, boostCount int64) int64 {
	return likeCount + boostCount*BoostWeight
}

// Entry is the projection of a design that orderings need.
type Entry struct {
	ID         string
	LikeCount  int64
	BoostCount int64
	GroupTag   string
	CreatedAt  time.Time
}

// Score returns the entry's popularity score.
func (e Entry) Score() int64 { return Score(e.LikeCount, e.BoostCount) }

// Less reports whether a sorts strictly before b. Implementations must be a
// strict total order.
type Less func(a, b Entry) bool

// Popular orders by score desc, like count desc, id desc.
func Popular(a, b Entry) bool {
	if sa, sb := a.Score(), b.Score(); sa != sb {
		return sa > sb
	}
	if a.LikeCount != b.LikeCount {
		return a.LikeCount > b.LikeCount
	}
	return a.ID > b.ID
}

// Newest orders by creation instant desc, id desc.
func Newest(a, b Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Sort orders entries in place.
func Sort(entries []Entry, less Less) {
	sort.Slice(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
}

// After returns the index of the first entry that sorts strictly after
// cursor. entries must already be sorted by less. The cursor does not need
// to be a member of entries: a design that left the candidate set (made
// private, filtered out) is still positioned by its sort keys.
func After(entries []Entry, cursor Entry, less Less) int {
	return sort.Search(len(entries), func(i int) bool { return less(cursor, entries[i]) })
}
