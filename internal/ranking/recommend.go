package ranking

// Affinity is a set of normalized group tags the caller prefers.
type Affinity map[string]struct{}

// NewAffinity builds an affinity set from already-normalized tags. Empty tags
// are ignored.
func NewAffinity(tags ...string) Affinity {
	set := make(Affinity, len(tags))
	for _, t := range tags {
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// Matches reports whether e's group tag is in the set.
func (a Affinity) Matches(e Entry) bool {
	if e.GroupTag == "" {
		return false
	}
	_, ok := a[e.GroupTag]
	return ok
}

// Recommended returns the ordering used by the recommended feed: entries
// matching the affinity set come first, and within each partition the
// Popular ordering applies. Because Popular is total, so is the result.
func Recommended(aff Affinity) Less {
	return func(a, b Entry) bool {
		ma, mb := aff.Matches(a), aff.Matches(b)
		if ma != mb {
			return ma
		}
		return Popular(a, b)
	}
}

// MergeRecommended partitions candidates into matched and rest, sorts each
// partition by Popular and returns matched ++ rest. The input slice is not
// modified.
func MergeRecommended(candidates []Entry, aff Affinity) []Entry {
	matched := make([]Entry, 0, len(candidates))
	rest := make([]Entry, 0, len(candidates))
	for _, e := range candidates {
		if aff.Matches(e) {
			matched = append(matched, e)
		} else {
			rest = append(rest, e)
		}
	}
	Sort(matched, Popular)
	Sort(rest, Popular)
	return append(matched, rest...)
}
