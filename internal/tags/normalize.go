// Package tags normalizes the free-form group and concept tags attached to
// designs so that filters and affinity sets compare equal regardless of
// case, Unicode composition, surrounding whitespace or a leading '#'.
//
// Normalization is deterministic and idempotent: Normalize(Normalize(s)) ==
// Normalize(s).
package tags

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MaxRunes caps a normalized tag. Longer input is clipped.
const MaxRunes = 64

var (
	folder = cases.Fold()
	// spaceRE collapses runs of whitespace, underscores and hyphens to one
	// hyphen, so "Lo Fi", "lo_fi" and "lo--fi" all map to "lo-fi".
	spaceRE = regexp.MustCompile(`[\s_\-]+`)
)

// Normalize returns the canonical form of a tag, or "" when nothing is left.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "#")
	s = folder.String(s)
	s = spaceRE.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if utf8.RuneCountInString(s) > MaxRunes {
		s = strings.TrimRight(string([]rune(s)[:MaxRunes]), "-")
	}
	return s
}

// NormalizeAll normalizes a list, dropping empty results and duplicates while
// keeping first-seen order.
func NormalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		t := Normalize(raw)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SplitCSV splits a comma-separated query value and normalizes each part.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeAll(strings.Split(s, ","))
}
