// Package utils provides small, generic helpers used by the HTTP layer.
// They are independent of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// PositiveInt parses a query value as a positive int. Empty, malformed,
// zero and negative input yield def; values above max are clamped to max
// when max > 0.
//
// Example:
//
//	n := utils.PositiveInt("42", 0, 100)  // 42
//	n = utils.PositiveInt("", 12, 100)    // 12
//	n = utils.PositiveInt("-3", 12, 100)  // 12
//	n = utils.PositiveInt("500", 12, 100) // 100
func PositiveInt(s string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
