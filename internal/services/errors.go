// Package services defines the business logic for design engagement (likes,
// boosts, owner notifications) and the feed/ranking read paths.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrDesignNotFound indicates that the referenced design does not exist
	// (or, on read paths, is not public). It is never retried.
	ErrDesignNotFound = errors.New("design not found")

	// ErrInvalidInput is returned for missing or malformed identifiers. It is
	// raised before any transaction begins.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCursor is returned when a feed cursor names no known design.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrInvalidSort is returned for an unknown feed sort mode.
	ErrInvalidSort = errors.New("invalid sort mode")

	// ErrStorageBusy is returned when an engagement transaction kept
	// conflicting until its retry budget was spent.
	ErrStorageBusy = errors.New("storage busy, try again")
)

// CooldownError rejects a boost attempted inside the actor's cooldown window.
// NextAvailableAt is the exact instant the actor may boost again.
type CooldownError struct {
	NextAvailableAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("boost cooldown active until %s", e.NextAvailableAt.UTC().Format(time.RFC3339Nano))
}

// RetryAfter returns the remaining wait relative to now, never negative.
func (e *CooldownError) RetryAfter(now time.Time) time.Duration {
	if d := e.NextAvailableAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// maxIDLen bounds design and actor identifiers.
const maxIDLen = 64

// checkID validates an opaque identifier: non-blank, bounded and free of
// control characters.
func checkID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(id) > maxIDLen {
		return fmt.Errorf("%w: %s is too long", ErrInvalidInput, field)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %s contains control characters", ErrInvalidInput, field)
		}
	}
	return nil
}

func checkPair(designID, actorID string) error {
	if err := checkID("design id", designID); err != nil {
		return err
	}
	return checkID("actor id", actorID)
}
