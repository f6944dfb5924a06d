/*
errors.go - Centralized error types for the tracker

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Argument errors - unsupported formats, malformed periods
  2. Lookup errors - users, entries, authorization links
  3. Resolution errors - ambiguous administrator links
  4. Cache errors - misses (expected, never surfaced to callers)

USAGE:
  if errors.Is(err, generic.ErrInvalidArgument) {
      // 400 Bad Request
  }

SEE ALSO:
  - tracker/format.go: UnsupportedFormatError
  - tracker/resolver.go: AmbiguousAdministratorError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidArgument is returned for requests the engine cannot serve,
	// such as an unknown balance output format. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEntryNotFound is returned when a referenced tracking entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrLinkNotFound is returned when an administrator has no authorization link.
	ErrLinkNotFound = errors.New("authorization link not found")

	// ErrAmbiguousAdministrator is returned when a user's links cannot be
	// resolved to a single administrator.
	ErrAmbiguousAdministrator = errors.New("ambiguous administrator")

	// ErrCacheMiss is returned by Cache.Get when the key is absent.
	ErrCacheMiss = errors.New("cache miss")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind error
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return e.Kind
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrLinkNotFound)
}
