package engine

import "errors"

// Mutation failures are reported, never thrown: every operation returns
// a typed error the presentation layer can display while keeping prior
// state. Wrap with fmt.Errorf("...: %w", ...) and test with errors.Is.
var (
	// ErrInvalidInput marks malformed mutation input, e.g. a smart
	// string that is empty once directives are stripped.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a referenced uid or href that is absent from
	// the cache. The cache may simply be stale, so callers treat this
	// as a reported no-op, not a fatal condition.
	ErrNotFound = errors.New("not found")
)
