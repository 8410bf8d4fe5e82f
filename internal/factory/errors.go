package factory

import "errors"

// ErrInvariant is the umbrella for document contents that cannot form a
// factory. It is fatal to a bootstrap and leaves the running factory in
// place on reload.
var ErrInvariant = errors.New("factory: invariant violation")

// Specific invariant violations; each is reported together with ErrInvariant.
var (
	// ErrDuplicateAccess is returned when two parts claim one address.
	ErrDuplicateAccess = errors.New("factory: duplicate access")

	// ErrInvalidMaxSets is returned for a recipe with max_sets below one.
	ErrInvalidMaxSets = errors.New("factory: invalid max_sets")

	// ErrUnreachable is returned when a required access has no bus for
	// its client or fails the build-time probe.
	ErrUnreachable = errors.New("factory: unreachable access")

	// ErrDuplicateName is returned when two processes share a name.
	ErrDuplicateName = errors.New("factory: duplicate process name")
)

// Per-cycle errors.
var (
	// ErrBusFull is returned when no bus slot is free.
	ErrBusFull = errors.New("factory: bus full")

	// ErrStationBlocked is returned when a station could not be cleared
	// before loading.
	ErrStationBlocked = errors.New("factory: station blocked")

	// ErrClosed is returned by RunCycle after Close.
	ErrClosed = errors.New("factory: closed")

	// ErrPanicked wraps a panic recovered from a process.
	ErrPanicked = errors.New("factory: process panicked")
)
