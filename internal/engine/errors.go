package engine

import "errors"

// Domain errors for the engine package.
var (
	// ErrNoFactory is returned when the holder is empty or closed.
	ErrNoFactory = errors.New("engine: no factory")

	// ErrReload wraps every failure of a reload; the old factory stays.
	ErrReload = errors.New("engine: reload rejected")
)
