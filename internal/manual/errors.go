package manual

import "errors"

// Domain errors for the manual package.
var (
	// ErrQueueFull is returned when the request queue is at capacity.
	ErrQueueFull = errors.New("manual: request queue full")

	// ErrInvalidRequest is returned for a request without item or count.
	ErrInvalidRequest = errors.New("manual: invalid request")

	// ErrNotFound is returned when cancelling an unknown request.
	ErrNotFound = errors.New("manual: request not found")
)
