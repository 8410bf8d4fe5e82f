package storage

import "errors"

// Domain errors for the storage package.
var (
	// ErrNoAccess is returned when a storage was built without accesses.
	ErrNoAccess = errors.New("storage: no access configured")

	// ErrUnavailable is returned when every access failed this cycle.
	ErrUnavailable = errors.New("storage: unreachable")
)
