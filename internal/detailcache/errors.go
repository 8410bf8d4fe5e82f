package detailcache

import "errors"

// Domain errors for the detailcache package.
var (
	// ErrInvalidDetail is returned when a queried detail cannot be cached.
	ErrInvalidDetail = errors.New("detailcache: invalid detail")
)
