package item

import "errors"

// Domain errors for the item package.
var (
	// ErrUnknownPredicate is returned when a custom filter description does
	// not match any known predicate form.
	ErrUnknownPredicate = errors.New("item: unknown custom predicate")

	// ErrInvalidFilter is returned when a filter is missing its value.
	ErrInvalidFilter = errors.New("item: invalid filter")
)
