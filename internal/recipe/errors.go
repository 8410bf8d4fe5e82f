package recipe

import "errors"

// Domain errors for the recipe package.
var (
	// ErrInvalidRecipe is returned when a recipe fails validation.
	ErrInvalidRecipe = errors.New("recipe: invalid")

	// ErrInvalidMaxSets is returned when max_sets is below one.
	ErrInvalidMaxSets = errors.New("recipe: max_sets must be at least 1")
)
