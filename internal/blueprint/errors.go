package blueprint

import "errors"

// Domain errors for the blueprint package.
var (
	// ErrConfig wraps every document read or validation failure.
	ErrConfig = errors.New("blueprint: invalid factory document")

	// ErrUnknownType is returned for an unrecognised "type" discriminator.
	ErrUnknownType = errors.New("blueprint: unknown type")
)
