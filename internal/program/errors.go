package program

import "errors"

// Domain errors for the program package.
var (
	// ErrUnknownProgram is returned when a file name resolves to nothing.
	ErrUnknownProgram = errors.New("program: unknown program")

	// ErrDuplicateProgram is returned when a name is registered twice.
	ErrDuplicateProgram = errors.New("program: already registered")

	// ErrAlreadyRunning is returned when a subprocess is started twice.
	ErrAlreadyRunning = errors.New("program: already running")

	// ErrPanicked wraps a panic recovered from an in-process program.
	ErrPanicked = errors.New("program: panicked")
)
