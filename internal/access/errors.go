package access

import (
	"errors"
	"fmt"
)

// Domain errors for the access package.
var (
	// ErrAccess is the umbrella for every failure reaching a remote endpoint.
	ErrAccess = errors.New("access: remote operation failed")

	// ErrNotConnected is returned when the client never became reachable
	// within the request timeout.
	ErrNotConnected = errors.New("access: client not connected")

	// ErrTimeout is returned when the client did not answer in time.
	ErrTimeout = errors.New("access: request timed out")

	// ErrRejected is returned when the client answered with an error.
	ErrRejected = errors.New("access: request rejected by client")
)

// Error describes a failed remote operation.
type Error struct {
	Op     string
	Client string
	Addr   string
	Err    error
}

// NewError wraps err as an access failure for op against client/addr.
func NewError(op, client, addr string, err error) *Error {
	return &Error{Op: op, Client: client, Addr: addr, Err: err}
}

func (e *Error) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("access: %s on %s: %v", e.Op, e.Client, e.Err)
	}
	return fmt.Sprintf("access: %s on %s/%s: %v", e.Op, e.Client, e.Addr, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrAccess.
func (e *Error) Is(target error) bool { return target == ErrAccess }
