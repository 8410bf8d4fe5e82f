package bridge

import "errors"

var (
	// ErrBadResponse is returned when a client's reply cannot be decoded.
	ErrBadResponse = errors.New("bridge: malformed response")

	// ErrTokenInvalid is returned for a missing, expired or forged client token.
	ErrTokenInvalid = errors.New("bridge: invalid client token")

	// ErrClosed is returned by a transport after Close.
	ErrClosed = errors.New("bridge: transport closed")
)
