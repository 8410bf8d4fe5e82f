// Package manual carries operator requests for items from the API to the
// ManualUI stations of the running factory, and records what was
// delivered.
//
// The queue is bounded: Submit never blocks and reports ErrQueueFull when
// the cycle loop has fallen behind. Requests survive factory reloads; a
// request addressed to a station that no longer exists waits until one
// with that name returns or it is cancelled.
package manual
