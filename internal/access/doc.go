// Package access describes how the factory reaches remote endpoints.
//
// Every storage and process is backed by one or more Accesses: a client name
// (the remote computer that performs the operation) plus the address of the
// inventory, tank or redstone face as that client sees it. Items move
// between inventories through a shared bus inventory, so item accesses carry
// the bus address from the same client's point of view.
//
// The Remote interface is the capability contract between the factory engine
// and the transport (see the bridge package). Every Remote operation may fail
// transiently; failures are reported as *Error values that satisfy
// errors.Is(err, ErrAccess).
package access
