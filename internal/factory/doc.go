// Package factory builds the runtime object graph of a factory document
// and advances it one cycle at a time.
//
// A Factory owns its storages, backups and processes. It is built once
// from a validated blueprint.Document, never changed structurally, and
// discarded as a whole when the document is reloaded. Each cycle:
//
//  1. refreshes every storage and backup
//  2. aggregates their contents into the stock pool
//  3. sweeps stray items on the bus back into storage
//  4. lists fluid backups
//  5. advances each process in declaration order
//  6. publishes an immutable Snapshot
//
// A failure reaching one remote endpoint, or a panic inside one process,
// only costs that process its progress for the cycle.
//
// Items move storage -> bus slot -> process slot. The bus is one physical
// inventory that every client sees under its own address (bus_accesses).
package factory
