// Package storage implements the factory's passive item containers.
//
// A Chest is a plain inventory: it accepts any item and reports stack
// capacity from the item's own maximum stack size, optionally replaced by a
// fixed override. A Drawer only lists, accepts and releases items matching
// its filters, and its slot capacity comes from the limit the remote
// inventory reports.
//
// Storages keep a per-cycle picture of their slots. Refresh replaces it with
// a fresh listing; Extract and Insert move items between the storage and a
// bus slot and update the picture with what actually moved. A slot whose
// metadata cannot be resolved is invisible for the rest of the cycle.
package storage
