// Package detailcache memoises item metadata.
//
// Querying the label and stack size of an item means a round trip to a
// remote client for one slot, so the engine asks at most once per item type.
// The Cache keeps details in memory keyed by item.Key and writes every new
// entry through to a Repository (SQLite in production) so the cache
// survives restarts. Load fills the memory map at startup.
//
// The Cache is shared by successive factory generations: a hot reload
// rebuilds the factory but keeps the cache.
//
// Cached *item.Detail values are shared and must be treated as read-only.
package detailcache
