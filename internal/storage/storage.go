package storage

import (
	"context"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/detailcache"
	"github.com/nerrad567/factoryd/internal/item"
)

// Logger defines the logging interface used by storages.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Match ranks how well a storage fits an item for insertion.
type Match int

// Match values, best last.
const (
	MatchNone Match = iota
	MatchGeneric
	MatchExplicit
)

// Storage is a passive container reachable through bus accesses.
type Storage interface {
	// Name identifies the storage in logs and snapshots.
	Name() string

	// Accesses returns the configured accesses in priority order.
	Accesses() []access.BusAccess

	// Refresh lists the remote inventory and resolves item details.
	Refresh(ctx context.Context) error

	// Online reports whether the last Refresh reached the inventory.
	Online() bool

	// List returns the visible stacks in slot order.
	List() []item.DetailStack

	// Quantity returns the visible amount of one item type.
	Quantity(key item.Key) int

	// Accepts reports whether items of this type may be inserted.
	Accepts(key item.Key, detail *item.Detail) Match

	// FreeCapacity estimates how many more items of this type fit.
	FreeCapacity(key item.Key, detail *item.Detail) int

	// Extract moves up to count items of key into busSlot and returns how
	// many moved. An error is returned only when nothing more could be
	// attempted; the count is still valid.
	Extract(ctx context.Context, key item.Key, count, busSlot int) (int, error)

	// Insert moves up to stack.Size items from busSlot into the storage and
	// returns how many were accepted.
	Insert(ctx context.Context, busSlot int, stack item.DetailStack) (int, error)
}

// Deps bundles what every storage needs.
type Deps struct {
	Remote  access.Remote
	Details *detailcache.Cache
	Logger  Logger
}

func (d Deps) logger() Logger {
	if d.Logger == nil {
		return noopLogger{}
	}
	return d.Logger
}

// MaxSizeFunc maps an item's inherent maximum stack size to the size one
// slot of a storage holds.
type MaxSizeFunc func(inherent int) int

// InherentMaxSize keeps the item's own stack size.
func InherentMaxSize(inherent int) int { return inherent }

// FixedMaxSize overrides every stack size with n.
func FixedMaxSize(n int) MaxSizeFunc {
	return func(int) int { return n }
}
