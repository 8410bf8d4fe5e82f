package storage

import (
	"context"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/item"
)

// Chest is a plain inventory that accepts every item.
type Chest struct {
	inventory
	maxSize MaxSizeFunc
}

// NewChest creates a chest. A nil maxSize keeps each item's own stack size.
func NewChest(name string, accesses []access.BusAccess, deps Deps, maxSize MaxSizeFunc) (*Chest, error) {
	inv, err := newInventory(name, accesses, deps)
	if err != nil {
		return nil, err
	}
	if maxSize == nil {
		maxSize = InherentMaxSize
	}
	return &Chest{inventory: inv, maxSize: maxSize}, nil
}

func (c *Chest) slotCapacity(s slotState) int {
	return c.maxSize(s.detail.StackLimit())
}

// Refresh implements Storage.
func (c *Chest) Refresh(ctx context.Context) error { return c.refresh(ctx) }

// List implements Storage.
func (c *Chest) List() []item.DetailStack {
	return c.list(func(item.Key, *item.Detail) bool { return true })
}

// Quantity implements Storage.
func (c *Chest) Quantity(key item.Key) int { return c.quantity(key) }

// Accepts implements Storage.
func (c *Chest) Accepts(item.Key, *item.Detail) Match { return MatchGeneric }

// FreeCapacity implements Storage.
func (c *Chest) FreeCapacity(key item.Key, detail *item.Detail) int {
	return c.freeCapacity(key, func(s slotState) int {
		if s.empty() {
			s.detail = detail
		}
		return c.slotCapacity(s)
	})
}

// Extract implements Storage.
func (c *Chest) Extract(ctx context.Context, key item.Key, count, busSlot int) (int, error) {
	return c.extract(ctx, key, count, busSlot)
}

// Insert implements Storage.
func (c *Chest) Insert(ctx context.Context, busSlot int, stack item.DetailStack) (int, error) {
	return c.insert(ctx, busSlot, stack, c.slotCapacity)
}

var _ Storage = (*Chest)(nil)
