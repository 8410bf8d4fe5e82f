package storage

import (
	"context"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/item"
)

// Drawer is an inventory dedicated to the items matching its filters.
type Drawer struct {
	inventory
	filters []item.Filter
}

// NewDrawer creates a drawer restricted to filters.
func NewDrawer(name string, accesses []access.BusAccess, deps Deps, filters []item.Filter) (*Drawer, error) {
	inv, err := newInventory(name, accesses, deps)
	if err != nil {
		return nil, err
	}
	return &Drawer{inventory: inv, filters: filters}, nil
}

// Filters returns the configured filters.
func (d *Drawer) Filters() []item.Filter { return d.filters }

func (d *Drawer) matches(key item.Key, detail *item.Detail) bool {
	return item.AnyOf(d.filters, key, detail)
}

// slotCapacity prefers the limit reported by the drawer itself.
func (d *Drawer) slotCapacity(s slotState) int {
	if s.limit > 0 {
		return s.limit
	}
	return s.detail.StackLimit()
}

// Refresh implements Storage.
func (d *Drawer) Refresh(ctx context.Context) error { return d.refresh(ctx) }

// List implements Storage.
func (d *Drawer) List() []item.DetailStack { return d.list(d.matches) }

// Quantity implements Storage.
func (d *Drawer) Quantity(key item.Key) int {
	if detail, ok := d.detailOf(key); !ok || !d.matches(key, detail) {
		return 0
	}
	return d.quantity(key)
}

func (d *Drawer) detailOf(key item.Key) (*item.Detail, bool) {
	for _, s := range d.slots {
		if !s.empty() && s.key == key && s.detail != nil {
			return s.detail, true
		}
	}
	return nil, false
}

// Accepts implements Storage.
func (d *Drawer) Accepts(key item.Key, detail *item.Detail) Match {
	if d.matches(key, detail) {
		return MatchExplicit
	}
	return MatchNone
}

// FreeCapacity implements Storage.
func (d *Drawer) FreeCapacity(key item.Key, detail *item.Detail) int {
	if !d.matches(key, detail) {
		return 0
	}
	return d.freeCapacity(key, func(s slotState) int {
		if s.empty() {
			s.detail = detail
		}
		return d.slotCapacity(s)
	})
}

// Extract implements Storage.
func (d *Drawer) Extract(ctx context.Context, key item.Key, count, busSlot int) (int, error) {
	if detail, ok := d.detailOf(key); !ok || !d.matches(key, detail) {
		return 0, nil
	}
	return d.extract(ctx, key, count, busSlot)
}

// Insert implements Storage.
func (d *Drawer) Insert(ctx context.Context, busSlot int, stack item.DetailStack) (int, error) {
	if !d.matches(stack.Key, stack.Detail) {
		return 0, nil
	}
	return d.insert(ctx, busSlot, stack, d.slotCapacity)
}

var _ Storage = (*Drawer)(nil)
