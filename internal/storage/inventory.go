package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/item"
)

type slotState struct {
	key    item.Key
	count  int
	limit  int
	detail *item.Detail
}

func (s slotState) empty() bool { return s.count <= 0 }

// known reports whether an occupied slot has metadata this cycle.
func (s slotState) known() bool { return s.empty() || s.detail != nil }

// inventory is the shared slot bookkeeping behind Chest and Drawer.
type inventory struct {
	name     string
	accesses []access.BusAccess
	deps     Deps
	slots    []slotState
	online   bool
}

func newInventory(name string, accesses []access.BusAccess, deps Deps) (inventory, error) {
	if len(accesses) == 0 {
		return inventory{}, fmt.Errorf("%w: %s", ErrNoAccess, name)
	}
	return inventory{name: name, accesses: accesses, deps: deps}, nil
}

func (inv *inventory) Name() string { return inv.name }

func (inv *inventory) Accesses() []access.BusAccess { return inv.accesses }

func (inv *inventory) Online() bool { return inv.online }

// refresh replaces the slot picture. On failure the storage is treated as
// empty and full for the rest of the cycle.
func (inv *inventory) refresh(ctx context.Context) error {
	inv.slots = nil
	inv.online = false

	var errs []error
	for _, acc := range inv.accesses {
		raw, err := inv.deps.Remote.List(ctx, acc.Client, acc.InvAddr)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		slots := make([]slotState, len(raw))
		for i, r := range raw {
			slots[i] = slotState{key: r.Key, count: r.Count, limit: r.Limit}
			if r.Empty() {
				slots[i].key = item.Key{}
				slots[i].count = 0
				continue
			}
			d, err := inv.deps.Details.Get(ctx, acc.Client, acc.InvAddr, i, r.Key)
			if err != nil {
				inv.deps.logger().Debug("slot detail unavailable",
					"storage", inv.name, "slot", i, "item", r.Key.String(), "error", err)
				continue
			}
			slots[i].detail = d
		}
		inv.slots = slots
		inv.online = true
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, inv.name, errors.Join(errs...))
}

// list returns visible stacks; visible decides per item type.
func (inv *inventory) list(visible func(item.Key, *item.Detail) bool) []item.DetailStack {
	var out []item.DetailStack
	for _, s := range inv.slots {
		if s.empty() || s.detail == nil || !visible(s.key, s.detail) {
			continue
		}
		out = append(out, item.DetailStack{Key: s.key, Detail: s.detail, Size: s.count})
	}
	return out
}

func (inv *inventory) quantity(key item.Key) int {
	n := 0
	for _, s := range inv.slots {
		if !s.empty() && s.detail != nil && s.key == key {
			n += s.count
		}
	}
	return n
}

// freeCapacity sums room in empty slots and in slots holding the same type.
func (inv *inventory) freeCapacity(key item.Key, perSlot func(slotState) int) int {
	free := 0
	for _, s := range inv.slots {
		switch {
		case s.empty():
			free += perSlot(s)
		case s.key == key && s.known():
			if room := perSlot(s) - s.count; room > 0 {
				free += room
			}
		}
	}
	return free
}

// transfer runs t through the first access that answers.
func (inv *inventory) transfer(ctx context.Context, build func(access.BusAccess) access.Transfer) (int, error) {
	var errs []error
	for _, acc := range inv.accesses {
		moved, err := inv.deps.Remote.Transfer(ctx, acc.Client, build(acc))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return moved, nil
	}
	return 0, errors.Join(errs...)
}

func (inv *inventory) extract(ctx context.Context, key item.Key, count, busSlot int) (int, error) {
	total := 0
	for i := range inv.slots {
		if total >= count {
			break
		}
		s := &inv.slots[i]
		if s.empty() || s.detail == nil || s.key != key {
			continue
		}
		want := min(count-total, s.count)
		slot := i
		moved, err := inv.transfer(ctx, func(acc access.BusAccess) access.Transfer {
			return access.Transfer{From: acc.InvAddr, FromSlot: slot, To: acc.BusAddr, ToSlot: busSlot, Count: want}
		})
		if err != nil {
			return total, err
		}
		s.count -= moved
		if s.count <= 0 {
			*s = slotState{limit: s.limit}
		}
		total += moved
		if moved < want {
			// Bus slot full or listing stale.
			break
		}
	}
	return total, nil
}

func (inv *inventory) insert(ctx context.Context, busSlot int, stack item.DetailStack, perSlot func(slotState) int) (int, error) {
	if stack.Size <= 0 || !inv.online {
		return 0, nil
	}
	moved, err := inv.transfer(ctx, func(acc access.BusAccess) access.Transfer {
		return access.Transfer{From: acc.BusAddr, FromSlot: busSlot, To: acc.InvAddr, ToSlot: access.AnySlot, Count: stack.Size}
	})
	if err != nil {
		return 0, err
	}
	inv.account(stack, moved, perSlot)
	return moved, nil
}

// account mirrors an insertion of n items into the local picture, filling
// existing stacks before empty slots.
func (inv *inventory) account(stack item.DetailStack, n int, perSlot func(slotState) int) {
	for pass := 0; pass < 2 && n > 0; pass++ {
		for i := range inv.slots {
			if n == 0 {
				break
			}
			s := &inv.slots[i]
			sameStack := pass == 0 && !s.empty() && s.key == stack.Key
			emptySlot := pass == 1 && s.empty()
			if !sameStack && !emptySlot {
				continue
			}
			probe := *s
			probe.key, probe.detail = stack.Key, stack.Detail
			room := perSlot(probe) - s.count
			if room <= 0 {
				continue
			}
			add := min(room, n)
			s.key, s.detail = stack.Key, stack.Detail
			s.count += add
			n -= add
		}
	}
}
