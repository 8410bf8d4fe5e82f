package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/detailcache"
	"github.com/nerrad567/factoryd/internal/item"
)

// endpoint is a process inventory reached through alternative accesses.
type endpoint struct {
	accesses []access.BusAccess
	remote   access.Remote
	details  *detailcache.Cache
}

// slotView is one listed slot of a process inventory.
type slotView struct {
	item.DetailStack
	limit int
}

// list returns the inventory through the first access that answers,
// resolving details of occupied slots.
func (e *endpoint) list(ctx context.Context) ([]slotView, error) {
	var errs []error
	for _, acc := range e.accesses {
		raw, err := e.remote.List(ctx, acc.Client, acc.InvAddr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out := make([]slotView, len(raw))
		for i, s := range raw {
			out[i].limit = s.Limit
			if s.Empty() {
				continue
			}
			d, err := e.details.Get(ctx, acc.Client, acc.InvAddr, i, s.Key)
			if err != nil {
				return nil, fmt.Errorf("slot %d: %w", i, err)
			}
			out[i].DetailStack = item.DetailStack{Key: s.Key, Detail: d, Size: s.Count}
		}
		return out, nil
	}
	return nil, errors.Join(errs...)
}

// transfer runs a transfer built for the first access that answers.
func (e *endpoint) transfer(ctx context.Context, build func(access.BusAccess) access.Transfer) (int, error) {
	var errs []error
	for _, acc := range e.accesses {
		n, err := e.remote.Transfer(ctx, acc.Client, build(acc))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return n, nil
	}
	return 0, errors.Join(errs...)
}

// fromBus moves count items from busSlot into slot.
func (e *endpoint) fromBus(ctx context.Context, busSlot, slot, count int) (int, error) {
	return e.transfer(ctx, func(acc access.BusAccess) access.Transfer {
		return access.Transfer{From: acc.BusAddr, FromSlot: busSlot, To: acc.InvAddr, ToSlot: slot, Count: count}
	})
}

// toBus moves count items from slot into busSlot.
func (e *endpoint) toBus(ctx context.Context, slot, busSlot, count int) (int, error) {
	return e.transfer(ctx, func(acc access.BusAccess) access.Transfer {
		return access.Transfer{From: acc.InvAddr, FromSlot: slot, To: acc.BusAddr, ToSlot: busSlot, Count: count}
	})
}

// craft asks the first answering access to craft.
func (e *endpoint) craft(ctx context.Context, count int) (int, error) {
	var errs []error
	for _, acc := range e.accesses {
		n, err := e.remote.Craft(ctx, acc.Client, acc.InvAddr, count)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return n, nil
	}
	return 0, errors.Join(errs...)
}
