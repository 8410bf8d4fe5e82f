package factory

import (
	"context"
	"errors"
	"sort"

	"github.com/nerrad567/factoryd/internal/item"
	"github.com/nerrad567/factoryd/internal/storage"
)

// router places items from the bus into storage.
type router struct {
	storages []storage.Storage
	pool     *Pool
}

type target struct {
	index int
	match storage.Match
	free  int
	s     storage.Storage
}

// targets ranks the storages that accept the stack: explicit matches
// before generic ones, then by free capacity, then declaration order.
func (r *router) targets(stack item.DetailStack) []target {
	var ts []target
	for i, s := range r.storages {
		if !s.Online() {
			continue
		}
		m := s.Accepts(stack.Key, stack.Detail)
		if m == storage.MatchNone {
			continue
		}
		free := s.FreeCapacity(stack.Key, stack.Detail)
		if free <= 0 {
			continue
		}
		ts = append(ts, target{index: i, match: m, free: free, s: s})
	}
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].match != ts[j].match {
			return ts[i].match > ts[j].match
		}
		if ts[i].free != ts[j].free {
			return ts[i].free > ts[j].free
		}
		return ts[i].index < ts[j].index
	})
	return ts
}

// capacity is how many items of the stack storage can take right now.
func (r *router) capacity(stack item.DetailStack) int {
	n := 0
	for _, t := range r.targets(stack) {
		n += t.free
	}
	return n
}

// route inserts the stack sitting in busSlot and returns how many items
// left the bus.
func (r *router) route(ctx context.Context, busSlot int, stack item.DetailStack) (int, error) {
	var errs []error
	total := 0
	for _, t := range r.targets(stack) {
		if total >= stack.Size {
			break
		}
		part := stack
		part.Size = min(stack.Size-total, t.free)
		n, err := t.s.Insert(ctx, busSlot, part)
		if err != nil {
			errs = append(errs, err)
		}
		total += n
		if r.pool != nil {
			r.pool.add(stack.Key, stack.Detail, n)
		}
	}
	if total < stack.Size && len(errs) > 0 {
		return total, errors.Join(errs...)
	}
	return total, nil
}
