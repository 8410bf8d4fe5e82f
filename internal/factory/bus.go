package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/detailcache"
	"github.com/nerrad567/factoryd/internal/item"
)

// bus tracks the shared transfer inventory. Slot occupancy is rebuilt
// by every sweep.
type bus struct {
	clients []string
	addrs   map[string]string
	remote  access.Remote
	details *detailcache.Cache

	used   []bool
	online bool
}

func newBus(remote access.Remote, details *detailcache.Cache) *bus {
	return &bus{remote: remote, details: details, addrs: make(map[string]string)}
}

func (b *bus) add(client, addr string) {
	b.clients = append(b.clients, client)
	b.addrs[client] = addr
}

// addr returns the bus address as seen from client.
func (b *bus) addr(client string) (string, bool) {
	a, ok := b.addrs[client]
	return a, ok
}

// list reads the bus through the first client that answers.
func (b *bus) list(ctx context.Context) (string, string, []access.Slot, error) {
	var errs []error
	for _, c := range b.clients {
		addr := b.addrs[c]
		slots, err := b.remote.List(ctx, c, addr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return c, addr, slots, nil
	}
	if len(errs) == 0 {
		return "", "", nil, errors.New("no bus access configured")
	}
	return "", "", nil, errors.Join(errs...)
}

// sweep routes everything left on the bus into storage and marks slots
// that could not be cleared as used for this cycle.
func (b *bus) sweep(ctx context.Context, r *router) error {
	b.used = nil
	b.online = false

	client, addr, slots, err := b.list(ctx)
	if err != nil {
		return fmt.Errorf("listing bus: %w", err)
	}
	b.used = make([]bool, len(slots))
	b.online = true

	var errs []error
	for i, s := range slots {
		if s.Empty() {
			continue
		}
		b.used[i] = true
		detail, err := b.details.Get(ctx, client, addr, i, s.Key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		stack := item.DetailStack{Key: s.Key, Detail: detail, Size: s.Count}
		inserted, err := r.route(ctx, i, stack)
		if err != nil {
			errs = append(errs, err)
		}
		if inserted >= s.Count {
			b.used[i] = false
		}
	}
	return errors.Join(errs...)
}

// alloc reserves a free bus slot.
func (b *bus) alloc() (int, error) {
	if !b.online {
		return 0, fmt.Errorf("%w: bus unavailable", ErrBusFull)
	}
	for i, used := range b.used {
		if !used {
			b.used[i] = true
			return i, nil
		}
	}
	return 0, ErrBusFull
}

// release frees a slot known to be empty.
func (b *bus) release(slot int) {
	if slot >= 0 && slot < len(b.used) {
		b.used[slot] = false
	}
}

// occupied counts slots in use.
func (b *bus) occupied() int {
	n := 0
	for _, used := range b.used {
		if used {
			n++
		}
	}
	return n
}
