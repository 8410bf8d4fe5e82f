package factory

import (
	"context"
	"fmt"

	"github.com/nerrad567/factoryd/internal/item"
	"github.com/nerrad567/factoryd/internal/logsink"
	"github.com/nerrad567/factoryd/internal/recipe"
)

// Process is one station of the factory. The set of implementations is
// closed: ManualUI, Workbench, Slotted, Turtle and RedstoneEmitter.
type Process interface {
	// Name identifies the process in logs and snapshots.
	Name() string

	// Kind returns the document type tag of the process.
	Kind() string

	advance(ctx context.Context, c *cycle) error
	close()
}

// cycle carries the state shared by processes during one cycle.
type cycle struct {
	f      *Factory
	pool   *Pool
	bus    *bus
	router *router

	// sets counts recipe sets or crafts per process this cycle.
	sets map[string]int
}

func (c *cycle) addSets(proc string, n int) {
	c.sets[proc] += n
}

func (c *cycle) notify(sev logsink.Severity, source, format string, args ...any) {
	c.f.notifyf(sev, source, format, args...)
}

// unload moves up to stack.Size items from slot of ep into storage.
// Nothing moves when no storage has room; the items stay in place.
func (c *cycle) unload(ctx context.Context, ep *endpoint, slot int, stack item.DetailStack) (int, error) {
	n := min(stack.Size, c.router.capacity(stack))
	if n <= 0 {
		return 0, nil
	}
	busSlot, err := c.bus.alloc()
	if err != nil {
		return 0, err
	}
	moved, err := ep.toBus(ctx, slot, busSlot, n)
	if err != nil {
		c.bus.release(busSlot)
		return 0, err
	}
	part := stack
	part.Size = moved
	inserted, err := c.router.route(ctx, busSlot, part)
	if inserted >= moved {
		c.bus.release(busSlot)
	}
	return inserted, err
}

// load extracts a plan's inputs and places them into ep. It returns the
// first failure; items stranded on the bus are swept next cycle.
func (c *cycle) load(ctx context.Context, ep *endpoint, plan recipe.Plan) error {
	for _, ip := range plan.Inputs {
		stock := ip.FromStock
		for _, p := range ip.Placements {
			fromStock := min(p.Size, stock)
			fromBackup := p.Size - fromStock
			stock -= fromStock

			busSlot, err := c.bus.alloc()
			if err != nil {
				return err
			}
			got, err := c.pool.extract(ctx, ip.Key, fromStock, busSlot, false)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", ip.Key, err)
			}
			fromReserve, err := c.pool.extract(ctx, ip.Key, fromBackup, busSlot, true)
			got += fromReserve
			if err != nil {
				return fmt.Errorf("extracting %s from backup: %w", ip.Key, err)
			}
			if got == 0 {
				c.bus.release(busSlot)
				continue
			}
			moved, err := ep.fromBus(ctx, busSlot, p.Slot, got)
			if err != nil {
				return fmt.Errorf("loading slot %d: %w", p.Slot, err)
			}
			if moved == got {
				c.bus.release(busSlot)
			}
		}
	}
	return nil
}
