package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/item"
	"github.com/nerrad567/factoryd/internal/recipe"
)

// Slotted drives a machine with fixed input slots that runs by itself,
// such as a furnace. Products are pulled out, then recipes top up the
// inputs.
type Slotted struct {
	name          string
	ep            *endpoint
	inputSlots    map[int]bool
	extractFilter *item.Filter
	recipes       []recipe.Recipe
	strict        bool
}

// Name implements Process.
func (s *Slotted) Name() string { return s.name }

// Kind implements Process.
func (s *Slotted) Kind() string { return blueprint.ProcessSlotted }

// machineView exposes listed slots to the matcher and tracks loads.
type machineView []slotView

// Slot implements recipe.Machine.
func (m machineView) Slot(slot int) item.DetailStack {
	if slot < 0 || slot >= len(m) {
		return item.DetailStack{}
	}
	return m[slot].DetailStack
}

func (m machineView) apply(plan recipe.Plan) {
	for _, ip := range plan.Inputs {
		for _, p := range ip.Placements {
			if p.Slot < 0 || p.Slot >= len(m) {
				continue
			}
			m[p.Slot].Key = ip.Key
			m[p.Slot].Detail = ip.Detail
			m[p.Slot].Size += p.Size
		}
	}
}

// extractable reports whether slot holds a product to pull out.
func (s *Slotted) extractable(slot int, st item.DetailStack) bool {
	if st.Size <= 0 {
		return false
	}
	if s.extractFilter != nil {
		return s.extractFilter.Apply(st.Key, st.Detail)
	}
	return !s.inputSlots[slot]
}

func (s *Slotted) advance(ctx context.Context, c *cycle) error {
	slots, err := s.ep.list(ctx)
	if err != nil {
		return fmt.Errorf("listing machine: %w", err)
	}
	view := machineView(slots)

	var errs []error
	for i, sv := range view {
		if !s.extractable(i, sv.DetailStack) {
			continue
		}
		moved, err := c.unload(ctx, s.ep, i, sv.DetailStack)
		if err != nil {
			errs = append(errs, fmt.Errorf("extracting slot %d: %w", i, err))
		}
		view[i].Size -= moved
		if view[i].Size <= 0 {
			view[i].DetailStack = item.DetailStack{}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for i := range s.recipes {
		r := &s.recipes[i]
		plan, ok := recipe.Match(r, c.pool, view)
		if !ok {
			continue
		}
		if err := c.load(ctx, s.ep, plan); err != nil {
			return fmt.Errorf("recipe %d: %w", i, err)
		}
		view.apply(plan)
		c.addSets(s.name, plan.Sets)
		if s.strict {
			break
		}
	}
	return nil
}

func (s *Slotted) close() {}
