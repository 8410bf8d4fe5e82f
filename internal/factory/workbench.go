package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/logsink"
	"github.com/nerrad567/factoryd/internal/recipe"
)

// Workbench crafts recipes on a remote crafting grid. Each recipe that
// matches runs on an empty grid: load, craft, flush.
type Workbench struct {
	name    string
	ep      *endpoint
	recipes []recipe.Recipe
}

// Name implements Process.
func (w *Workbench) Name() string { return w.name }

// Kind implements Process.
func (w *Workbench) Kind() string { return blueprint.ProcessWorkbench }

// Recipes returns the configured recipes.
func (w *Workbench) Recipes() []recipe.Recipe { return w.recipes }

func (w *Workbench) advance(ctx context.Context, c *cycle) error {
	if err := w.flush(ctx, c); err != nil {
		return err
	}

	for i := range w.recipes {
		r := &w.recipes[i]
		plan, ok := recipe.Match(r, c.pool, recipe.EmptyMachine{})
		if !ok {
			continue
		}
		if err := c.load(ctx, w.ep, plan); err != nil {
			return fmt.Errorf("recipe %d: %w", i, err)
		}
		crafted, err := w.ep.craft(ctx, plan.Sets)
		if err != nil {
			return fmt.Errorf("recipe %d: crafting: %w", i, err)
		}
		c.addSets(w.name, crafted)
		if crafted > 0 {
			c.notify(logsink.SeveritySuccess, w.name, "crafted %d set(s) of recipe %d", crafted, i)
		}
		if err := w.flush(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// flush empties the grid into storage. A grid that cannot be emptied
// blocks the bench for this cycle.
func (w *Workbench) flush(ctx context.Context, c *cycle) error {
	slots, err := w.ep.list(ctx)
	if err != nil {
		return fmt.Errorf("listing grid: %w", err)
	}
	var errs []error
	blocked := false
	for i, s := range slots {
		if s.Size <= 0 {
			continue
		}
		moved, err := c.unload(ctx, w.ep, i, s.DetailStack)
		if err != nil {
			errs = append(errs, err)
		}
		if moved < s.Size {
			blocked = true
		}
	}
	if blocked {
		errs = append(errs, fmt.Errorf("%w: grid not empty", ErrStationBlocked))
	}
	return errors.Join(errs...)
}

func (w *Workbench) close() {}
