package factory

import (
	"context"
	"errors"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/item"
)

// RedstoneEmitter drives one output rule: on_signal while any trigger
// item is in stock, off_signal otherwise.
type RedstoneEmitter struct {
	name     string
	outputs  []access.RedstoneAccess
	triggers []item.Filter
	off, on  int

	// level is the last level written; -1 before the first write.
	level int
}

// Name implements Process.
func (r *RedstoneEmitter) Name() string { return r.name }

// Kind implements Process.
func (r *RedstoneEmitter) Kind() string { return blueprint.ProcessRedstoneEmitter }

// Level returns the last level driven, or -1.
func (r *RedstoneEmitter) Level() int { return r.level }

func (r *RedstoneEmitter) advance(ctx context.Context, c *cycle) error {
	quantity := 0
	for _, f := range r.triggers {
		quantity += c.pool.Count(f)
	}
	level := r.off
	if quantity > 0 {
		level = r.on
	}

	// Written every cycle: the remote side may have been reset.
	var errs []error
	for _, out := range r.outputs {
		if err := c.f.remote.SetRedstone(ctx, out, level); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	r.level = level
	return nil
}

func (r *RedstoneEmitter) close() {}
