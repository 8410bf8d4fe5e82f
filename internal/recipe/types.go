package recipe

import (
	"fmt"

	"github.com/nerrad567/factoryd/internal/item"
)

// Placement puts Size items per set into machine slot Slot.
type Placement struct {
	Slot int `json:"slot"`
	Size int `json:"size"`
}

// SlottedInput is one ingredient of a recipe.
type SlottedInput struct {
	Item        item.Filter
	Placements  []Placement
	AllowBackup bool
	ExtraBackup int
}

// NewInput builds an input from its placements.
func NewInput(filter item.Filter, placements ...Placement) SlottedInput {
	return SlottedInput{Item: filter, Placements: placements}
}

// WithBackup allows the input to draw on the backup reserve while keeping
// extra units of it.
func (in SlottedInput) WithBackup(extra int) SlottedInput {
	in.AllowBackup = true
	in.ExtraBackup = extra
	return in
}

// Size is the quantity one set consumes.
func (in SlottedInput) Size() int {
	n := 0
	for _, p := range in.Placements {
		n += p.Size
	}
	return n
}

// Output names a product and how much of it the factory wants in stock.
// Wanted zero means "always". PerSet, when positive, is how many units one
// set produces and caps sets at the remaining deficit.
type Output struct {
	Item   item.Filter
	Wanted int
	PerSet int
}

// Recipe is a unit of work a process can perform.
type Recipe struct {
	Outputs []Output
	Inputs  []SlottedInput
	MaxSets int

	// NonConsumables indexes Inputs that must be present but are returned
	// after execution, such as tools.
	NonConsumables []int
}

// IsNonConsumable reports whether input i is a non-consumable.
func (r *Recipe) IsNonConsumable(i int) bool {
	for _, nc := range r.NonConsumables {
		if nc == i {
			return true
		}
	}
	return false
}

// Validate checks the recipe's structure.
func (r *Recipe) Validate() error {
	if r.MaxSets < 1 {
		return fmt.Errorf("%w (got %d)", ErrInvalidMaxSets, r.MaxSets)
	}
	if len(r.Inputs) == 0 {
		return fmt.Errorf("%w: no inputs", ErrInvalidRecipe)
	}
	slots := make(map[int]bool)
	for i, in := range r.Inputs {
		if in.Item.Kind() == 0 {
			return fmt.Errorf("%w: input %d has no filter", ErrInvalidRecipe, i)
		}
		if len(in.Placements) == 0 {
			return fmt.Errorf("%w: input %d has no slots", ErrInvalidRecipe, i)
		}
		if in.ExtraBackup < 0 {
			return fmt.Errorf("%w: input %d has negative extra_backup", ErrInvalidRecipe, i)
		}
		for _, p := range in.Placements {
			if p.Size < 1 {
				return fmt.Errorf("%w: input %d slot %d has size %d", ErrInvalidRecipe, i, p.Slot, p.Size)
			}
			if p.Slot < 0 {
				return fmt.Errorf("%w: input %d has negative slot %d", ErrInvalidRecipe, i, p.Slot)
			}
			if slots[p.Slot] {
				return fmt.Errorf("%w: slot %d used twice", ErrInvalidRecipe, p.Slot)
			}
			slots[p.Slot] = true
		}
	}
	for _, nc := range r.NonConsumables {
		if nc < 0 || nc >= len(r.Inputs) {
			return fmt.Errorf("%w: non-consumable index %d out of range", ErrInvalidRecipe, nc)
		}
	}
	for i, out := range r.Outputs {
		if out.Wanted < 0 || out.PerSet < 0 {
			return fmt.Errorf("%w: output %d has negative amounts", ErrInvalidRecipe, i)
		}
	}
	return nil
}
