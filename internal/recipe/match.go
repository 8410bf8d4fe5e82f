package recipe

import (
	"math"

	"github.com/nerrad567/factoryd/internal/item"
)

// Candidate is a concrete item type offered for an input.
type Candidate struct {
	Key    item.Key
	Detail *item.Detail

	// Available is the stock outside backup reserves.
	Available int

	// Reserve is the stock held in backup reserves.
	Reserve int
}

// Stock is the factory's item pool as seen by the matcher.
type Stock interface {
	// Best returns the best stocked item type matching f.
	Best(f item.Filter) (Candidate, bool)

	// Get returns the stock of one item type.
	Get(key item.Key) (Candidate, bool)

	// Count returns the total quantity, reserves included, matching f.
	Count(f item.Filter) int
}

// Machine exposes what already sits in the target slots.
type Machine interface {
	Slot(slot int) item.DetailStack
}

// EmptyMachine is a machine whose slots are all empty, such as a freshly
// flushed crafting grid.
type EmptyMachine struct{}

// Slot implements Machine.
func (EmptyMachine) Slot(int) item.DetailStack { return item.DetailStack{} }

// InputPlan says how one input is satisfied.
type InputPlan struct {
	Index         int
	Key           item.Key
	Detail        *item.Detail
	NonConsumable bool

	// Placements carries the amount to move into each slot now.
	Placements []Placement

	FromStock  int
	FromBackup int
}

// Total is the amount this input moves.
func (p InputPlan) Total() int { return p.FromStock + p.FromBackup }

// Plan is a satisfiable assignment of a recipe.
type Plan struct {
	Sets   int
	Inputs []InputPlan
}

type resolved struct {
	cand     Candidate
	existing []int
}

type group struct {
	cand        Candidate
	perSet      int
	fixed       int
	allowBackup bool
	extra       int
}

// Match computes how many sets of r can run against stock with machine
// m as the destination. It returns false when fewer than one set is
// possible; that is not an error.
func Match(r *Recipe, stock Stock, m Machine) (Plan, bool) {
	if r.MaxSets < 1 || len(r.Inputs) == 0 {
		return Plan{}, false
	}

	sets, ok := outputBound(r, stock)
	if !ok {
		return Plan{}, false
	}
	sets = min(sets, r.MaxSets)

	res := make([]resolved, len(r.Inputs))
	for i, in := range r.Inputs {
		rv, ok := resolve(in, stock, m)
		if !ok {
			return Plan{}, false
		}
		res[i] = rv
	}

	// Sets already loaded count against max_sets.
	loaded := math.MaxInt
	for i, in := range r.Inputs {
		if r.IsNonConsumable(i) {
			continue
		}
		for j, p := range in.Placements {
			loaded = min(loaded, res[i].existing[j]/p.Size)
		}
	}
	if loaded == math.MaxInt {
		loaded = 0
	}
	sets = min(sets, r.MaxSets-loaded)

	groups := make(map[item.Key]*group)
	var order []item.Key
	for i, in := range r.Inputs {
		rv := res[i]
		g := groups[rv.cand.Key]
		if g == nil {
			g = &group{cand: rv.cand, allowBackup: true}
			groups[rv.cand.Key] = g
			order = append(order, rv.cand.Key)
		}
		g.allowBackup = g.allowBackup && in.AllowBackup
		g.extra = max(g.extra, in.ExtraBackup)

		if r.IsNonConsumable(i) {
			g.fixed += nonConsumableNeed(in, rv)
			continue
		}
		g.perSet += in.Size()

		limit := rv.cand.Detail.StackLimit()
		for j, p := range in.Placements {
			room := limit - res[i].existing[j]
			sets = min(sets, room/p.Size)
		}
	}

	for _, k := range order {
		g := groups[k]
		usable := g.usable() - g.fixed
		if usable < 0 {
			return Plan{}, false
		}
		if g.perSet > 0 {
			sets = min(sets, usable/g.perSet)
		}
	}

	if sets < 1 {
		return Plan{}, false
	}
	return buildPlan(r, res, groups, sets), true
}

func (g *group) usable() int {
	n := g.cand.Available
	if g.allowBackup {
		n += max(0, g.cand.Reserve-g.extra)
	}
	return n
}

// resolve picks the item type for an input. Items already in its slots
// decide the type; a slot holding something the filter rejects makes the
// recipe incompatible with the machine.
func resolve(in SlottedInput, stock Stock, m Machine) (resolved, bool) {
	rv := resolved{existing: make([]int, len(in.Placements))}

	var inSlot *item.DetailStack
	for j, p := range in.Placements {
		s := m.Slot(p.Slot)
		if s.Size <= 0 {
			continue
		}
		if !in.Item.Apply(s.Key, s.Detail) {
			return rv, false
		}
		if inSlot != nil && inSlot.Key != s.Key {
			return rv, false
		}
		rv.existing[j] = s.Size
		inSlot = &s
	}

	if inSlot != nil {
		cand, ok := stock.Get(inSlot.Key)
		if !ok {
			cand = Candidate{Key: inSlot.Key}
		}
		if cand.Detail == nil {
			cand.Detail = inSlot.Detail
		}
		rv.cand = cand
		return rv, true
	}

	cand, ok := stock.Best(in.Item)
	if !ok {
		return rv, false
	}
	rv.cand = cand
	return rv, true
}

func nonConsumableNeed(in SlottedInput, rv resolved) int {
	n := 0
	for j, p := range in.Placements {
		n += max(0, p.Size-rv.existing[j])
	}
	return n
}

// outputBound returns the cap output targets put on sets, or false when
// every wanted output is already stocked.
func outputBound(r *Recipe, stock Stock) (int, bool) {
	wanted := false
	bound := 0
	unbounded := false
	for _, out := range r.Outputs {
		if out.Wanted <= 0 {
			continue
		}
		wanted = true
		deficit := out.Wanted - stock.Count(out.Item)
		if deficit <= 0 {
			continue
		}
		if out.PerSet <= 0 {
			unbounded = true
			continue
		}
		bound = max(bound, (deficit+out.PerSet-1)/out.PerSet)
	}
	switch {
	case !wanted || unbounded:
		return math.MaxInt, true
	case bound == 0:
		return 0, false
	default:
		return bound, true
	}
}

func buildPlan(r *Recipe, res []resolved, groups map[item.Key]*group, sets int) Plan {
	// Remaining stock per group, drained in input order.
	type budget struct{ stock, backup int }
	budgets := make(map[item.Key]*budget, len(groups))
	for k, g := range groups {
		b := &budget{stock: g.cand.Available}
		if g.allowBackup {
			b.backup = max(0, g.cand.Reserve-g.extra)
		}
		budgets[k] = b
	}

	plan := Plan{Sets: sets, Inputs: make([]InputPlan, 0, len(r.Inputs))}
	for i, in := range r.Inputs {
		rv := res[i]
		ip := InputPlan{
			Index:         i,
			Key:           rv.cand.Key,
			Detail:        rv.cand.Detail,
			NonConsumable: r.IsNonConsumable(i),
			Placements:    make([]Placement, 0, len(in.Placements)),
		}

		need := 0
		for j, p := range in.Placements {
			amount := p.Size * sets
			if ip.NonConsumable {
				amount = max(0, p.Size-rv.existing[j])
			}
			if amount > 0 {
				ip.Placements = append(ip.Placements, Placement{Slot: p.Slot, Size: amount})
			}
			need += amount
		}

		b := budgets[rv.cand.Key]
		ip.FromStock = min(need, b.stock)
		b.stock -= ip.FromStock
		ip.FromBackup = need - ip.FromStock
		b.backup -= ip.FromBackup

		plan.Inputs = append(plan.Inputs, ip)
	}
	return plan
}
