package factory

import (
	"context"
	"errors"
	"sort"

	"github.com/nerrad567/factoryd/internal/item"
	"github.com/nerrad567/factoryd/internal/recipe"
	"github.com/nerrad567/factoryd/internal/storage"
)

type poolEntry struct {
	detail    *item.Detail
	available int
	reserve   int
}

// Pool is the factory stock for one cycle: storage contents as available
// stock and backup contents as reserve. It implements recipe.Stock.
type Pool struct {
	entries  map[item.Key]*poolEntry
	keys     []item.Key
	storages []storage.Storage
	backups  []storage.Storage
}

func newPool(storages, backups []storage.Storage) *Pool {
	p := &Pool{
		entries:  make(map[item.Key]*poolEntry),
		storages: storages,
		backups:  backups,
	}
	for _, s := range storages {
		for _, st := range s.List() {
			p.entry(st.Key, st.Detail).available += st.Size
		}
	}
	for _, b := range backups {
		for _, st := range b.List() {
			p.entry(st.Key, st.Detail).reserve += st.Size
		}
	}
	return p
}

func (p *Pool) entry(key item.Key, detail *item.Detail) *poolEntry {
	e, ok := p.entries[key]
	if !ok {
		e = &poolEntry{detail: detail}
		p.entries[key] = e
		i := sort.Search(len(p.keys), func(i int) bool { return p.keys[i].String() >= key.String() })
		p.keys = append(p.keys, item.Key{})
		copy(p.keys[i+1:], p.keys[i:])
		p.keys[i] = key
	}
	if e.detail == nil {
		e.detail = detail
	}
	return e
}

func (e *poolEntry) candidate(key item.Key) recipe.Candidate {
	return recipe.Candidate{Key: key, Detail: e.detail, Available: e.available, Reserve: e.reserve}
}

// Best implements recipe.Stock. It prefers the type with the most
// available stock, then the larger reserve, then key order.
func (p *Pool) Best(f item.Filter) (recipe.Candidate, bool) {
	var best recipe.Candidate
	found := false
	for _, k := range p.keys {
		e := p.entries[k]
		if e.available+e.reserve <= 0 || !f.Apply(k, e.detail) {
			continue
		}
		if !found || e.available > best.Available ||
			(e.available == best.Available && e.reserve > best.Reserve) {
			best = e.candidate(k)
			found = true
		}
	}
	return best, found
}

// Get implements recipe.Stock.
func (p *Pool) Get(key item.Key) (recipe.Candidate, bool) {
	e, ok := p.entries[key]
	if !ok {
		return recipe.Candidate{}, false
	}
	return e.candidate(key), true
}

// Count implements recipe.Stock.
func (p *Pool) Count(f item.Filter) int {
	n := 0
	for k, e := range p.entries {
		if f.Apply(k, e.detail) {
			n += e.available + e.reserve
		}
	}
	return n
}

// Entries returns the stock in key order, skipping exhausted types.
func (p *Pool) Entries() []StockEntry {
	out := make([]StockEntry, 0, len(p.keys))
	for _, k := range p.keys {
		e := p.entries[k]
		if e.available+e.reserve <= 0 {
			continue
		}
		se := StockEntry{Key: k, Available: e.available, Reserve: e.reserve}
		if e.detail != nil {
			se.Label = e.detail.Label
			se.MaxSize = e.detail.MaxSize
		}
		out = append(out, se)
	}
	return out
}

// extract moves up to n items of key into busSlot, from backups when
// fromBackup is set and from storages otherwise.
func (p *Pool) extract(ctx context.Context, key item.Key, n, busSlot int, fromBackup bool) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	sources := p.storages
	if fromBackup {
		sources = p.backups
	}

	var errs []error
	total := 0
	for _, s := range sources {
		if total >= n {
			break
		}
		have := s.Quantity(key)
		if have <= 0 {
			continue
		}
		moved, err := s.Extract(ctx, key, min(have, n-total), busSlot)
		total += moved
		if err != nil {
			errs = append(errs, err)
		}
	}

	if e, ok := p.entries[key]; ok {
		if fromBackup {
			e.reserve -= total
		} else {
			e.available -= total
		}
	}
	if total < n && len(errs) > 0 {
		return total, errors.Join(errs...)
	}
	return total, nil
}

// add records n items of key newly inserted into storage.
func (p *Pool) add(key item.Key, detail *item.Detail, n int) {
	if n > 0 {
		p.entry(key, detail).available += n
	}
}
