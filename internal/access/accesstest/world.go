// Package accesstest provides an in-memory remote world for tests.
//
// A World holds inventories, tanks and redstone outputs keyed by address and
// implements access.Remote over them. Client names are only used for failure
// injection: every client sees every address.
package accesstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/item"
)

// ErrInjected is the cause of failures configured with Fail*.
var ErrInjected = errors.New("accesstest: injected failure")

// CraftFunc mutates a crafting grid and returns how many crafts succeeded.
type CraftFunc func(grid []access.Slot, count int) int

// World is an in-memory access.Remote.
type World struct {
	mu          sync.Mutex
	inventories map[string][]access.Slot
	details     map[item.Key]item.Detail
	crafters    map[string]CraftFunc
	tanks       map[string][]access.Fluid
	redstone    map[string]int
	printed     []string
	failClients map[string]bool
	failAddrs   map[string]bool
	calls       map[string]int
}

// NewWorld returns an empty world.
func NewWorld() *World {
	return &World{
		inventories: make(map[string][]access.Slot),
		details:     make(map[item.Key]item.Detail),
		crafters:    make(map[string]CraftFunc),
		tanks:       make(map[string][]access.Fluid),
		redstone:    make(map[string]int),
		failClients: make(map[string]bool),
		failAddrs:   make(map[string]bool),
		calls:       make(map[string]int),
	}
}

// Define registers the metadata of an item type.
func (w *World) Define(key item.Key, label string, maxSize int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.details[key] = item.Detail{Label: label, Name: key.Name, MaxSize: maxSize}
}

// AddInventory creates an inventory with size slots. A positive limit is
// reported as the per-slot capacity and overrides item stack sizes.
func (w *World) AddInventory(addr string, size, limit int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	slots := make([]access.Slot, size)
	for i := range slots {
		slots[i].Limit = limit
	}
	w.inventories[addr] = slots
}

// Put places count items of key into a slot, replacing its content.
func (w *World) Put(addr string, slot int, key item.Key, count int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	inv := w.inventories[addr]
	inv[slot].Key = key
	inv[slot].Count = count
	if count == 0 {
		inv[slot].Key = item.Key{}
	}
}

// Count returns the total quantity of key in an inventory.
func (w *World) Count(addr string, key item.Key) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, s := range w.inventories[addr] {
		if s.Key == key {
			n += s.Count
		}
	}
	return n
}

// Slots returns a copy of an inventory.
func (w *World) Slots(addr string) []access.Slot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]access.Slot(nil), w.inventories[addr]...)
}

// SetCrafter installs the crafting behaviour of a grid.
func (w *World) SetCrafter(addr string, fn CraftFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.crafters[addr] = fn
}

// SetTank replaces the tanks of a fluid container.
func (w *World) SetTank(addr string, fluids ...access.Fluid) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tanks[addr] = fluids
}

// Redstone returns the last level driven on an output.
func (w *World) Redstone(out access.RedstoneAccess) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	level, ok := w.redstone[out.Claim()]
	return level, ok
}

// Printed returns every line sent with Print.
func (w *World) Printed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.printed...)
}

// FailClient makes every operation through client fail until cleared.
func (w *World) FailClient(client string, fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failClients[client] = fail
}

// FailAddr makes every operation touching addr fail until cleared.
func (w *World) FailAddr(addr string, fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failAddrs[addr] = fail
}

// Calls returns how many times op was invoked.
func (w *World) Calls(op string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[op]
}

func (w *World) check(op, client string, addrs ...string) error {
	w.calls[op]++
	if w.failClients[client] {
		return access.NewError(op, client, "", ErrInjected)
	}
	for _, a := range addrs {
		if w.failAddrs[a] {
			return access.NewError(op, client, a, ErrInjected)
		}
	}
	return nil
}

func (w *World) inventory(op, client, addr string) ([]access.Slot, error) {
	inv, ok := w.inventories[addr]
	if !ok {
		return nil, access.NewError(op, client, addr, fmt.Errorf("%w: no inventory", access.ErrRejected))
	}
	return inv, nil
}

func (w *World) capacity(s access.Slot, key item.Key) int {
	if s.Limit > 0 {
		return s.Limit
	}
	if d, ok := w.details[key]; ok && d.MaxSize > 0 {
		return d.MaxSize
	}
	return 64
}

// List implements access.Remote.
func (w *World) List(_ context.Context, client, addr string) ([]access.Slot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check("list", client, addr); err != nil {
		return nil, err
	}
	inv, err := w.inventory("list", client, addr)
	if err != nil {
		return nil, err
	}
	return append([]access.Slot(nil), inv...), nil
}

// GetDetail implements access.Remote.
func (w *World) GetDetail(_ context.Context, client, addr string, slot int) (item.Detail, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check("detail", client, addr); err != nil {
		return item.Detail{}, err
	}
	inv, err := w.inventory("detail", client, addr)
	if err != nil {
		return item.Detail{}, err
	}
	if slot < 0 || slot >= len(inv) || inv[slot].Empty() {
		return item.Detail{}, access.NewError("detail", client, addr, fmt.Errorf("%w: slot %d empty", access.ErrRejected, slot))
	}
	d, ok := w.details[inv[slot].Key]
	if !ok {
		return item.Detail{Name: inv[slot].Key.Name, Label: inv[slot].Key.Name, MaxSize: 64}, nil
	}
	return d, nil
}

// Transfer implements access.Remote.
func (w *World) Transfer(_ context.Context, client string, t access.Transfer) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check("transfer", client, t.From, t.To); err != nil {
		return 0, err
	}
	src, err := w.inventory("transfer", client, t.From)
	if err != nil {
		return 0, err
	}
	dst, err := w.inventory("transfer", client, t.To)
	if err != nil {
		return 0, err
	}
	if t.FromSlot < 0 || t.FromSlot >= len(src) || src[t.FromSlot].Empty() {
		return 0, nil
	}
	key := src[t.FromSlot].Key
	remaining := min(t.Count, src[t.FromSlot].Count)

	targets := []int{t.ToSlot}
	if t.ToSlot == access.AnySlot {
		targets = targets[:0]
		// Existing stacks first, then empty slots.
		for i, s := range dst {
			if !s.Empty() && s.Key == key {
				targets = append(targets, i)
			}
		}
		for i, s := range dst {
			if s.Empty() {
				targets = append(targets, i)
			}
		}
	}

	moved := 0
	for _, i := range targets {
		if remaining == 0 {
			break
		}
		if i < 0 || i >= len(dst) {
			continue
		}
		if !dst[i].Empty() && dst[i].Key != key {
			continue
		}
		room := w.capacity(dst[i], key) - dst[i].Count
		n := min(room, remaining)
		if n <= 0 {
			continue
		}
		dst[i].Key = key
		dst[i].Count += n
		remaining -= n
		moved += n
	}

	src[t.FromSlot].Count -= moved
	if src[t.FromSlot].Count == 0 {
		src[t.FromSlot].Key = item.Key{}
	}
	return moved, nil
}

// Craft implements access.Remote.
func (w *World) Craft(_ context.Context, client, addr string, count int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check("craft", client, addr); err != nil {
		return 0, err
	}
	grid, err := w.inventory("craft", client, addr)
	if err != nil {
		return 0, err
	}
	fn, ok := w.crafters[addr]
	if !ok {
		return 0, access.NewError("craft", client, addr, fmt.Errorf("%w: not a crafter", access.ErrRejected))
	}
	return fn(grid, count), nil
}

// SetRedstone implements access.Remote.
func (w *World) SetRedstone(_ context.Context, out access.RedstoneAccess, level int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check("redstone", out.Client, out.Addr); err != nil {
		return err
	}
	w.redstone[out.Claim()] = level
	return nil
}

// ListFluids implements access.Remote.
func (w *World) ListFluids(_ context.Context, client, addr string) ([]access.Fluid, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check("fluids", client, addr); err != nil {
		return nil, err
	}
	return append([]access.Fluid(nil), w.tanks[addr]...), nil
}

// Print implements access.Printer.
func (w *World) Print(_ context.Context, client, text string, _ int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.check("print", client); err != nil {
		return err
	}
	w.printed = append(w.printed, client+": "+text)
	return nil
}

// Shapeless returns a CraftFunc that consumes the given quantities per craft
// from any grid slots and places out x perCraft into outSlot.
func Shapeless(inputs map[item.Key]int, out item.Key, perCraft, outSlot int) CraftFunc {
	keys := make([]item.Key, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	return func(grid []access.Slot, count int) int {
		crafted := 0
		for crafted < count {
			for _, k := range keys {
				have := 0
				for _, s := range grid {
					if s.Key == k {
						have += s.Count
					}
				}
				if have < inputs[k] {
					return crafted
				}
			}
			if !grid[outSlot].Empty() && grid[outSlot].Key != out {
				return crafted
			}
			for _, k := range keys {
				need := inputs[k]
				for i := range grid {
					if need == 0 {
						break
					}
					if grid[i].Key != k {
						continue
					}
					n := min(need, grid[i].Count)
					grid[i].Count -= n
					need -= n
					if grid[i].Count == 0 {
						grid[i].Key = item.Key{}
					}
				}
			}
			grid[outSlot].Key = out
			grid[outSlot].Count += perCraft
			crafted++
		}
		return crafted
	}
}
