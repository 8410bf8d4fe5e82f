package access

import (
	"context"
	"fmt"

	"github.com/nerrad567/factoryd/internal/item"
)

// AnySlot asks a transfer to place items wherever the destination accepts them.
const AnySlot = -1

// BusAccess reaches an item inventory and the bus from one client.
type BusAccess struct {
	Client  string `json:"client"`
	InvAddr string `json:"inv_addr"`
	BusAddr string `json:"bus_addr"`
}

// Claim returns the address identity used for duplicate detection.
func (a BusAccess) Claim() string {
	return "inv:" + a.Client + "/" + a.InvAddr
}

func (a BusAccess) String() string {
	return a.Client + "/" + a.InvAddr
}

// FluidAccess reaches a tank and the fluid bus from one client.
type FluidAccess struct {
	Client        string   `json:"client"`
	FluidBusAddrs []string `json:"fluid_bus_addrs"`
	TankAddr      string   `json:"tank_addr"`
}

// Claim returns the address identity used for duplicate detection.
func (a FluidAccess) Claim() string {
	return "tank:" + a.Client + "/" + a.TankAddr
}

// RedstoneAccess reaches a redstone output face. Bit selects one channel of
// a bundled cable; nil drives the whole face.
type RedstoneAccess struct {
	Client string `json:"client"`
	Addr   string `json:"addr"`
	Side   string `json:"side"`
	Bit    *int   `json:"bit,omitempty"`
}

// Claim returns the address identity used for duplicate detection.
func (a RedstoneAccess) Claim() string {
	bit := "*"
	if a.Bit != nil {
		bit = fmt.Sprint(*a.Bit)
	}
	return "redstone:" + a.Client + "/" + a.Addr + "/" + a.Side + "/" + bit
}

// Slot is one raw inventory slot as listed by a client. Count zero means the
// slot is empty. Limit is the per-slot capacity reported by the inventory,
// zero when unknown.
type Slot struct {
	Key   item.Key `json:"key"`
	Count int      `json:"count"`
	Limit int      `json:"limit,omitempty"`
}

// Empty reports whether the slot holds nothing.
func (s Slot) Empty() bool { return s.Count <= 0 }

// Transfer moves items between two inventories visible to the same client.
type Transfer struct {
	From     string `json:"from"`
	FromSlot int    `json:"from_slot"`
	To       string `json:"to"`
	ToSlot   int    `json:"to_slot"`
	Count    int    `json:"count"`
}

// Fluid is the content of one tank.
type Fluid struct {
	Name     string `json:"name"`
	Amount   int    `json:"amount"`
	Capacity int    `json:"capacity"`
}

// Remote is the capability a transport offers to the factory engine.
//
// Slots are zero-based. Implementations must be safe for concurrent use.
type Remote interface {
	// List returns the raw slots of an inventory.
	List(ctx context.Context, client, addr string) ([]Slot, error)

	// GetDetail queries the metadata of the item in one slot.
	GetDetail(ctx context.Context, client, addr string, slot int) (item.Detail, error)

	// Transfer moves up to t.Count items and returns how many moved.
	Transfer(ctx context.Context, client string, t Transfer) (int, error)

	// Craft asks a crafting client to craft up to count times from the grid
	// in addr and returns how many crafts succeeded.
	Craft(ctx context.Context, client, addr string, count int) (int, error)

	// SetRedstone drives a redstone output to level (0-15).
	SetRedstone(ctx context.Context, out RedstoneAccess, level int) error

	// ListFluids returns the tanks of a fluid container.
	ListFluids(ctx context.Context, client, addr string) ([]Fluid, error)
}

// Printer shows a log line on a client's display.
type Printer interface {
	Print(ctx context.Context, client, text string, color int) error
}
