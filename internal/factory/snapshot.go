package factory

import (
	"time"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/item"
	"github.com/nerrad567/factoryd/internal/storage"
)

// Snapshot is an immutable view of the factory after a cycle.
type Snapshot struct {
	Cycle        uint64               `json:"cycle"`
	Time         time.Time            `json:"time"`
	Duration     time.Duration        `json:"duration_ns"`
	MinCycleTime time.Duration        `json:"min_cycle_time_ns"`
	Storages     []StorageStatus      `json:"storages"`
	Backups      []StorageStatus      `json:"backups"`
	Stock        []StockEntry         `json:"stock"`
	Fluids       []FluidStatus        `json:"fluids"`
	FluidBus     []access.FluidAccess `json:"fluid_bus,omitempty"`
	FluidBusCap  int                  `json:"fluid_bus_capacity"`
	Processes    []ProcessStatus      `json:"processes"`
	BusOnline    bool                 `json:"bus_online"`
	BusOccupied  int                  `json:"bus_occupied"`
}

// StorageStatus describes one storage or backup.
type StorageStatus struct {
	Name   string             `json:"name"`
	Kind   string             `json:"kind"`
	Online bool               `json:"online"`
	Stacks []item.DetailStack `json:"stacks"`
}

// StockEntry is the pooled stock of one item type.
type StockEntry struct {
	Key       item.Key `json:"key"`
	Label     string   `json:"label"`
	MaxSize   int      `json:"max_size"`
	Available int      `json:"available"`
	Reserve   int      `json:"reserve"`
}

// Total is the stock including reserves.
func (e StockEntry) Total() int { return e.Available + e.Reserve }

// FluidStatus lists one fluid backup tank.
type FluidStatus struct {
	Client   string         `json:"client"`
	TankAddr string         `json:"tank_addr"`
	Fluids   []access.Fluid `json:"fluids,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ProcessStatus describes one process after a cycle.
type ProcessStatus struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Sets  int    `json:"sets"`
	Error string `json:"error,omitempty"`
}

// Stacks returns the stock as detail stacks, reserves included.
func (s *Snapshot) Stacks() []item.DetailStack {
	if s == nil {
		return nil
	}
	out := make([]item.DetailStack, 0, len(s.Stock))
	for _, e := range s.Stock {
		d := &item.Detail{Label: e.Label, Name: e.Key.Name, MaxSize: e.MaxSize}
		out = append(out, item.DetailStack{Key: e.Key, Detail: d, Size: e.Total()})
	}
	return out
}

// Find returns the stock entries accepted by match, or all of them when
// match is nil.
func (s *Snapshot) Find(match func(StockEntry) bool) []StockEntry {
	if s == nil {
		return nil
	}
	var out []StockEntry
	for _, e := range s.Stock {
		if match == nil || match(e) {
			out = append(out, e)
		}
	}
	return out
}

func storageKind(s storage.Storage) string {
	switch s.(type) {
	case *storage.Drawer:
		return blueprint.StorageDrawer
	default:
		return blueprint.StorageChest
	}
}

func storageStatus(s storage.Storage, kind string) StorageStatus {
	return StorageStatus{Name: s.Name(), Kind: kind, Online: s.Online(), Stacks: s.List()}
}

// publish stores the snapshot of a finished cycle.
func (f *Factory) publish(r Report, pool *Pool, fluids []FluidStatus) *Snapshot {
	snap := &Snapshot{
		Cycle:        r.Cycle,
		Time:         r.Started,
		Duration:     r.Duration,
		MinCycleTime: f.minCycleTime,
		Fluids:       fluids,
		FluidBus:     append([]access.FluidAccess(nil), f.fluidBus...),
		FluidBusCap:  f.fluidCap,
		BusOnline:    f.bus.online,
		BusOccupied:  f.bus.occupied(),
	}
	for _, s := range f.storages {
		snap.Storages = append(snap.Storages, storageStatus(s, storageKind(s)))
	}
	for _, b := range f.backups {
		snap.Backups = append(snap.Backups, storageStatus(b, "Backup"))
	}
	if pool != nil {
		snap.Stock = pool.Entries()
	}

	sets := make(map[string]int, len(r.Results))
	for _, res := range r.Results {
		sets[res.Name] = res.Sets
	}
	for _, p := range f.processes {
		snap.Processes = append(snap.Processes, ProcessStatus{
			Name:  p.Name(),
			Kind:  p.Kind(),
			Sets:  sets[p.Name()],
			Error: f.lastErrs[p.Name()],
		})
	}

	f.snapshot.Store(snap)
	return snap
}
