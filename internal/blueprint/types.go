package blueprint

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/factoryd/internal/item"
)

// Document is the root of a factory document.
type Document struct {
	ServerPort       int           `yaml:"server_port" json:"server_port"`
	MinCycleTimeSecs float64       `yaml:"min_cycle_time_secs" json:"min_cycle_time_secs"`
	LogClients       []string      `yaml:"log_clients" json:"log_clients"`
	BusAccesses      []BusAccess   `yaml:"bus_accesses" json:"bus_accesses"`
	FluidBusAccesses []FluidAccess `yaml:"fluid_bus_accesses" json:"fluid_bus_accesses"`
	FluidBusCapacity int           `yaml:"fluid_bus_capacity" json:"fluid_bus_capacity"`
	Storages         []Storage     `yaml:"storages" json:"storages"`
	Processes        []Process     `yaml:"processes" json:"processes"`
	Backups          []BusAccess   `yaml:"backups" json:"backups"`
	FluidBackups     []FluidAccess `yaml:"fluid_backups" json:"fluid_backups"`
}

// MinCycleTime returns the minimum cycle period.
func (d *Document) MinCycleTime() time.Duration {
	return time.Duration(d.MinCycleTimeSecs * float64(time.Second))
}

// BusAccess names an inventory as seen from one client.
type BusAccess struct {
	Client string `yaml:"client" json:"client"`
	Addr   string `yaml:"addr" json:"addr"`
}

// FluidAccess names a tank and its fluid bus as seen from one client.
type FluidAccess struct {
	Client        string   `yaml:"client" json:"client"`
	FluidBusAddrs []string `yaml:"fluid_bus_addrs" json:"fluid_bus_addrs"`
	TankAddr      string   `yaml:"tank_addr" json:"tank_addr"`
}

// RedstoneAccess names a redstone face as seen from one client.
type RedstoneAccess struct {
	Client string `yaml:"client" json:"client"`
	Addr   string `yaml:"addr" json:"addr"`
	Side   string `yaml:"side" json:"side"`
}

// Filter types.
const (
	FilterLabel  = "Label"
	FilterName   = "Name"
	FilterBoth   = "Both"
	FilterCustom = "Custom"
)

// Filter is the document form of item.Filter.
type Filter struct {
	Type  string `yaml:"type" json:"type"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Desc  string `yaml:"desc,omitempty" json:"desc,omitempty"`
}

// ToFilter converts the document form into an item.Filter.
func (f Filter) ToFilter() (item.Filter, error) {
	switch f.Type {
	case FilterLabel:
		if f.Value == "" {
			return item.Filter{}, fmt.Errorf("%w: Label filter needs value", item.ErrInvalidFilter)
		}
		return item.Label(f.Value), nil
	case FilterName:
		if f.Value == "" {
			return item.Filter{}, fmt.Errorf("%w: Name filter needs value", item.ErrInvalidFilter)
		}
		return item.Name(f.Value), nil
	case FilterBoth:
		if f.Label == "" || f.Name == "" {
			return item.Filter{}, fmt.Errorf("%w: Both filter needs label and name", item.ErrInvalidFilter)
		}
		return item.Both(f.Label, f.Name), nil
	case FilterCustom:
		return item.ParseCustom(f.Desc)
	default:
		return item.Filter{}, fmt.Errorf("%w: filter %q", ErrUnknownType, f.Type)
	}
}

// Storage types.
const (
	StorageChest  = "Chest"
	StorageDrawer = "Drawer"
)

// Storage is a tagged union of storage configurations.
type Storage struct {
	Type   string
	Chest  *Chest
	Drawer *Drawer
}

// Chest configures a plain chest.
type Chest struct {
	Accesses             []BusAccess `yaml:"accesses"`
	OverrideMaxStackSize *int        `yaml:"override_max_stack_size"`
}

// Drawer configures a filtered drawer.
type Drawer struct {
	Accesses []BusAccess `yaml:"accesses"`
	Filters  []Filter    `yaml:"filters"`
}

type typeTag struct {
	Type string `yaml:"type"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Storage) UnmarshalYAML(node *yaml.Node) error {
	var tag typeTag
	if err := node.Decode(&tag); err != nil {
		return err
	}
	s.Type = tag.Type
	switch tag.Type {
	case StorageChest:
		s.Chest = &Chest{}
		return node.Decode(s.Chest)
	case StorageDrawer:
		s.Drawer = &Drawer{}
		return node.Decode(s.Drawer)
	default:
		return fmt.Errorf("%w: storage %q at line %d", ErrUnknownType, tag.Type, node.Line)
	}
}

// Process types.
const (
	ProcessManualUI        = "ManualUI"
	ProcessWorkbench       = "Workbench"
	ProcessSlotted         = "Slotted"
	ProcessTurtle          = "Turtle"
	ProcessRedstoneEmitter = "RedstoneEmitter"
)

// Process is a tagged union of process configurations.
type Process struct {
	Type            string
	ManualUI        *ManualUI
	Workbench       *Workbench
	Slotted         *Slotted
	Turtle          *Turtle
	RedstoneEmitter *RedstoneEmitter
}

// ManualUI configures a station served on request from the UI.
type ManualUI struct {
	Name     string      `yaml:"name"`
	Accesses []BusAccess `yaml:"accesses"`
}

// Workbench configures a crafting station.
type Workbench struct {
	Name     string      `yaml:"name"`
	Accesses []BusAccess `yaml:"accesses"`
	Recipes  []Recipe    `yaml:"recipes"`
}

// Slotted configures a machine with fixed input slots.
type Slotted struct {
	Name           string      `yaml:"name"`
	Accesses       []BusAccess `yaml:"accesses"`
	InputSlots     []int       `yaml:"input_slots"`
	ExtractFilter  *Filter     `yaml:"extract_filter"`
	Recipes        []Recipe    `yaml:"recipes"`
	StrictPriority bool        `yaml:"strict_priority"`
}

// Turtle configures an autonomous program.
type Turtle struct {
	Name     string `yaml:"name"`
	FileName string `yaml:"file_name"`
	Client   string `yaml:"client"`
}

// RedstoneEmitter configures stock-driven redstone outputs.
type RedstoneEmitter struct {
	Accesses    []RedstoneAccess `yaml:"accesses"`
	OutputRules []RedstoneRule   `yaml:"output_rules"`
}

// RedstoneRule drives one output from the presence of trigger items.
// Bit selects a bundled-cable channel; nil drives the whole face.
type RedstoneRule struct {
	Name         string   `yaml:"name"`
	OffSignal    int      `yaml:"off_signal"`
	OnSignal     int      `yaml:"on_signal"`
	TriggerItems []Filter `yaml:"trigger_items"`
	Bit          *int     `yaml:"bit"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Process) UnmarshalYAML(node *yaml.Node) error {
	var tag typeTag
	if err := node.Decode(&tag); err != nil {
		return err
	}
	p.Type = tag.Type
	switch tag.Type {
	case ProcessManualUI:
		p.ManualUI = &ManualUI{}
		return node.Decode(p.ManualUI)
	case ProcessWorkbench:
		p.Workbench = &Workbench{}
		return node.Decode(p.Workbench)
	case ProcessSlotted:
		p.Slotted = &Slotted{}
		return node.Decode(p.Slotted)
	case ProcessTurtle:
		p.Turtle = &Turtle{}
		return node.Decode(p.Turtle)
	case ProcessRedstoneEmitter:
		p.RedstoneEmitter = &RedstoneEmitter{}
		return node.Decode(p.RedstoneEmitter)
	default:
		return fmt.Errorf("%w: process %q at line %d", ErrUnknownType, tag.Type, node.Line)
	}
}

// Recipe configures one recipe of a Workbench or Slotted process.
type Recipe struct {
	Outputs []Output `yaml:"outputs"`
	Inputs  []Input  `yaml:"inputs"`
	MaxSets int      `yaml:"max_sets"`
}

// Input configures one ingredient.
type Input struct {
	Item          Filter `yaml:"item"`
	Slots         []Slot `yaml:"slots"`
	AllowBackup   bool   `yaml:"allow_backup"`
	ExtraBackup   int    `yaml:"extra_backup"`
	NonConsumable bool   `yaml:"non_consumable"`
}

// Slot places Size items per set into machine slot Slot.
type Slot struct {
	Slot int `yaml:"slot"`
	Size int `yaml:"size"`
}

// Output names a product. A bare filter is accepted in place of the
// object form and means "no stock target".
type Output struct {
	Item    Filter `yaml:"item"`
	NWanted int    `yaml:"n_wanted"`
	PerSet  int    `yaml:"per_set"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *Output) UnmarshalYAML(node *yaml.Node) error {
	var tag typeTag
	if err := node.Decode(&tag); err != nil {
		return err
	}
	if tag.Type != "" {
		return node.Decode(&o.Item)
	}
	type plain Output
	return node.Decode((*plain)(o))
}
