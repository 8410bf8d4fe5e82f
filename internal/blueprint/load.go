package blueprint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Redstone levels accepted by signal fields.
const (
	minSignal = 0
	maxSignal = 15
	maxBit    = 15
)

// Load reads and validates the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrConfig, path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates a JSON or YAML document.
func Parse(data []byte) (*Document, error) {
	// Tab-indented JSON is not valid YAML, so JSON input is normalised first.
	if json.Valid(data) {
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		normalised, err := yaml.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		data = normalised
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrConfig)
		}
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document's structure and reports every problem.
func (d *Document) Validate() error {
	v := &validator{}

	if d.ServerPort < 0 || d.ServerPort > 65535 {
		v.addf("server_port %d out of range", d.ServerPort)
	}
	if d.MinCycleTimeSecs < 0 {
		v.addf("min_cycle_time_secs must not be negative")
	}
	if d.FluidBusCapacity < 0 {
		v.addf("fluid_bus_capacity must not be negative")
	}
	if len(d.FluidBusAccesses) > 0 && d.FluidBusCapacity == 0 {
		v.addf("fluid_bus_capacity is required with fluid_bus_accesses")
	}
	for i, c := range d.LogClients {
		if c == "" {
			v.addf("log_clients[%d] is empty", i)
		}
	}

	v.busAccesses("bus_accesses", d.BusAccesses)
	v.busAccesses("backups", d.Backups)
	v.fluidAccesses("fluid_bus_accesses", d.FluidBusAccesses)
	v.fluidAccesses("fluid_backups", d.FluidBackups)

	for i, s := range d.Storages {
		path := fmt.Sprintf("storages[%d]", i)
		switch {
		case s.Chest != nil:
			v.requireAccesses(path, s.Chest.Accesses)
			if s.Chest.OverrideMaxStackSize != nil && *s.Chest.OverrideMaxStackSize < 1 {
				v.addf("%s: override_max_stack_size must be positive", path)
			}
		case s.Drawer != nil:
			v.requireAccesses(path, s.Drawer.Accesses)
			if len(s.Drawer.Filters) == 0 {
				v.addf("%s: drawer needs at least one filter", path)
			}
			v.filters(path+".filters", s.Drawer.Filters)
		default:
			v.addf("%s: missing type", path)
		}
	}

	for i, p := range d.Processes {
		v.process(fmt.Sprintf("processes[%d]", i), p)
	}

	return v.err()
}

type validator struct {
	errs []error
}

func (v *validator) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfig, errors.Join(v.errs...))
}

func (v *validator) busAccesses(path string, accesses []BusAccess) {
	for i, a := range accesses {
		if a.Client == "" || a.Addr == "" {
			v.addf("%s[%d]: client and addr are required", path, i)
		}
	}
}

func (v *validator) requireAccesses(path string, accesses []BusAccess) {
	if len(accesses) == 0 {
		v.addf("%s: at least one access is required", path)
	}
	v.busAccesses(path+".accesses", accesses)
}

func (v *validator) fluidAccesses(path string, accesses []FluidAccess) {
	for i, a := range accesses {
		if a.Client == "" || a.TankAddr == "" {
			v.addf("%s[%d]: client and tank_addr are required", path, i)
		}
	}
}

func (v *validator) filters(path string, filters []Filter) {
	for i, f := range filters {
		if _, err := f.ToFilter(); err != nil {
			v.addf("%s[%d]: %v", path, i, err)
		}
	}
}

func (v *validator) recipes(path string, recipes []Recipe) {
	for i, r := range recipes {
		rp := fmt.Sprintf("%s.recipes[%d]", path, i)
		if len(r.Inputs) == 0 {
			v.addf("%s: at least one input is required", rp)
		}
		for j, in := range r.Inputs {
			ip := fmt.Sprintf("%s.inputs[%d]", rp, j)
			v.filters(ip+".item", []Filter{in.Item})
			if len(in.Slots) == 0 {
				v.addf("%s: at least one slot is required", ip)
			}
			for _, s := range in.Slots {
				if s.Size < 1 || s.Slot < 0 {
					v.addf("%s: slot %d size %d is invalid", ip, s.Slot, s.Size)
				}
			}
			if in.ExtraBackup < 0 {
				v.addf("%s: extra_backup must not be negative", ip)
			}
		}
		for j, o := range r.Outputs {
			op := fmt.Sprintf("%s.outputs[%d]", rp, j)
			v.filters(op+".item", []Filter{o.Item})
			if o.NWanted < 0 || o.PerSet < 0 {
				v.addf("%s: n_wanted and per_set must not be negative", op)
			}
		}
		// max_sets is checked when the factory is built.
	}
}

func (v *validator) process(path string, p Process) {
	switch {
	case p.ManualUI != nil:
		v.requireAccesses(path, p.ManualUI.Accesses)

	case p.Workbench != nil:
		if p.Workbench.Name == "" {
			v.addf("%s: name is required", path)
		}
		v.requireAccesses(path, p.Workbench.Accesses)
		v.recipes(path, p.Workbench.Recipes)

	case p.Slotted != nil:
		s := p.Slotted
		if s.Name == "" {
			v.addf("%s: name is required", path)
		}
		v.requireAccesses(path, s.Accesses)
		if len(s.InputSlots) == 0 {
			v.addf("%s: input_slots is required", path)
		}
		if s.ExtractFilter != nil {
			v.filters(path+".extract_filter", []Filter{*s.ExtractFilter})
		}
		v.recipes(path, s.Recipes)
		inputs := make(map[int]bool, len(s.InputSlots))
		for _, slot := range s.InputSlots {
			inputs[slot] = true
		}
		for i, r := range s.Recipes {
			for _, in := range r.Inputs {
				for _, sl := range in.Slots {
					if !inputs[sl.Slot] {
						v.addf("%s.recipes[%d]: slot %d is not an input slot", path, i, sl.Slot)
					}
				}
			}
		}

	case p.Turtle != nil:
		if p.Turtle.Name == "" || p.Turtle.FileName == "" || p.Turtle.Client == "" {
			v.addf("%s: name, file_name and client are required", path)
		}

	case p.RedstoneEmitter != nil:
		e := p.RedstoneEmitter
		if len(e.Accesses) == 0 {
			v.addf("%s: at least one access is required", path)
		}
		for i, a := range e.Accesses {
			if a.Client == "" || a.Addr == "" {
				v.addf("%s.accesses[%d]: client and addr are required", path, i)
			}
		}
		if len(e.OutputRules) == 0 {
			v.addf("%s: at least one output rule is required", path)
		}
		for i, r := range e.OutputRules {
			rp := fmt.Sprintf("%s.output_rules[%d]", path, i)
			if r.Name == "" {
				v.addf("%s: name is required", rp)
			}
			if r.OffSignal < minSignal || r.OffSignal > maxSignal || r.OnSignal < minSignal || r.OnSignal > maxSignal {
				v.addf("%s: signals must be between %d and %d", rp, minSignal, maxSignal)
			}
			if r.Bit != nil && (*r.Bit < 0 || *r.Bit > maxBit) {
				v.addf("%s: bit must be between 0 and %d", rp, maxBit)
			}
			if len(r.TriggerItems) == 0 {
				v.addf("%s: at least one trigger item is required", rp)
			}
			v.filters(rp+".trigger_items", r.TriggerItems)
		}

	default:
		v.addf("%s: missing type", path)
	}
}
