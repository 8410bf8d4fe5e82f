package factory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/item"
	"github.com/nerrad567/factoryd/internal/recipe"
	"github.com/nerrad567/factoryd/internal/storage"
)

// DefaultProbeTimeout bounds each probe listing when Deps leaves it zero.
const DefaultProbeTimeout = 5 * time.Second

// builder accumulates every problem of a document before failing.
type builder struct {
	doc    *blueprint.Document
	deps   Deps
	f      *Factory
	claims map[string]string
	names  map[string]bool
	errs   []error
}

// Build turns a validated document into a Factory. Every invariant
// violation is reported, each wrapping ErrInvariant. The returned factory
// owns no goroutines until its first cycle starts a Turtle.
//
// Parameters:
//   - ctx: Bounds the optional probe
//   - doc: Document that passed blueprint validation
//   - deps: Shared services; Remote and Details are required
//
// Returns:
//   - *Factory: Ready to run cycles
//   - error: Joined invariant violations or probe failures
func Build(ctx context.Context, doc *blueprint.Document, deps Deps) (*Factory, error) {
	if deps.Remote == nil || deps.Details == nil {
		return nil, errors.New("factory: Remote and Details are required")
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b := &builder{
		doc:  doc,
		deps: deps,
		f: &Factory{
			serverPort:   doc.ServerPort,
			minCycleTime: doc.MinCycleTime(),
			logClients:   append([]string(nil), doc.LogClients...),
			fluidCap:     doc.FluidBusCapacity,
			bus:          newBus(deps.Remote, deps.Details),
			remote:       deps.Remote,
			details:      deps.Details,
			manual:       deps.Manual,
			records:      deps.Deliveries,
			sink:         deps.Sink,
			logger:       deps.Logger,
			runCtx:       runCtx,
			runCancel:    cancel,
			lastErrs:     make(map[string]string),
		},
		claims: make(map[string]string),
		names:  make(map[string]bool),
	}

	b.buildBus()
	b.buildStorages()
	b.buildBackups()
	b.buildProcesses()

	if len(b.errs) == 0 && deps.Probe {
		b.probe(ctx)
	}
	if len(b.errs) > 0 {
		cancel()
		return nil, errors.Join(b.errs...)
	}

	b.f.publish(Report{}, nil, nil)
	return b.f, nil
}

func (b *builder) fail(kind error, format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf("%w: %w: %s", ErrInvariant, kind, fmt.Sprintf(format, args...)))
}

func (b *builder) claim(owner, key string) {
	if prev, ok := b.claims[key]; ok {
		b.fail(ErrDuplicateAccess, "%s claimed by %s and %s", key, prev, owner)
		return
	}
	b.claims[key] = owner
}

func (b *builder) buildBus() {
	for i, a := range b.doc.BusAccesses {
		owner := fmt.Sprintf("bus_accesses[%d]", i)
		if _, dup := b.f.bus.addr(a.Client); dup {
			b.fail(ErrDuplicateAccess, "%s: client %s already has a bus", owner, a.Client)
			continue
		}
		b.claim(owner, access.BusAccess{Client: a.Client, InvAddr: a.Addr}.Claim())
		b.f.bus.add(a.Client, a.Addr)
	}

	fluidClients := make(map[string]bool)
	for i, a := range b.doc.FluidBusAccesses {
		fa := access.FluidAccess(a)
		b.claim(fmt.Sprintf("fluid_bus_accesses[%d]", i), fa.Claim())
		b.f.fluidBus = append(b.f.fluidBus, fa)
		fluidClients[a.Client] = true
	}
	for i, a := range b.doc.FluidBackups {
		owner := fmt.Sprintf("fluid_backups[%d]", i)
		fa := access.FluidAccess(a)
		b.claim(owner, fa.Claim())
		if !fluidClients[a.Client] {
			b.fail(ErrUnreachable, "%s: client %s has no fluid bus access", owner, a.Client)
		}
		b.f.fluidBackups = append(b.f.fluidBackups, fa)
	}
}

// accesses resolves document accesses against the bus.
func (b *builder) accesses(owner string, in []blueprint.BusAccess) []access.BusAccess {
	out := make([]access.BusAccess, 0, len(in))
	for _, a := range in {
		busAddr, ok := b.f.bus.addr(a.Client)
		if !ok {
			b.fail(ErrUnreachable, "%s: client %s has no bus access", owner, a.Client)
			continue
		}
		acc := access.BusAccess{Client: a.Client, InvAddr: a.Addr, BusAddr: busAddr}
		b.claim(owner, acc.Claim())
		out = append(out, acc)
	}
	return out
}

func (b *builder) storageDeps() storage.Deps {
	return storage.Deps{Remote: b.deps.Remote, Details: b.deps.Details, Logger: b.deps.Logger}
}

func (b *builder) buildStorages() {
	for i, s := range b.doc.Storages {
		name := fmt.Sprintf("%s#%d", strings.ToLower(s.Type), i)
		var (
			st  storage.Storage
			err error
		)
		switch {
		case s.Chest != nil:
			accs := b.accesses(name, s.Chest.Accesses)
			var maxSize storage.MaxSizeFunc
			if s.Chest.OverrideMaxStackSize != nil {
				maxSize = storage.FixedMaxSize(*s.Chest.OverrideMaxStackSize)
			}
			st, err = storage.NewChest(name, accs, b.storageDeps(), maxSize)
		case s.Drawer != nil:
			accs := b.accesses(name, s.Drawer.Accesses)
			filters := b.filters(name, s.Drawer.Filters)
			st, err = storage.NewDrawer(name, accs, b.storageDeps(), filters)
		default:
			err = fmt.Errorf("%w: storage %d", blueprint.ErrUnknownType, i)
		}
		if err != nil {
			b.fail(ErrUnreachable, "%s: %v", name, err)
			continue
		}
		b.f.storages = append(b.f.storages, st)
	}
}

func (b *builder) buildBackups() {
	for i, a := range b.doc.Backups {
		name := fmt.Sprintf("backup#%d", i)
		accs := b.accesses(name, []blueprint.BusAccess{a})
		if len(accs) == 0 {
			continue
		}
		chest, err := storage.NewChest(name, accs, b.storageDeps(), nil)
		if err != nil {
			b.fail(ErrUnreachable, "%s: %v", name, err)
			continue
		}
		b.f.backups = append(b.f.backups, chest)
	}
}

func (b *builder) filters(owner string, in []blueprint.Filter) []item.Filter {
	out := make([]item.Filter, 0, len(in))
	for _, f := range in {
		conv, err := f.ToFilter()
		if err != nil {
			// Structural validation normally catches this first.
			b.errs = append(b.errs, fmt.Errorf("%w: %s: %w", blueprint.ErrConfig, owner, err))
			continue
		}
		out = append(out, conv)
	}
	return out
}

func (b *builder) endpoint(owner string, in []blueprint.BusAccess) *endpoint {
	return &endpoint{accesses: b.accesses(owner, in), remote: b.deps.Remote, details: b.deps.Details}
}

func (b *builder) name(name string) string {
	if b.names[name] {
		b.fail(ErrDuplicateName, "%s", name)
	}
	b.names[name] = true
	return name
}

func (b *builder) buildProcesses() {
	defaultManual := true
	for i, p := range b.doc.Processes {
		switch {
		case p.ManualUI != nil:
			name := p.ManualUI.Name
			if name == "" {
				name = fmt.Sprintf("manual#%d", i)
			}
			b.add(&ManualUI{
				name:         b.name(name),
				ep:           b.endpoint(name, p.ManualUI.Accesses),
				claimDefault: defaultManual,
			})
			defaultManual = false

		case p.Workbench != nil:
			w := p.Workbench
			b.add(&Workbench{
				name:    b.name(w.Name),
				ep:      b.endpoint(w.Name, w.Accesses),
				recipes: b.recipes(w.Name, w.Recipes),
			})

		case p.Slotted != nil:
			s := p.Slotted
			proc := &Slotted{
				name:       b.name(s.Name),
				ep:         b.endpoint(s.Name, s.Accesses),
				inputSlots: make(map[int]bool, len(s.InputSlots)),
				recipes:    b.recipes(s.Name, s.Recipes),
				strict:     s.StrictPriority,
			}
			for _, slot := range s.InputSlots {
				proc.inputSlots[slot] = true
			}
			if s.ExtractFilter != nil {
				if fs := b.filters(s.Name, []blueprint.Filter{*s.ExtractFilter}); len(fs) == 1 {
					proc.extractFilter = &fs[0]
				}
			}
			b.add(proc)

		case p.Turtle != nil:
			t := p.Turtle
			prog, err := b.deps.Programs.Resolve(t.FileName)
			if err != nil {
				b.errs = append(b.errs, fmt.Errorf("%w: %s: %w", ErrInvariant, t.Name, err))
				continue
			}
			b.claim(t.Name, "turtle:"+t.Client)
			b.add(&Turtle{
				name:     b.name(t.Name),
				client:   t.Client,
				fileName: t.FileName,
				prog:     prog,
				logger:   b.deps.Logger,
			})

		case p.RedstoneEmitter != nil:
			b.buildEmitters(p.RedstoneEmitter)

		default:
			b.errs = append(b.errs, fmt.Errorf("%w: process %d", blueprint.ErrUnknownType, i))
		}
	}
}

// buildEmitters creates one process per output rule.
func (b *builder) buildEmitters(e *blueprint.RedstoneEmitter) {
	for _, rule := range e.OutputRules {
		proc := &RedstoneEmitter{
			name:     b.name(rule.Name),
			triggers: b.filters(rule.Name, rule.TriggerItems),
			off:      rule.OffSignal,
			on:       rule.OnSignal,
			level:    -1,
		}
		for _, a := range e.Accesses {
			out := access.RedstoneAccess{Client: a.Client, Addr: a.Addr, Side: a.Side, Bit: rule.Bit}
			b.claim(rule.Name, out.Claim())
			proc.outputs = append(proc.outputs, out)
		}
		b.add(proc)
	}
}

func (b *builder) add(p Process) {
	b.f.processes = append(b.f.processes, p)
}

func (b *builder) recipes(owner string, in []blueprint.Recipe) []recipe.Recipe {
	out := make([]recipe.Recipe, 0, len(in))
	for i, br := range in {
		r := recipe.Recipe{MaxSets: br.MaxSets}
		for j, bi := range br.Inputs {
			f, err := bi.Item.ToFilter()
			if err != nil {
				b.errs = append(b.errs, fmt.Errorf("%w: %s.recipes[%d]: %w", blueprint.ErrConfig, owner, i, err))
				continue
			}
			in := recipe.SlottedInput{Item: f, AllowBackup: bi.AllowBackup, ExtraBackup: bi.ExtraBackup}
			for _, s := range bi.Slots {
				in.Placements = append(in.Placements, recipe.Placement{Slot: s.Slot, Size: s.Size})
			}
			if bi.NonConsumable {
				r.NonConsumables = append(r.NonConsumables, j)
			}
			r.Inputs = append(r.Inputs, in)
		}
		for _, bo := range br.Outputs {
			f, err := bo.Item.ToFilter()
			if err != nil {
				b.errs = append(b.errs, fmt.Errorf("%w: %s.recipes[%d]: %w", blueprint.ErrConfig, owner, i, err))
				continue
			}
			r.Outputs = append(r.Outputs, recipe.Output{Item: f, Wanted: bo.NWanted, PerSet: bo.PerSet})
		}

		if err := r.Validate(); err != nil {
			kind := ErrInvariant
			if errors.Is(err, recipe.ErrInvalidMaxSets) {
				kind = ErrInvalidMaxSets
			}
			b.fail(kind, "%s.recipes[%d]: %v", owner, i, err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// probe lists every storage, backup and the bus once.
func (b *builder) probe(ctx context.Context) {
	timeout := b.deps.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	list := func(client, addr string) error {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := b.deps.Remote.List(pctx, client, addr)
		return err
	}
	reachable := func(owner string, accs []access.BusAccess) {
		var errs []error
		for _, a := range accs {
			err := list(a.Client, a.InvAddr)
			if err == nil {
				return
			}
			errs = append(errs, err)
		}
		b.fail(ErrUnreachable, "%s: %v", owner, errors.Join(errs...))
	}

	for _, s := range b.f.storages {
		reachable(s.Name(), s.Accesses())
	}
	for _, s := range b.f.backups {
		reachable(s.Name(), s.Accesses())
	}
	if len(b.f.bus.clients) > 0 {
		var bus []access.BusAccess
		for _, c := range b.f.bus.clients {
			bus = append(bus, access.BusAccess{Client: c, InvAddr: b.f.bus.addrs[c]})
		}
		reachable("bus", bus)
	}
}
