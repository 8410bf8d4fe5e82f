package factory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/detailcache"
	"github.com/nerrad567/factoryd/internal/logsink"
	"github.com/nerrad567/factoryd/internal/manual"
	"github.com/nerrad567/factoryd/internal/program"
	"github.com/nerrad567/factoryd/internal/storage"
)

// Logger defines the logging interface used by the factory.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds what a factory needs beyond its document. Remote and Details
// are required; the rest may be nil.
type Deps struct {
	Remote  access.Remote
	Details *detailcache.Cache

	// Programs resolves Turtle file names. Nil resolves exec: names only.
	Programs *program.Registry

	// Manual feeds ManualUI stations; Deliveries records what they hand out.
	Manual     *manual.Queue
	Deliveries manual.Recorder

	// Sink receives operator-facing messages.
	Sink *logsink.Sink

	Logger Logger

	// Probe lists every storage, backup and the bus during Build and
	// rejects the document if one does not answer within ProbeTimeout.
	Probe        bool
	ProbeTimeout time.Duration
}

// Observer is told about every completed cycle.
type Observer interface {
	ObserveCycle(r Report)
}

// ProcessResult is the outcome of one process in one cycle.
type ProcessResult struct {
	Name string
	Kind string
	Sets int
	Err  error
}

// Report summarises one cycle.
type Report struct {
	Cycle    uint64
	Started  time.Time
	Duration time.Duration
	Results  []ProcessResult
	Snapshot *Snapshot
}

// Failures counts processes that failed this cycle.
func (r Report) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Factory is the runtime graph built from one document.
type Factory struct {
	serverPort   int
	minCycleTime time.Duration
	logClients   []string

	storages     []storage.Storage
	backups      []storage.Storage
	fluidBus     []access.FluidAccess
	fluidBackups []access.FluidAccess
	fluidCap     int
	processes    []Process
	bus          *bus

	remote  access.Remote
	details *detailcache.Cache
	manual  *manual.Queue
	records manual.Recorder
	sink    *logsink.Sink
	logger  Logger

	// runCtx outlives individual cycles; Turtle programs run under it.
	runCtx    context.Context
	runCancel context.CancelFunc

	cycles    uint64
	lastErrs  map[string]string
	snapshot  atomic.Pointer[Snapshot]
	closed    atomic.Bool
	closeOnce sync.Once
}

// ServerPort returns the document's HTTP port.
func (f *Factory) ServerPort() int { return f.serverPort }

// MinCycleTime returns the minimum period between cycle starts.
func (f *Factory) MinCycleTime() time.Duration { return f.minCycleTime }

// LogClients returns the clients that display the operator log.
func (f *Factory) LogClients() []string { return append([]string(nil), f.logClients...) }

// Processes returns the processes in declaration order.
func (f *Factory) Processes() []Process { return append([]Process(nil), f.processes...) }

// Storages returns the storages in declaration order.
func (f *Factory) Storages() []storage.Storage { return append([]storage.Storage(nil), f.storages...) }

// Snapshot returns the view published by the last cycle.
func (f *Factory) Snapshot() *Snapshot { return f.snapshot.Load() }

// RunCycle performs one cycle. It fails only when the factory is closed
// or ctx ends; process failures are reported in the Report.
func (f *Factory) RunCycle(ctx context.Context) (Report, error) {
	if f.closed.Load() {
		return Report{}, ErrClosed
	}
	f.cycles++
	report := Report{Cycle: f.cycles, Started: time.Now()}

	// Storage pictures come first: sweeping needs current free capacity.
	for _, s := range append(append([]storage.Storage(nil), f.storages...), f.backups...) {
		if err := s.Refresh(ctx); err != nil {
			f.logger.Warn("storage offline this cycle", "storage", s.Name(), "error", err)
			f.notifyf(logsink.SeverityWarn, s.Name(), "offline: %v", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	pool := newPool(f.storages, f.backups)
	c := &cycle{
		f:      f,
		pool:   pool,
		bus:    f.bus,
		router: &router{storages: f.storages, pool: pool},
		sets:   make(map[string]int),
	}

	if err := f.bus.sweep(ctx, c.router); err != nil {
		f.logger.Warn("bus sweep incomplete", "error", err)
	}

	fluids := f.listFluids(ctx)

	for _, p := range f.processes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := f.advance(ctx, p, c)
		res := ProcessResult{Name: p.Name(), Kind: p.Kind(), Sets: c.sets[p.Name()], Err: err}
		if err != nil {
			f.lastErrs[p.Name()] = err.Error()
			f.logger.Warn("process made no progress", "process", p.Name(), "kind", p.Kind(), "error", err)
			f.notifyf(logsink.SeverityError, p.Name(), "%v", err)
		} else {
			delete(f.lastErrs, p.Name())
		}
		report.Results = append(report.Results, res)
	}

	report.Duration = time.Since(report.Started)
	report.Snapshot = f.publish(report, pool, fluids)
	return report, nil
}

// advance runs one process, turning a panic into an error.
func (f *Factory) advance(ctx context.Context, p Process, c *cycle) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanicked, p.Name(), rec)
		}
	}()
	return p.advance(ctx, c)
}

func (f *Factory) listFluids(ctx context.Context) []FluidStatus {
	out := make([]FluidStatus, 0, len(f.fluidBackups))
	for _, fb := range f.fluidBackups {
		st := FluidStatus{Client: fb.Client, TankAddr: fb.TankAddr}
		fluids, err := f.remote.ListFluids(ctx, fb.Client, fb.TankAddr)
		if err != nil {
			st.Error = err.Error()
			f.logger.Debug("fluid backup unavailable", "tank", fb.TankAddr, "error", err)
		} else {
			st.Fluids = fluids
		}
		out = append(out, st)
	}
	return out
}

func (f *Factory) notifyf(sev logsink.Severity, source, format string, args ...any) {
	if f.sink != nil {
		f.sink.Logf(sev, source, format, args...)
	}
}

// Close stops every Turtle program. It is safe to call more than once.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		f.runCancel()
		for _, p := range f.processes {
			p.close()
		}
	})
	return nil
}
