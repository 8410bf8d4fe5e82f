package program

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/item"
)

// ExecPrefix marks a file name that runs an executable.
const ExecPrefix = "exec:"

// Logger defines the logging interface for programs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Handle is everything a program receives from the factory.
type Handle struct {
	// Name is the Turtle process name.
	Name string

	// Client is the remote client the program drives.
	Client string

	// Remote reaches the access layer.
	Remote access.Remote

	// Stock returns the factory stock as of the last cycle.
	Stock func() []item.DetailStack

	// Log receives the program's messages.
	Log Logger
}

func (h Handle) logger() Logger {
	if h.Log == nil {
		return noopLogger{}
	}
	return h.Log
}

// Program is the body of a Turtle. It runs until ctx is cancelled or it
// returns on its own.
type Program func(ctx context.Context, h Handle) error

// Registry maps file names to in-process programs.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]Program
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{programs: make(map[string]Program)}
}

// Register adds a program under name.
func (r *Registry) Register(name string, p Program) error {
	if name == "" || strings.HasPrefix(name, ExecPrefix) {
		return fmt.Errorf("%w: invalid name %q", ErrUnknownProgram, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.programs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProgram, name)
	}
	r.programs[name] = p
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.programs))
	for n := range r.programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the program for a document file name. "exec:<path>"
// names resolve to a subprocess running path; a nil registry resolves
// only those.
func (r *Registry) Resolve(fileName string) (Program, error) {
	if path, ok := strings.CutPrefix(fileName, ExecPrefix); ok {
		if path == "" {
			return nil, fmt.Errorf("%w: empty exec path", ErrUnknownProgram)
		}
		return Exec(Config{Binary: path}), nil
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, fileName)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[fileName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, fileName)
	}
	return p, nil
}

// Instance is one started program.
type Instance struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	err     error
	started time.Time
}

// Start runs p in its own goroutine. A panic in p ends the instance with
// ErrPanicked instead of crashing the engine.
func Start(ctx context.Context, p Program, h Handle) *Instance {
	ctx, cancel := context.WithCancel(ctx)
	inst := &Instance{
		name:    h.Name,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}

	go func() {
		defer close(inst.done)
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				inst.setErr(fmt.Errorf("%w: %s: %v", ErrPanicked, h.Name, rec))
			}
		}()

		err := p(ctx, h)
		if err != nil && ctx.Err() == nil {
			h.logger().Warn("program exited with error", "program", h.Name, "error", err)
		} else {
			h.logger().Info("program exited", "program", h.Name)
		}
		inst.setErr(err)
	}()
	return inst
}

func (i *Instance) setErr(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.err = err
}

// Name returns the Turtle process name.
func (i *Instance) Name() string { return i.name }

// Done is closed when the program has returned.
func (i *Instance) Done() <-chan struct{} { return i.done }

// Err returns the program's result once Done is closed.
func (i *Instance) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// Running reports whether the program has not returned yet.
func (i *Instance) Running() bool {
	select {
	case <-i.done:
		return false
	default:
		return true
	}
}

// Uptime returns how long the program has been running, or zero once it
// has returned.
func (i *Instance) Uptime() time.Duration {
	if !i.Running() {
		return 0
	}
	return time.Since(i.started)
}

// Stop cancels the program and waits up to timeout for it to return.
// It reports whether the program returned in time.
func (i *Instance) Stop(timeout time.Duration) bool {
	i.cancel()
	select {
	case <-i.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
