package engine

import (
	"sync"
	"sync/atomic"

	"github.com/nerrad567/factoryd/internal/factory"
)

// Logger defines the logging interface used by the engine.
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

// installed is one factory generation and the cycles still using it.
type installed struct {
	f     *factory.Factory
	users sync.WaitGroup
}

// Holder owns the running factory.
//
// The guard covers reading and replacing the pointer only. A cycle that
// obtained a factory keeps it to completion even if a swap happens
// meanwhile; the replaced factory is closed in the background once its
// last user is done.
type Holder struct {
	mu     sync.Mutex
	cur    *installed
	closed bool
	logger Logger

	// retiring tracks replaced factories not yet closed.
	retiring sync.WaitGroup

	current    atomic.Pointer[factory.Factory]
	generation atomic.Uint64
}

// NewHolder returns a holder running f. f may be nil when the first
// factory is installed later with Swap.
func NewHolder(f *factory.Factory) *Holder {
	h := &Holder{cur: &installed{f: f}, logger: noopLogger{}}
	h.current.Store(f)
	h.generation.Store(1)
	return h
}

// SetLogger sets the logger for the holder.
func (h *Holder) SetLogger(logger Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = logger
}

// Current returns the running factory for read-only use, such as
// snapshots. It may be replaced at any time.
func (h *Holder) Current() *factory.Factory {
	return h.current.Load()
}

// Generation increases with every swap.
func (h *Holder) Generation() uint64 {
	return h.generation.Load()
}

// Do runs fn with the current factory. A swap during fn does not wait for
// it, but the factory fn holds is not closed until fn returns.
func (h *Holder) Do(fn func(f *factory.Factory) error) error {
	h.mu.Lock()
	in := h.cur
	if h.closed || in == nil || in.f == nil {
		h.mu.Unlock()
		return ErrNoFactory
	}
	in.users.Add(1)
	h.mu.Unlock()

	defer in.users.Done()
	return fn(in.f)
}

// Swap installs next and returns without waiting for the cycle in flight.
// The replaced factory is closed once that cycle has finished; a close
// error is logged.
func (h *Holder) Swap(next *factory.Factory) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = next.Close()
		return ErrNoFactory
	}
	old := h.cur
	h.cur = &installed{f: next}
	h.current.Store(next)
	h.generation.Add(1)
	h.retiring.Add(1)
	logger := h.logger
	h.mu.Unlock()

	go func() {
		defer h.retiring.Done()
		if err := retire(old); err != nil {
			logger.Error("closing replaced factory failed", "error", err)
		}
	}()
	return nil
}

// Close closes the running factory after its cycle in flight and waits
// for replaced factories still being retired. Later calls to Do and Swap
// fail.
func (h *Holder) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.retiring.Wait()
		return nil
	}
	h.closed = true
	in := h.cur
	h.mu.Unlock()

	err := retire(in)
	h.retiring.Wait()
	return err
}

// retire waits for the users of a replaced generation and closes it. No new
// user can join: users are only added while the generation is current.
func retire(in *installed) error {
	if in == nil || in.f == nil {
		return nil
	}
	in.users.Wait()
	return in.f.Close()
}
