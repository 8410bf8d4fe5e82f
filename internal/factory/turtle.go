package factory

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/item"
	"github.com/nerrad567/factoryd/internal/logsink"
	"github.com/nerrad567/factoryd/internal/program"
)

// turtleStopTimeout bounds how long Close waits for a program.
const turtleStopTimeout = 5 * time.Second

// Turtle starts an autonomous program once and leaves it alone.
type Turtle struct {
	name     string
	client   string
	fileName string
	prog     program.Program
	logger   Logger

	mu   sync.Mutex
	inst *program.Instance
}

// Name implements Process.
func (t *Turtle) Name() string { return t.name }

// Kind implements Process.
func (t *Turtle) Kind() string { return blueprint.ProcessTurtle }

// Running reports whether the program has been started and not returned.
func (t *Turtle) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inst != nil && t.inst.Running()
}

func (t *Turtle) advance(_ context.Context, c *cycle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inst != nil {
		return nil
	}

	f := c.f
	var log program.Logger = f.logger
	if f.sink != nil {
		log = f.sink.Source(t.name, f.logger)
	}
	h := program.Handle{
		Name:   t.name,
		Client: t.client,
		Remote: f.remote,
		Stock:  func() []item.DetailStack { return f.Snapshot().Stacks() },
		Log:    log,
	}
	t.inst = program.Start(f.runCtx, t.prog, h)
	c.notify(logsink.SeverityNotice, t.name, "started %s on %s", t.fileName, t.client)
	return nil
}

func (t *Turtle) close() {
	t.mu.Lock()
	inst := t.inst
	t.mu.Unlock()
	if inst != nil && !inst.Stop(turtleStopTimeout) {
		t.logger.Warn("program ignored cancellation, abandoning it", "process", t.name)
	}
}
