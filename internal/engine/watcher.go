package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/factory"
)

// DefaultDebounce is the quiet period after the last file event before a
// reload starts. Editors often write a file in several steps.
const DefaultDebounce = 250 * time.Millisecond

// BuildFunc turns a loaded document into a factory.
type BuildFunc func(ctx context.Context, doc *blueprint.Document) (*factory.Factory, error)

// Watcher reloads the factory when its document changes on disk.
type Watcher struct {
	path     string
	holder   *Holder
	build    BuildFunc
	debounce time.Duration
	logger   Logger

	// reloadMu serialises file-triggered and requested reloads.
	reloadMu sync.Mutex

	hookMu   sync.RWMutex
	onReload []func(error)
}

// NewWatcher returns a watcher for the document at path.
func NewWatcher(path string, holder *Holder, build BuildFunc) *Watcher {
	return &Watcher{
		path:     path,
		holder:   holder,
		build:    build,
		debounce: DefaultDebounce,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the watcher.
func (w *Watcher) SetLogger(logger Logger) {
	w.logger = logger
}

// SetDebounce overrides DefaultDebounce.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// OnReload registers fn to be told the outcome of every reload.
func (w *Watcher) OnReload(fn func(err error)) {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Path returns the watched document path.
func (w *Watcher) Path() string { return w.path }

// Reload loads, builds and installs the document now. On any failure the
// running factory is kept and the error wraps ErrReload.
func (w *Watcher) Reload(ctx context.Context) error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	err := w.reload(ctx)
	if err != nil {
		w.logger.Error("reload rejected, keeping current factory", "path", w.path, "error", err)
	}

	w.hookMu.RLock()
	hooks := slices.Clone(w.onReload)
	w.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(err)
	}
	return err
}

func (w *Watcher) reload(ctx context.Context) error {
	doc, err := blueprint.Load(w.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReload, err)
	}
	next, err := w.build(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReload, err)
	}

	if cur := w.holder.Current(); cur != nil && cur.ServerPort() != next.ServerPort() {
		w.logger.Warn("server_port changed; the listener keeps its port until restart",
			"bound", cur.ServerPort(), "requested", next.ServerPort())
	}

	if err := w.holder.Swap(next); err != nil {
		return fmt.Errorf("%w: %w", ErrReload, err)
	}
	w.logger.Info("factory reloaded",
		"path", w.path,
		"generation", w.holder.Generation(),
		"processes", len(next.Processes()),
		"storages", len(next.Storages()),
	)
	return nil
}

// Run watches the document's directory until ctx is cancelled. The
// directory is watched rather than the file so that editors replacing the
// file by rename are followed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	name := filepath.Base(w.path)
	w.logger.Info("watching factory document", "path", w.path)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			w.logger.Debug("factory document changed", "op", ev.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-timer.C:
			_ = w.Reload(ctx)
		}
	}
}
