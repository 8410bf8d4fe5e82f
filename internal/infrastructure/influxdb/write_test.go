package influxdb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/factoryd/internal/factory"
	"github.com/nerrad567/factoryd/internal/item"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	w.points = append(w.points, p)
	w.mu.Unlock()
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
}

func (w *fakeWriter) named(name string) []*write.Point {
	var out []*write.Point
	for _, p := range w.points {
		if p.Name() == name {
			out = append(out, p)
		}
	}
	return out
}

func tag(p *write.Point, key string) string {
	for _, t := range p.TagList() {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}

func field(p *write.Point, key string) any {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func TestObserveCycle_Points(t *testing.T) {
	w := &fakeWriter{}
	c := newWithWriter(w)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.ObserveCycle(factory.Report{
		Cycle:    7,
		Started:  started,
		Duration: 250 * time.Millisecond,
		Results: []factory.ProcessResult{
			{Name: "bench", Kind: "Workbench", Sets: 2},
			{Name: "furnace", Kind: "Slotted", Sets: 1, Err: errors.New("offline")},
		},
		Snapshot: &factory.Snapshot{
			BusOccupied: 3,
			Stock: []factory.StockEntry{
				{Key: item.Key{Name: "minecraft:stone"}, Label: "Stone", Available: 10, Reserve: 4},
			},
		},
	})

	procs := w.named(MeasurementProcess)
	if len(procs) != 2 {
		t.Fatalf("process points = %d, want 2", len(procs))
	}
	if got := tag(procs[1], "process"); got != "furnace" {
		t.Errorf("process tag = %q, want furnace", got)
	}
	if got := field(procs[1], "failed"); got != true {
		t.Errorf("failed = %v, want true", got)
	}

	cycles := w.named(MeasurementCycle)
	if len(cycles) != 1 {
		t.Fatalf("cycle points = %d, want 1", len(cycles))
	}
	cp := cycles[0]
	if !cp.Time().Equal(started) {
		t.Errorf("cycle time = %v, want %v", cp.Time(), started)
	}
	if got := field(cp, "sets"); got != int64(3) {
		t.Errorf("sets = %v, want 3", got)
	}
	if got := field(cp, "failures"); got != int64(1) {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := field(cp, "duration_ms"); got != 250.0 {
		t.Errorf("duration_ms = %v, want 250", got)
	}
	if got := field(cp, "bus_occupied"); got != int64(3) {
		t.Errorf("bus_occupied = %v, want 3", got)
	}

	stock := w.named(MeasurementStock)
	if len(stock) != 1 {
		t.Fatalf("stock points = %d, want 1", len(stock))
	}
	if got := tag(stock[0], "item"); got != "minecraft:stone" {
		t.Errorf("item tag = %q", got)
	}
	if got := field(stock[0], "total"); got != int64(14) {
		t.Errorf("total = %v, want 14", got)
	}
}

func TestObserveCycle_WithoutSnapshot(t *testing.T) {
	w := &fakeWriter{}
	newWithWriter(w).ObserveCycle(factory.Report{Cycle: 1})

	if len(w.points) != 1 || w.points[0].Name() != MeasurementCycle {
		t.Fatalf("points = %d, want a single cycle point", len(w.points))
	}
	if w.points[0].Time().IsZero() {
		t.Error("cycle point without a timestamp")
	}
}

func TestWritesAfterCloseAreDropped(t *testing.T) {
	w := &fakeWriter{}
	c := newWithWriter(w)

	c.WritePoint("custom", map[string]string{"k": "v"}, map[string]any{"x": 1.0})
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	c.WritePoint("custom", nil, map[string]any{"x": 2.0})
	c.ObserveCycle(factory.Report{Cycle: 2})
	c.Flush()

	if len(w.points) != 1 {
		t.Errorf("points = %d, want 1", len(w.points))
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1 (from Close)", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
