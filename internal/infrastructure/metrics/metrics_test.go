package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/factoryd/internal/factory"
	"github.com/nerrad567/factoryd/internal/item"
	"github.com/nerrad567/factoryd/internal/manual"
)

func report(stock ...factory.StockEntry) factory.Report {
	return factory.Report{
		Cycle:    1,
		Started:  time.Now(),
		Duration: 120 * time.Millisecond,
		Results: []factory.ProcessResult{
			{Name: "bench", Kind: "Workbench", Sets: 3},
			{Name: "furnace", Kind: "Slotted", Err: errors.New("offline")},
			{Name: "idle", Kind: "Slotted"},
		},
		Snapshot: &factory.Snapshot{
			Stock: stock,
			Storages: []factory.StorageStatus{
				{Name: "chest#0", Online: true},
				{Name: "chest#1", Online: false},
			},
			Backups:     []factory.StorageStatus{{Name: "backup#0", Online: true}},
			BusOccupied: 2,
		},
	}
}

func TestObserveCycle(t *testing.T) {
	m := New()
	stone := factory.StockEntry{Key: item.Key{Name: "minecraft:stone"}, Label: "Stone", Available: 40, Reserve: 8}

	m.ObserveCycle(report(stone))
	m.ObserveCycle(report(stone))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.processSets.WithLabelValues("bench", "Workbench")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.processFailures.WithLabelValues("furnace", "Slotted")))
	assert.Equal(t, 48.0, testutil.ToFloat64(m.stock.WithLabelValues("minecraft:stone", "Stone")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.storagesOnline))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.storagesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.busOccupied))
	assert.Equal(t, 1, testutil.CollectAndCount(m.processSets), "processes without sets are not reported")
}

func TestObserveCycle_StockDisappears(t *testing.T) {
	m := New()
	m.ObserveCycle(report(
		factory.StockEntry{Key: item.Key{Name: "minecraft:stone"}, Label: "Stone", Available: 1},
		factory.StockEntry{Key: item.Key{Name: "minecraft:dirt"}, Label: "Dirt", Available: 5},
	))
	require.Equal(t, 2, testutil.CollectAndCount(m.stock))

	m.ObserveCycle(report(factory.StockEntry{Key: item.Key{Name: "minecraft:dirt"}, Label: "Dirt", Available: 4}))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stock))
}

func TestObserveCycle_NoSnapshot(t *testing.T) {
	m := New()
	m.ObserveCycle(factory.Report{Cycle: 1})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 0, testutil.CollectAndCount(m.stock))
}

func TestObserveReload(t *testing.T) {
	m := New()
	m.ObserveReload(nil)
	m.ObserveReload(errors.New("bad document"))
	m.ObserveReload(errors.New("bad document"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("applied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reloads.WithLabelValues("rejected")))
}

type sliceRecorder struct {
	got []manual.Delivery
}

func (r *sliceRecorder) Record(_ context.Context, d manual.Delivery) error {
	r.got = append(r.got, d)
	return nil
}

func (r *sliceRecorder) Recent(context.Context, int) ([]manual.Delivery, error) {
	return r.got, nil
}

func TestWrapRecorder(t *testing.T) {
	m := New()
	next := &sliceRecorder{}
	rec := m.WrapRecorder(next)
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, manual.Delivery{Station: "desk", Requested: 10, Delivered: 10}))
	require.NoError(t, rec.Record(ctx, manual.Delivery{Station: "desk", Requested: 10, Delivered: 4}))

	assert.Len(t, next.got, 2)
	recent, err := rec.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("desk", "complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("desk", "partial")))
	assert.Equal(t, 14.0, testutil.ToFloat64(m.deliveredItems.WithLabelValues("desk")))

	counting := m.WrapRecorder(nil)
	require.NoError(t, counting.Record(ctx, manual.Delivery{Station: "x", Requested: 1, Delivered: 1}))
	recent, err = counting.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveCycle(report())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "factoryd_cycle_total 1"))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
