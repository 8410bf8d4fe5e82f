package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/factoryd/internal/factory"
	"github.com/nerrad567/factoryd/internal/manual"
)

const namespace = "factoryd"

// Metrics holds the factoryd collectors and the registry serving them.
type Metrics struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	cycleDuration   prometheus.Histogram
	processSets     *prometheus.CounterVec
	processFailures *prometheus.CounterVec
	stock           *prometheus.GaugeVec
	storagesOnline  prometheus.Gauge
	storagesTotal   prometheus.Gauge
	busOccupied     prometheus.Gauge
	deliveries      *prometheus.CounterVec
	deliveredItems  *prometheus.CounterVec
	reloads         *prometheus.CounterVec
}

var _ factory.Observer = (*Metrics)(nil)

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Completed factory cycles",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall time of one factory cycle",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		processSets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "sets_total",
			Help:      "Recipe sets executed, by process",
		}, []string{"process", "kind"}),
		processFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "failures_total",
			Help:      "Cycles in which a process failed, by process",
		}, []string{"process", "kind"}),
		stock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "items",
			Help:      "Pooled item count after the last cycle, reserves included",
		}, []string{"item", "label"}),
		storagesOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "online",
			Help:      "Storages and backups that answered during the last cycle",
		}),
		storagesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "configured",
			Help:      "Storages and backups in the running document",
		}),
		busOccupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "occupied_slots",
			Help:      "Bus slots holding items after the last cycle",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manual",
			Name:      "deliveries_total",
			Help:      "Manual requests completed, by station and outcome",
		}, []string{"station", "outcome"}),
		deliveredItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manual",
			Name:      "delivered_items_total",
			Help:      "Items handed out to manual stations",
		}, []string{"station"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reload",
			Name:      "total",
			Help:      "Document reloads, by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.cycleDuration,
		m.processSets,
		m.processFailures,
		m.stock,
		m.storagesOnline,
		m.storagesTotal,
		m.busOccupied,
		m.deliveries,
		m.deliveredItems,
		m.reloads,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(r factory.Report) {
	m.cycles.Inc()
	m.cycleDuration.Observe(r.Duration.Seconds())

	for _, res := range r.Results {
		if res.Sets > 0 {
			m.processSets.WithLabelValues(res.Name, res.Kind).Add(float64(res.Sets))
		}
		if res.Err != nil {
			m.processFailures.WithLabelValues(res.Name, res.Kind).Inc()
		}
	}

	snap := r.Snapshot
	if snap == nil {
		return
	}

	// Items that ran out must disappear rather than report a stale count.
	m.stock.Reset()
	for _, e := range snap.Stock {
		m.stock.WithLabelValues(e.Key.String(), e.Label).Set(float64(e.Total()))
	}

	online, total := 0, 0
	for _, group := range [][]factory.StorageStatus{snap.Storages, snap.Backups} {
		for _, s := range group {
			total++
			if s.Online {
				online++
			}
		}
	}
	m.storagesOnline.Set(float64(online))
	m.storagesTotal.Set(float64(total))
	m.busOccupied.Set(float64(snap.BusOccupied))
}

// ObserveReload records the outcome of a reload.
func (m *Metrics) ObserveReload(err error) {
	result := "applied"
	if err != nil {
		result = "rejected"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// ObserveDelivery records a completed manual request.
func (m *Metrics) ObserveDelivery(d manual.Delivery) {
	outcome := "complete"
	if d.Delivered < d.Requested {
		outcome = "partial"
	}
	m.deliveries.WithLabelValues(d.Station, outcome).Inc()
	m.deliveredItems.WithLabelValues(d.Station).Add(float64(d.Delivered))
}

// WrapRecorder returns a recorder that counts each delivery before
// passing it to next. A nil next only counts.
func (m *Metrics) WrapRecorder(next manual.Recorder) manual.Recorder {
	return &countingRecorder{metrics: m, next: next}
}

type countingRecorder struct {
	metrics *Metrics
	next    manual.Recorder
}

func (r *countingRecorder) Record(ctx context.Context, d manual.Delivery) error {
	r.metrics.ObserveDelivery(d)
	if r.next == nil {
		return nil
	}
	return r.next.Record(ctx, d)
}

func (r *countingRecorder) Recent(ctx context.Context, limit int) ([]manual.Delivery, error) {
	if r.next == nil {
		return nil, nil
	}
	return r.next.Recent(ctx, limit)
}
