package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/factoryd/internal/factory"
)

// Measurement names.
const (
	MeasurementCycle   = "cycle"
	MeasurementProcess = "process"
	MeasurementStock   = "stock"
)

var _ factory.Observer = (*Client)(nil)

// ObserveCycle writes the telemetry of one finished cycle.
func (c *Client) ObserveCycle(r factory.Report) {
	if !c.IsConnected() {
		return
	}
	ts := r.Started
	if ts.IsZero() {
		ts = time.Now()
	}

	sets := 0
	for _, res := range r.Results {
		sets += res.Sets
		fields := map[string]any{
			"sets":   res.Sets,
			"failed": res.Err != nil,
		}
		c.writeAPI.WritePoint(write.NewPoint(MeasurementProcess,
			map[string]string{"process": res.Name, "kind": res.Kind},
			fields, ts))
	}

	cycleFields := map[string]any{
		"cycle":       int64(r.Cycle), // #nosec G115 -- cycle numbers stay far below 2^63
		"duration_ms": float64(r.Duration) / float64(time.Millisecond),
		"failures":    r.Failures(),
		"sets":        sets,
	}
	if snap := r.Snapshot; snap != nil {
		cycleFields["bus_occupied"] = snap.BusOccupied
		cycleFields["item_types"] = len(snap.Stock)
	}
	c.writeAPI.WritePoint(write.NewPoint(MeasurementCycle, nil, cycleFields, ts))

	if r.Snapshot == nil {
		return
	}
	for _, e := range r.Snapshot.Stock {
		c.writeAPI.WritePoint(write.NewPoint(MeasurementStock,
			map[string]string{"item": e.Key.String(), "label": e.Label},
			map[string]any{
				"available": e.Available,
				"reserve":   e.Reserve,
				"total":     e.Total(),
			}, ts))
	}
}

// WritePoint writes a custom point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
