// Package api implements factoryd's HTTP surface.
//
// This package provides:
//   - Status endpoints: health, the current factory snapshot, stock search
//   - Manual requests: submit, list and cancel deliveries to ManualUI stations
//   - Operator logs and a reload trigger for the factory document
//   - A websocket hub streaming "log" and "cycle" events to UIs
//   - The remote client endpoint (/ws/client) and Prometheus /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Reads go through the engine holder and never block on a running cycle.
// POST /api/v1/reload returns as soon as the new factory is installed.
package api
