package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemStatus is the response of GET /api/v1/system.
type SystemStatus struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeStatus  `json:"runtime"`
	Engine        EngineStatus   `json:"engine"`
	WebSocket     WSStatus       `json:"websocket"`
	Clients       []string       `json:"clients"`
	Queue         ManualQueueLen `json:"manual_queue"`
}

// RuntimeStatus contains Go runtime statistics.
type RuntimeStatus struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// EngineStatus summarises the running factory.
type EngineStatus struct {
	Generation     uint64 `json:"generation"`
	LastCycle      uint64 `json:"last_cycle"`
	LastDurationMS int64  `json:"last_duration_ms"`
	LastFailures   int    `json:"last_failures"`
	Processes      int    `json:"processes"`
	Storages       int    `json:"storages"`
}

// WSStatus contains UI websocket hub statistics.
type WSStatus struct {
	ConnectedClients int `json:"connected_clients"`
}

// ManualQueueLen reports unclaimed manual requests.
type ManualQueueLen struct {
	Pending int `json:"pending"`
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeStatus{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Engine: EngineStatus{
			Generation: s.holder.Generation(),
		},
		WebSocket: WSStatus{
			ConnectedClients: s.hub.ClientCount(),
		},
		Clients: []string{},
	}

	if f := s.holder.Current(); f != nil {
		status.Engine.Processes = len(f.Processes())
		status.Engine.Storages = len(f.Storages())
	}
	if s.scheduler != nil {
		last := s.scheduler.LastReport()
		status.Engine.LastCycle = last.Cycle
		status.Engine.LastDurationMS = last.Duration.Milliseconds()
		status.Engine.LastFailures = last.Failures()
	}
	if s.clients != nil {
		status.Clients = append(status.Clients, s.clients.Connected()...)
	}
	if s.queue != nil {
		status.Queue.Pending = len(s.queue.Pending())
	}

	writeJSON(w, http.StatusOK, status)
}
