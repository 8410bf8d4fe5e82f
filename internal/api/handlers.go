package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/engine"
	"github.com/nerrad567/factoryd/internal/factory"
	"github.com/nerrad567/factoryd/internal/manual"
)

const (
	defaultLogLimit      = 100
	defaultDeliveryLimit = 50
	maxListLimit         = 1000
)

// ManualRequest is the body of POST /api/v1/manual.
type ManualRequest struct {
	// Station names a ManualUI process; empty lets the first one claim it.
	Station string           `json:"station,omitempty"`
	Filter  blueprint.Filter `json:"filter"`
	Count   int              `json:"count"`
}

// ItemView is one entry of GET /api/v1/items.
type ItemView struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Label     string `json:"label"`
	MaxSize   int    `json:"max_size"`
	Available int    `json:"available"`
	Reserve   int    `json:"reserve"`
	Total     int    `json:"total"`
}

// handleHealth reports whether a factory is loaded and whether its bus was
// reachable on the last cycle.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	f := s.holder.Current()
	if f == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unavailable",
			"version": s.version,
		})
		return
	}

	status := "ok"
	snap := f.Snapshot()
	if snap != nil && !snap.BusOnline {
		status = "degraded"
	}
	resp := map[string]any{
		"status":     status,
		"version":    s.version,
		"generation": s.holder.Generation(),
	}
	if snap != nil {
		resp["cycle"] = snap.Cycle
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFactory returns the snapshot published by the last cycle.
func (s *Server) handleFactory(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleItems searches the stock. q matches label or name, ignoring case;
// an empty q lists everything.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	entries := snap.Find(func(e factory.StockEntry) bool {
		return q == "" ||
			strings.Contains(strings.ToLower(e.Label), q) ||
			strings.Contains(strings.ToLower(e.Key.Name), q)
	})

	items := make([]ItemView, 0, len(entries))
	for _, e := range entries {
		items = append(items, itemView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cycle": snap.Cycle,
		"items": items,
		"count": len(items),
	})
}

func itemView(e factory.StockEntry) ItemView {
	return ItemView{
		Key:       e.Key.String(),
		Name:      e.Key.Name,
		Label:     e.Label,
		MaxSize:   e.MaxSize,
		Available: e.Available,
		Reserve:   e.Reserve,
		Total:     e.Total(),
	}
}

func (s *Server) snapshot(w http.ResponseWriter) (*factory.Snapshot, bool) {
	f := s.holder.Current()
	if f == nil {
		writeUnavailable(w, "no factory loaded")
		return nil, false
	}
	snap := f.Snapshot()
	if snap == nil {
		writeUnavailable(w, "no cycle has completed yet")
		return nil, false
	}
	return snap, true
}

func (s *Server) handleListManual(w http.ResponseWriter, _ *http.Request) {
	if s.queue == nil {
		writeUnavailable(w, "manual requests are disabled")
		return
	}
	pending := s.queue.Pending()
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": pending,
		"count":    len(pending),
	})
}

func (s *Server) handleSubmitManual(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeUnavailable(w, "manual requests are disabled")
		return
	}

	var body ManualRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	filter, err := body.Filter.ToFilter()
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if body.Station != "" && !s.isManualStation(body.Station) {
		writeNotFound(w, "no ManualUI station named "+body.Station)
		return
	}

	req, err := s.queue.Submit(body.Station, filter, body.Count)
	switch {
	case errors.Is(err, manual.ErrInvalidRequest):
		writeBadRequest(w, err.Error())
		return
	case errors.Is(err, manual.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, ErrCodeUnavailable, err.Error())
		return
	case err != nil:
		writeInternalError(w, "failed to queue request")
		return
	}

	s.logger.Info("manual request queued",
		"id", req.ID, "station", req.Station, "item", req.Item, "count", req.Count)
	writeJSON(w, http.StatusAccepted, req)
}

// isManualStation reports whether the running factory has a ManualUI
// process with the given name.
func (s *Server) isManualStation(name string) bool {
	f := s.holder.Current()
	if f == nil {
		return false
	}
	for _, p := range f.Processes() {
		if p.Name() == name && p.Kind() == blueprint.ProcessManualUI {
			return true
		}
	}
	return false
}

func (s *Server) handleCancelManual(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeUnavailable(w, "manual requests are disabled")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.queue.Cancel(id); err != nil {
		if errors.Is(err, manual.ErrNotFound) {
			writeNotFound(w, "request not found or already claimed")
			return
		}
		writeInternalError(w, "failed to cancel request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		writeUnavailable(w, "delivery history is disabled")
		return
	}
	limit, ok := parseLimit(w, r, defaultDeliveryLimit)
	if !ok {
		return
	}
	list, err := s.deliveries.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing deliveries failed", "error", err)
		writeInternalError(w, "failed to list deliveries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deliveries": list,
		"count":      len(list),
	})
}

// handleLogs returns the most recent operator log lines, oldest first.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeUnavailable(w, "log history is disabled")
		return
	}
	limit, ok := parseLimit(w, r, defaultLogLimit)
	if !ok {
		return
	}
	entries := s.sink.History()
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
		"dropped": s.sink.Dropped(),
	})
}

// handleReload reloads the factory document. A rejected document leaves
// the running factory in place and answers 422.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeUnavailable(w, "reload is disabled")
		return
	}
	if err := s.reloader.Reload(r.Context()); err != nil {
		if errors.Is(err, engine.ErrReload) {
			writeError(w, http.StatusUnprocessableEntity, ErrCodeUnprocessable, err.Error())
			return
		}
		writeUnavailable(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"generation": s.holder.Generation(),
	})
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeBadRequest(w, "limit must be a positive integer")
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}

// splitList splits a comma-separated query value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
