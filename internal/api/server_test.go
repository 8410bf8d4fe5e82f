package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/factoryd/internal/access/accesstest"
	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/detailcache"
	"github.com/nerrad567/factoryd/internal/engine"
	"github.com/nerrad567/factoryd/internal/factory"
	"github.com/nerrad567/factoryd/internal/infrastructure/logging"
	"github.com/nerrad567/factoryd/internal/item"
	"github.com/nerrad567/factoryd/internal/logsink"
	"github.com/nerrad567/factoryd/internal/manual"
)

var (
	stone = item.Key{Name: "minecraft:stone"}
	ingot = item.Key{Name: "minecraft:iron_ingot"}
)

const testDoc = `
bus_accesses:
  - {client: c1, addr: bus}
storages:
  - type: Chest
    accesses: [{client: c1, addr: chest}]
processes:
  - type: ManualUI
    name: desk
    accesses: [{client: c1, addr: station}]
`

type fakeReloader struct {
	err   error
	calls int
}

func (r *fakeReloader) Reload(context.Context) error {
	r.calls++
	return r.err
}

type testEnv struct {
	server    *Server
	http      *httptest.Server
	world     *accesstest.World
	holder    *engine.Holder
	scheduler *engine.Scheduler
	queue     *manual.Queue
	sink      *logsink.Sink
	reloader  *fakeReloader
}

// newTestEnv builds a factory over an in-memory world, runs one cycle so a
// snapshot exists, and serves the API from an httptest server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	w := accesstest.NewWorld()
	w.Define(stone, "Stone", 64)
	w.Define(ingot, "Iron Ingot", 64)
	w.AddInventory("bus", 8, 0)
	w.AddInventory("chest", 8, 0)
	w.AddInventory("station", 4, 0)
	w.Put("chest", 0, stone, 40)
	w.Put("chest", 1, ingot, 7)

	doc, err := blueprint.Parse([]byte(testDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	queue := manual.NewQueue(4)
	f, err := factory.Build(context.Background(), doc, factory.Deps{
		Remote:  w,
		Details: detailcache.New(nil, w),
		Manual:  queue,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	holder := engine.NewHolder(f)
	t.Cleanup(func() { _ = holder.Close() })
	sched := engine.NewScheduler(holder)
	if _, _, err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sink := logsink.New(logsink.Config{History: 16})
	go sink.Run(ctx)

	reloader := &fakeReloader{}
	srv, err := New(Deps{
		Logger:    logging.Discard(),
		Holder:    holder,
		Scheduler: sched,
		Reloader:  reloader,
		Manual:    queue,
		Sink:      sink,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		server:    srv,
		http:      ts,
		world:     w,
		holder:    holder,
		scheduler: sched,
		queue:     queue,
		sink:      sink,
		reloader:  reloader,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp, out
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without holder should fail")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestFactorySnapshot(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/factory", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["cycle"] != float64(1) {
		t.Errorf("cycle = %v, want 1", body["cycle"])
	}
	stock, ok := body["stock"].([]any)
	if !ok || len(stock) != 2 {
		t.Fatalf("stock = %v, want 2 entries", body["stock"])
	}
}

func TestItems_Search(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Iron Ingot", "Stone"}},
		{"stone", []string{"Stone"}},
		{"IRON", []string{"Iron Ingot"}},
		{"minecraft:iron", []string{"Iron Ingot"}},
		{"gold", nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("q=%q", tt.query), func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/api/v1/items?q="+tt.query, nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			items, _ := body["items"].([]any)
			got := make(map[string]bool)
			for _, it := range items {
				got[it.(map[string]any)["label"].(string)] = true
			}
			if len(got) != len(tt.want) {
				t.Fatalf("labels = %v, want %v", got, tt.want)
			}
			for _, label := range tt.want {
				if !got[label] {
					t.Errorf("missing %q in %v", label, got)
				}
			}
		})
	}
}

func TestItems_Totals(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/v1/items?q=stone", nil)
	items := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v, want 1", items)
	}
	stoneView := items[0].(map[string]any)
	if stoneView["available"] != float64(40) {
		t.Errorf("available = %v, want 40", stoneView["available"])
	}
	if stoneView["key"] != stone.String() {
		t.Errorf("key = %v, want %s", stoneView["key"], stone.String())
	}
}

func TestManual_SubmitAndDeliver(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/manual", ManualRequest{
		Station: "desk",
		Filter:  blueprint.Filter{Type: blueprint.FilterName, Value: stone.Name},
		Count:   10,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%v)", resp.StatusCode, body)
	}
	if body["id"] == "" || body["count"] != float64(10) {
		t.Errorf("unexpected request body %v", body)
	}

	_, list := env.do(t, http.MethodGet, "/api/v1/manual", nil)
	if list["count"] != float64(1) {
		t.Fatalf("pending count = %v, want 1", list["count"])
	}

	if _, _, err := env.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if got := env.world.Count("station", stone); got != 10 {
		t.Errorf("station stone = %d, want 10", got)
	}
	_, list = env.do(t, http.MethodGet, "/api/v1/manual", nil)
	if list["count"] != float64(0) {
		t.Errorf("pending count after cycle = %v, want 0", list["count"])
	}
}

func TestManual_SubmitErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"bad json", "not an object", http.StatusBadRequest},
		{"unknown filter", ManualRequest{Filter: blueprint.Filter{Type: "Tag"}, Count: 1}, http.StatusBadRequest},
		{"unknown predicate", ManualRequest{Filter: blueprint.Filter{Type: blueprint.FilterCustom, Desc: "has_nbt"}, Count: 1}, http.StatusBadRequest},
		{"zero count", ManualRequest{Filter: blueprint.Filter{Type: blueprint.FilterLabel, Value: "Stone"}}, http.StatusBadRequest},
		{"unknown station", ManualRequest{Station: "nope", Filter: blueprint.Filter{Type: blueprint.FilterLabel, Value: "Stone"}, Count: 1}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodPost, "/api/v1/manual", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestManual_QueueFull(t *testing.T) {
	env := newTestEnv(t)
	body := ManualRequest{Filter: blueprint.Filter{Type: blueprint.FilterLabel, Value: "Stone"}, Count: 1}

	for i := 0; i < 4; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/v1/manual", body)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("submit %d: status = %d, want 202", i, resp.StatusCode)
		}
	}
	resp, _ := env.do(t, http.MethodPost, "/api/v1/manual", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestManual_Cancel(t *testing.T) {
	env := newTestEnv(t)

	req, err := env.queue.Submit("desk", item.Label("Stone"), 3)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	resp, _ := env.do(t, http.MethodDelete, "/api/v1/manual/"+req.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, "/api/v1/manual/"+req.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second cancel status = %d, want 404", resp.StatusCode)
	}
}

func TestManual_DeliveriesDisabled(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/manual/deliveries", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestLogs(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		env.sink.Logf(logsink.SeverityInfo, "test", "line %d", i)
	}
	deadline := time.Now().Add(time.Second)
	for len(env.sink.History()) < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	_, body := env.do(t, http.MethodGet, "/api/v1/logs?limit=2", nil)
	entries, _ := body["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	last := entries[1].(map[string]any)
	if last["message"] != "line 4" {
		t.Errorf("last message = %v, want line 4", last["message"])
	}
	if last["severity"] != "info" {
		t.Errorf("severity = %v, want info", last["severity"])
	}

	resp, _ := env.do(t, http.MethodGet, "/api/v1/logs?limit=zero", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestReload(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"rejected", fmt.Errorf("%w: bad document", engine.ErrReload), http.StatusUnprocessableEntity},
		{"closed", engine.ErrNoFactory, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.reloader.err = tt.err

			resp, _ := env.do(t, http.MethodPost, "/api/v1/reload", nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if env.reloader.calls != 1 {
				t.Errorf("reload calls = %d, want 1", env.reloader.calls)
			}
		})
	}
}

func TestSystem(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/v1/system", nil)
	eng, ok := body["engine"].(map[string]any)
	if !ok {
		t.Fatalf("engine section missing: %v", body)
	}
	if eng["last_cycle"] != float64(1) {
		t.Errorf("last_cycle = %v, want 1", eng["last_cycle"])
	}
	if eng["processes"] != float64(1) {
		t.Errorf("processes = %v, want 1", eng["processes"])
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	env.server.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	tests := []struct {
		origin string
		want   string
	}{
		{"http://panel.local", "http://panel.local"},
		{"http://evil.example", ""},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/health", nil)
		req.Header.Set("Origin", tt.origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("OPTIONS: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: allow = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestOptionalRoutes(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/metrics without handler = %d, want 404", resp.StatusCode)
	}

	srv, err := New(Deps{
		Logger: logging.Discard(),
		Holder: env.holder,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("/metrics = %d, want 418", resp.StatusCode)
	}
}

func TestStartClose(t *testing.T) {
	env := newTestEnv(t)
	env.server.cfg.Host = "127.0.0.1"

	if err := env.server.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := env.server.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.server.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + env.server.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := env.server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := env.server.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func dialUI(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/v1/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(time.Second)
	for env.server.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocket_CycleEvents(t *testing.T) {
	env := newTestEnv(t)
	env.scheduler.AddObserver(env.server.Hub())
	conn := dialUI(t, env, "?channels=cycle")

	if _, _, err := env.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelCycle {
		t.Fatalf("message = %+v, want cycle event", msg)
	}
	payload := msg.Payload.(map[string]any)
	if payload["cycle"] != float64(2) {
		t.Errorf("cycle = %v, want 2", payload["cycle"])
	}
}

func TestWebSocket_SubscribeAndPing(t *testing.T) {
	env := newTestEnv(t)
	conn := dialUI(t, env, "")

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Fatalf("reply = %+v, want pong p1", msg)
	}

	sub := WSMessage{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{ChannelLog}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeResponse || msg.ID != "s1" {
		t.Fatalf("reply = %+v, want subscribe response", msg)
	}

	env.server.Hub().Broadcast(ChannelCycle, "ignored")
	env.server.Hub().Broadcast(ChannelLog, logsink.Entry{Source: "desk", Message: "hello"})

	msg := readMessage(t, conn)
	if msg.EventType != ChannelLog {
		t.Fatalf("event = %+v, want log event", msg)
	}
	if msg.Payload.(map[string]any)["message"] != "hello" {
		t.Errorf("payload = %v", msg.Payload)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "b1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("reply = %+v, want error", msg)
	}
}

func TestHub_RelayLogs(t *testing.T) {
	env := newTestEnv(t)
	conn := dialUI(t, env, "?channels=log")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		env.server.Hub().RelayLogs(ctx, env.sink)
		close(done)
	}()

	// The relay subscribes asynchronously; keep logging until a line lands.
	got := make(chan WSMessage, 1)
	go func() {
		var msg WSMessage
		//nolint:errcheck // Test deadline
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&msg); err == nil {
			got <- msg
		}
		close(got)
	}()

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case msg, ok := <-got:
			if !ok {
				t.Fatal("no log event received")
			}
			if msg.EventType != ChannelLog {
				t.Errorf("event = %+v, want log", msg)
			}
			cancel()
			<-done
			return
		case <-tick.C:
			env.sink.Log(logsink.SeverityWarn, "chest#0", "offline")
		}
	}
}

func TestHub_ObserveCycleReportsErrors(t *testing.T) {
	hub := NewHub(logging.Discard())
	client := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]struct{}{ChannelCycle: {}}}
	hub.Register(client)

	hub.ObserveCycle(factory.Report{
		Cycle:   7,
		Results: []factory.ProcessResult{{Name: "furnace", Kind: "Slotted", Err: errors.New("bus full")}},
	})

	var msg struct {
		Payload CycleEvent `json:"payload"`
	}
	if err := json.Unmarshal(<-client.send, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Payload.Cycle != 7 || msg.Payload.Failures != 1 {
		t.Errorf("payload = %+v", msg.Payload)
	}
	if msg.Payload.Processes[0].Error != "bus full" {
		t.Errorf("process error = %q", msg.Payload.Processes[0].Error)
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}
