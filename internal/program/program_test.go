package program

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprint(level, " ", msg, " ", args))
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args...) }

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	noop := func(context.Context, Handle) error { return nil }

	if err := reg.Register("quarry", noop); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register("quarry", noop); !errors.Is(err, ErrDuplicateProgram) {
		t.Errorf("Register() duplicate error = %v, want ErrDuplicateProgram", err)
	}
	if err := reg.Register("exec:/bin/true", noop); !errors.Is(err, ErrUnknownProgram) {
		t.Errorf("Register() exec name error = %v, want ErrUnknownProgram", err)
	}

	tests := []struct {
		fileName string
		wantErr  bool
	}{
		{"quarry", false},
		{"exec:/bin/true", false},
		{"exec:", true},
		{"missing", true},
	}
	for _, tt := range tests {
		p, err := reg.Resolve(tt.fileName)
		if (err != nil) != tt.wantErr {
			t.Errorf("Resolve(%q) error = %v, wantErr %v", tt.fileName, err, tt.wantErr)
		}
		if err == nil && p == nil {
			t.Errorf("Resolve(%q) returned nil program", tt.fileName)
		}
	}

	if names := reg.Names(); len(names) != 1 || names[0] != "quarry" {
		t.Errorf("Names() = %v, want [quarry]", names)
	}
}

func TestRegistry_NilResolvesExecOnly(t *testing.T) {
	var reg *Registry
	if _, err := reg.Resolve("exec:/bin/true"); err != nil {
		t.Errorf("Resolve(exec) on nil registry error = %v", err)
	}
	if _, err := reg.Resolve("quarry"); !errors.Is(err, ErrUnknownProgram) {
		t.Errorf("Resolve(quarry) on nil registry error = %v, want ErrUnknownProgram", err)
	}
}

func TestStart_ReceivesHandleAndStops(t *testing.T) {
	got := make(chan Handle, 1)
	prog := func(ctx context.Context, h Handle) error {
		got <- h
		<-ctx.Done()
		return ctx.Err()
	}

	inst := Start(context.Background(), prog, Handle{Name: "miner", Client: "turtle_1"})

	select {
	case h := <-got:
		if h.Name != "miner" || h.Client != "turtle_1" {
			t.Errorf("handle = %+v", h)
		}
	case <-time.After(time.Second):
		t.Fatal("program did not start")
	}

	if !inst.Running() {
		t.Error("Running() = false before Stop")
	}
	if !inst.Stop(time.Second) {
		t.Fatal("Stop() timed out")
	}
	if inst.Running() {
		t.Error("Running() = true after Stop")
	}
	if !errors.Is(inst.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", inst.Err())
	}
	if inst.Uptime() != 0 {
		t.Errorf("Uptime() = %v after stop, want 0", inst.Uptime())
	}
}

func TestStart_RecoversPanic(t *testing.T) {
	inst := Start(context.Background(), func(context.Context, Handle) error {
		panic("boom")
	}, Handle{Name: "bad"})

	select {
	case <-inst.Done():
	case <-time.After(time.Second):
		t.Fatal("panicking program did not finish")
	}
	if !errors.Is(inst.Err(), ErrPanicked) {
		t.Errorf("Err() = %v, want ErrPanicked", inst.Err())
	}
}

func TestSupervisor_CapturesOutput(t *testing.T) {
	log := &recordingLogger{}
	sup := NewSupervisor(Config{Name: "echo", Binary: "/bin/echo", Args: []string{"hello factory"}})
	sup.SetLogger(log)

	if err := sup.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-sup.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("echo did not exit")
	}

	if sup.Status() != StatusExited {
		t.Errorf("Status() = %q, want %q", sup.Status(), StatusExited)
	}
	if !log.contains("hello factory") {
		t.Error("stdout line was not logged")
	}
}

func TestSupervisor_StartAndStop(t *testing.T) {
	stopped := make(chan error, 1)
	sup := NewSupervisor(Config{
		Name:            "sleeper",
		Binary:          "/bin/sleep",
		Args:            []string{"30"},
		GracefulTimeout: 2 * time.Second,
		OnStop:          func(err error) { stopped <- err },
	})

	if err := sup.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sup.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
	if stats := sup.Stats(); stats.PID == 0 || stats.Status != StatusRunning {
		t.Errorf("Stats() = %+v", stats)
	}

	if err := sup.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if sup.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", sup.Status(), StatusStopped)
	}
	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("OnStop error = %v, want nil after requested stop", err)
		}
	case <-time.After(time.Second):
		t.Error("OnStop not called")
	}
}

func TestSupervisor_InvalidBinary(t *testing.T) {
	sup := NewSupervisor(Config{Binary: "/nonexistent/binary"})
	if err := sup.Start(); err == nil {
		t.Fatal("Start() expected error for missing binary")
	}
	if sup.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", sup.Status(), StatusFailed)
	}
	if err := sup.Stop(); err != nil {
		t.Errorf("Stop() on failed supervisor error = %v", err)
	}
}

func TestExec_PassesIdentityAndStopsOnCancel(t *testing.T) {
	log := &recordingLogger{}
	prog := Exec(Config{
		Binary: "/bin/sh",
		Args:   []string{"-c", `echo "client=$FACTORYD_CLIENT"; exec sleep 30`},
	})

	ctx, cancel := context.WithCancel(context.Background())
	inst := Start(ctx, prog, Handle{Name: "miner", Client: "turtle_7", Log: log})

	deadline := time.Now().Add(5 * time.Second)
	for !log.contains("client=turtle_7") {
		if time.Now().After(deadline) {
			t.Fatal("subprocess output not observed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-inst.Done():
	case <-time.After(15 * time.Second):
		t.Fatal("subprocess was not stopped")
	}
	if !errors.Is(inst.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", inst.Err())
	}
}
