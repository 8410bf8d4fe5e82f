package logsink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/factoryd/internal/access/accesstest"
)

func runSink(t *testing.T, s *Sink) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestSink_HistoryKeepsNewest(t *testing.T) {
	s := New(Config{History: 3})
	runSink(t, s)

	for i := range 5 {
		s.Logf(SeverityInfo, "test", "line %d", i)
	}
	waitFor(t, func() bool {
		h := s.History()
		return len(h) == 3 && h[2].Message == "line 4"
	})

	h := s.History()
	assert.Equal(t, "line 2", h[0].Message)
	assert.Equal(t, "line 3", h[1].Message)
}

func TestSink_NeverBlocks(t *testing.T) {
	s := New(Config{Buffer: 2})

	// No Run loop: the third write must be dropped, not block.
	done := make(chan struct{})
	go func() {
		for range 5 {
			s.Log(SeverityWarn, "test", "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Log blocked on a full buffer")
	}
	assert.Equal(t, uint64(3), s.Dropped())
}

func TestSink_Subscribe(t *testing.T) {
	s := New(Config{})
	runSink(t, s)

	ch, cancel := s.Subscribe()
	s.Log(SeveritySuccess, "bench", "crafted 4x Stick")

	select {
	case e := <-ch:
		assert.Equal(t, SeveritySuccess, e.Severity)
		assert.Equal(t, "bench", e.Source)
		assert.Equal(t, "crafted 4x Stick", e.Message)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive entry")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open, "channel should be closed after cancel")
}

func TestSink_PrintsToLogClients(t *testing.T) {
	world := accesstest.NewWorld()
	s := New(Config{})
	s.SetPrinter(world)
	s.SetClients([]string{"monitor", "wall"})
	runSink(t, s)

	s.Log(SeverityError, "furnace", "access failed")
	waitFor(t, func() bool { return len(world.Printed()) == 2 })

	assert.ElementsMatch(t, []string{
		"monitor: furnace: access failed",
		"wall: furnace: access failed",
	}, world.Printed())
}

func TestSink_PrintFailureIsIgnored(t *testing.T) {
	world := accesstest.NewWorld()
	world.FailClient("monitor", true)
	s := New(Config{})
	s.SetPrinter(world)
	s.SetClients([]string{"monitor"})
	runSink(t, s)

	s.Log(SeverityInfo, "", "first")
	s.Log(SeverityInfo, "", "second")
	waitFor(t, func() bool { return len(s.History()) == 2 })
	assert.Empty(t, world.Printed())
}

type countingLogger struct {
	infos, warns int
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Info(string, ...any)  { l.infos++ }
func (l *countingLogger) Warn(string, ...any)  { l.warns++ }
func (l *countingLogger) Error(string, ...any) {}

func TestSink_SourceLogger(t *testing.T) {
	mirror := &countingLogger{}
	s := New(Config{})
	s.SetLogger(mirror)

	next := &countingLogger{}
	log := s.Source("furnace", next)
	log.Debug("ignored by sink")
	log.Warn("slot stuck", "slot", 2)

	assert.Equal(t, 1, next.warns)

	// Drain synchronously: only the Warn reached the sink.
	require.Len(t, s.ch, 1)
	s.deliver(context.Background(), <-s.ch)

	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, "slot stuck slot=2", h[0].Message)
	assert.Equal(t, SeverityWarn, h[0].Severity)
	assert.Zero(t, mirror.warns, "entries from Source are not logged twice")
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "critical", SeverityCritical.String())
	assert.Equal(t, "notice", SeverityNotice.String())
	assert.Equal(t, "unknown", Severity(99).String())

	text, err := SeverityDebug.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "debug", string(text))
}
