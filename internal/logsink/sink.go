package logsink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/factoryd/internal/access"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultBuffer       = 256
	DefaultHistory      = 500
	DefaultPrintTimeout = 2 * time.Second
	subscriberBuffer    = 64
)

// Logger defines the logging interface entries are mirrored to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Entry is one operator-facing log line.
type Entry struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Source   string    `json:"source"`
	Message  string    `json:"message"`

	// logged marks entries already written to the structured log.
	logged bool
}

// Config holds sink sizing.
type Config struct {
	// Buffer is the capacity of the write channel.
	Buffer int

	// History is how many entries are kept for late subscribers.
	History int

	// PrintTimeout bounds each print to a log client.
	PrintTimeout time.Duration
}

// Sink is the non-blocking log channel.
type Sink struct {
	cfg    Config
	ch     chan Entry
	logger Logger

	dropped atomic.Uint64

	mu      sync.RWMutex
	history []Entry
	next    int
	full    bool
	subs    map[int]chan Entry
	nextSub int
	printer access.Printer
	clients []string
}

// New creates a sink. Call Run to start delivering entries.
func New(cfg Config) *Sink {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.History <= 0 {
		cfg.History = DefaultHistory
	}
	if cfg.PrintTimeout <= 0 {
		cfg.PrintTimeout = DefaultPrintTimeout
	}
	return &Sink{
		cfg:     cfg,
		ch:      make(chan Entry, cfg.Buffer),
		logger:  noopLogger{},
		history: make([]Entry, cfg.History),
		subs:    make(map[int]chan Entry),
	}
}

// SetLogger mirrors every delivered entry to logger.
func (s *Sink) SetLogger(logger Logger) {
	s.logger = logger
}

// SetPrinter sets where log-client output goes.
func (s *Sink) SetPrinter(p access.Printer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printer = p
}

// SetClients replaces the log clients. Called on every factory swap.
func (s *Sink) SetClients(clients []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = append([]string(nil), clients...)
}

// Log queues an entry without blocking.
func (s *Sink) Log(sev Severity, source, msg string) {
	s.enqueue(Entry{Time: time.Now(), Severity: sev, Source: source, Message: msg})
}

func (s *Sink) enqueue(e Entry) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Logf formats and queues an entry without blocking.
func (s *Sink) Logf(sev Severity, source, format string, args ...any) {
	s.Log(sev, source, fmt.Sprintf(format, args...))
}

// Dropped returns how many entries were discarded because the buffer was
// full.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run delivers entries until ctx is cancelled.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.ch:
			s.deliver(ctx, e)
		}
	}
}

func (s *Sink) deliver(ctx context.Context, e Entry) {
	if !e.logged {
		s.mirror(e)
	}

	s.mu.Lock()
	s.history[s.next] = e
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
	for _, sub := range s.subs {
		select {
		case sub <- e:
		default:
			// Slow subscribers miss entries rather than stall the sink.
		}
	}
	printer := s.printer
	clients := s.clients
	s.mu.Unlock()

	if printer == nil {
		return
	}
	text := e.Message
	if e.Source != "" {
		text = e.Source + ": " + e.Message
	}
	for _, c := range clients {
		pctx, cancel := context.WithTimeout(ctx, s.cfg.PrintTimeout)
		if err := printer.Print(pctx, c, text, int(e.Severity)); err != nil {
			s.logger.Debug("log client print failed", "client", c, "error", err)
		}
		cancel()
	}
}

func (s *Sink) mirror(e Entry) {
	args := []any{"source", e.Source, "severity", e.Severity.String()}
	switch e.Severity {
	case SeverityDebug:
		s.logger.Debug(e.Message, args...)
	case SeverityWarn:
		s.logger.Warn(e.Message, args...)
	case SeverityError, SeverityCritical:
		s.logger.Error(e.Message, args...)
	default:
		s.logger.Info(e.Message, args...)
	}
}

// History returns the retained entries, oldest first.
func (s *Sink) History() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.full {
		return append([]Entry(nil), s.history[:s.next]...)
	}
	out := make([]Entry, 0, len(s.history))
	out = append(out, s.history[s.next:]...)
	return append(out, s.history[:s.next]...)
}

// Subscribe returns a channel receiving new entries and a function that
// ends the subscription.
func (s *Sink) Subscribe() (<-chan Entry, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Entry, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// Source returns a Logger that writes to both the sink, tagged with
// source, and the structured logger next. Debug lines only reach next.
func (s *Sink) Source(source string, next Logger) Logger {
	if next == nil {
		next = noopLogger{}
	}
	return &sourceLogger{sink: s, source: source, next: next}
}

type sourceLogger struct {
	sink   *Sink
	source string
	next   Logger
}

func (l *sourceLogger) Debug(msg string, args ...any) {
	l.next.Debug(msg, append(args, "source", l.source)...)
}

func (l *sourceLogger) Info(msg string, args ...any) {
	l.next.Info(msg, append(args, "source", l.source)...)
	l.emit(SeverityInfo, msg, args)
}

func (l *sourceLogger) Warn(msg string, args ...any) {
	l.next.Warn(msg, append(args, "source", l.source)...)
	l.emit(SeverityWarn, msg, args)
}

func (l *sourceLogger) Error(msg string, args ...any) {
	l.next.Error(msg, append(args, "source", l.source)...)
	l.emit(SeverityError, msg, args)
}

func (l *sourceLogger) emit(sev Severity, msg string, args []any) {
	l.sink.enqueue(Entry{Time: time.Now(), Severity: sev, Source: l.source, Message: render(msg, args), logged: true})
}

// render flattens slog-style key/value pairs into one display line.
func render(msg string, args []any) string {
	for i := 0; i+1 < len(args); i += 2 {
		msg += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	return msg
}
