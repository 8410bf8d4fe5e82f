package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/factoryd/internal/factory"
	"github.com/nerrad567/factoryd/internal/logsink"
)

// Scheduler runs factory cycles.
type Scheduler struct {
	holder *Holder
	logger Logger
	sink   *logsink.Sink

	mu        sync.RWMutex
	observers []factory.Observer
	last      factory.Report

	// sinkFactory is the factory whose log_clients the sink has.
	sinkFactory *factory.Factory
}

// NewScheduler returns a scheduler for the factory in holder.
func NewScheduler(holder *Holder) *Scheduler {
	return &Scheduler{holder: holder, logger: noopLogger{}}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetSink makes the scheduler keep the sink's display clients in step
// with the running document's log_clients.
func (s *Scheduler) SetSink(sink *logsink.Sink) {
	s.sink = sink
}

// AddObserver registers o for every completed cycle.
func (s *Scheduler) AddObserver(o factory.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// LastReport returns the report of the most recent cycle.
func (s *Scheduler) LastReport() factory.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// RunOnce runs a single cycle on the current factory and notifies
// observers. It returns the period the next cycle must wait for.
func (s *Scheduler) RunOnce(ctx context.Context) (factory.Report, time.Duration, error) {
	var (
		report factory.Report
		period time.Duration
	)
	err := s.holder.Do(func(f *factory.Factory) error {
		s.syncSink(f)
		period = f.MinCycleTime()
		var err error
		report, err = f.RunCycle(ctx)
		return err
	})
	if err != nil {
		return report, period, err
	}

	if failures := report.Failures(); failures > 0 {
		s.logger.Debug("cycle finished with failures",
			"cycle", report.Cycle, "duration", report.Duration, "failures", failures)
	} else {
		s.logger.Debug("cycle finished", "cycle", report.Cycle, "duration", report.Duration)
	}

	s.mu.Lock()
	s.last = report
	observers := append([]factory.Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range observers {
		o.ObserveCycle(report)
	}
	return report, period, nil
}

func (s *Scheduler) syncSink(f *factory.Factory) {
	if s.sink == nil {
		return
	}
	if f == s.sinkFactory {
		return
	}
	s.sink.SetClients(f.LogClients())
	s.sinkFactory = f
}

// Run runs cycles until ctx is cancelled. A new cycle starts no sooner
// than min_cycle_time after the previous one started.
//
// Parameters:
//   - ctx: Stops the loop; the cycle in flight is abandoned at its next
//     remote call
//
// Returns:
//   - error: nil on cancellation, ErrNoFactory when the holder is closed
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started")
	defer s.logger.Info("scheduler stopped")

	for {
		started := time.Now()
		_, period, err := s.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrNoFactory):
			return err
		case err != nil:
			s.logger.Error("cycle aborted", "error", err)
		}

		wait := period - time.Since(started)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
