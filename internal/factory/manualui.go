package factory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/factoryd/internal/access"
	"github.com/nerrad567/factoryd/internal/blueprint"
	"github.com/nerrad567/factoryd/internal/logsink"
	"github.com/nerrad567/factoryd/internal/manual"
)

// ManualUI hands items to an operator on request. It takes no automatic
// action; requests arrive through the manual queue.
type ManualUI struct {
	name         string
	ep           *endpoint
	claimDefault bool
}

// Name implements Process.
func (m *ManualUI) Name() string { return m.name }

// Kind implements Process.
func (m *ManualUI) Kind() string { return blueprint.ProcessManualUI }

func (m *ManualUI) advance(ctx context.Context, c *cycle) error {
	if c.f.manual == nil {
		return nil
	}
	var (
		errs  []error
		retry []manual.Request
	)
	for _, req := range c.f.manual.Take(m.name, m.claimDefault) {
		delivered, err := m.deliver(ctx, c, req)
		c.addSets(m.name, delivered)
		req.Delivered += delivered
		if err != nil {
			// The request resumes next cycle with what is left.
			errs = append(errs, fmt.Errorf("request %s: %w", req.ID, err))
			retry = append(retry, req)
			continue
		}
		m.record(ctx, c, req)
	}
	c.f.manual.Requeue(retry...)
	return errors.Join(errs...)
}

// deliver moves up to req.Count matching items into the station, one
// stack at a time, never touching backups.
func (m *ManualUI) deliver(ctx context.Context, c *cycle, req manual.Request) (int, error) {
	want := req.Remaining()
	delivered := 0
	for delivered < want {
		cand, ok := c.pool.Best(req.Filter)
		if !ok || cand.Available <= 0 {
			break
		}
		chunk := min(want-delivered, cand.Available, cand.Detail.StackLimit())

		busSlot, err := c.bus.alloc()
		if err != nil {
			return delivered, err
		}
		got, err := c.pool.extract(ctx, cand.Key, chunk, busSlot, false)
		if err != nil {
			return delivered, err
		}
		if got == 0 {
			c.bus.release(busSlot)
			break
		}
		moved, err := m.ep.fromBus(ctx, busSlot, access.AnySlot, got)
		delivered += moved
		if err != nil {
			return delivered, err
		}
		if moved < got {
			// Station full; the rest is swept back next cycle.
			break
		}
		c.bus.release(busSlot)
	}
	return delivered, nil
}

// record logs and persists a finished request.
func (m *ManualUI) record(ctx context.Context, c *cycle, req manual.Request) {
	sev := logsink.SeveritySuccess
	if req.Delivered < req.Count {
		sev = logsink.SeverityWarn
	}
	c.notify(sev, m.name, "delivered %d/%d %s", req.Delivered, req.Count, req.Item)

	if c.f.records == nil {
		return
	}
	err := c.f.records.Record(ctx, manual.Delivery{
		ID:          req.ID,
		Station:     m.name,
		Item:        req.Item,
		Requested:   req.Count,
		Delivered:   req.Delivered,
		DeliveredAt: time.Now(),
	})
	if err != nil {
		c.f.logger.Warn("recording delivery failed", "station", m.name, "request", req.ID, "error", err)
	}
}

func (m *ManualUI) close() {}
