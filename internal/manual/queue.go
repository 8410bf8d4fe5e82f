package manual

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/factoryd/internal/item"
)

// DefaultQueueSize is used when NewQueue is given a non-positive size.
const DefaultQueueSize = 64

// Request asks a ManualUI station for Count items matching Filter.
type Request struct {
	ID        string      `json:"id"`
	Station   string      `json:"station,omitempty"`
	Filter    item.Filter `json:"-"`
	Item      string      `json:"item"`
	Count     int         `json:"count"`
	// Delivered is the progress of a request resumed after a failed cycle.
	Delivered int         `json:"delivered,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Queue is the bounded hand-off between the API and ManualUI stations.
type Queue struct {
	ch   chan Request
	size int

	mu      sync.Mutex
	pending []Request
}

// NewQueue creates a queue. Submit fails once size requests wait in
// either the channel or the unclaimed backlog.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Request, size), size: size}
}

// Submit queues a request without blocking. An empty station means any
// station; the first ManualUI of the factory claims it.
func (q *Queue) Submit(station string, f item.Filter, count int) (Request, error) {
	if count < 1 || f.Kind() == 0 {
		return Request{}, fmt.Errorf("%w: need an item and a positive count", ErrInvalidRequest)
	}
	req := Request{
		ID:        uuid.NewString(),
		Station:   station,
		Filter:    f,
		Item:      f.String(),
		Count:     count,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending)+len(q.ch) >= q.size {
		return Request{}, ErrQueueFull
	}

	select {
	case q.ch <- req:
		return req, nil
	default:
		return Request{}, ErrQueueFull
	}
}

// drain moves submitted requests into pending. Caller holds q.mu.
func (q *Queue) drain() {
	for {
		select {
		case req := <-q.ch:
			q.pending = append(q.pending, req)
		default:
			return
		}
	}
}

// Take removes and returns the requests addressed to station, plus the
// unaddressed ones when claimDefault is set, in submission order.
func (q *Queue) Take(station string, claimDefault bool) []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drain()

	var taken []Request
	kept := q.pending[:0]
	for _, req := range q.pending {
		if req.Station == station || (claimDefault && req.Station == "") {
			taken = append(taken, req)
			continue
		}
		kept = append(kept, req)
	}
	q.pending = kept
	return taken
}

// Requeue puts requests a station could not finish back at the front of
// the backlog, ahead of newer submissions. They were already counted
// against the queue size, so Requeue never fails.
func (q *Queue) Requeue(reqs ...Request) {
	if len(reqs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drain()
	q.pending = append(append([]Request(nil), reqs...), q.pending...)
}

// Remaining is the part of the request still to be delivered.
func (r Request) Remaining() int { return r.Count - r.Delivered }

// Pending returns the unclaimed requests.
func (q *Queue) Pending() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drain()
	return append([]Request(nil), q.pending...)
}

// Cancel drops an unclaimed request.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drain()
	for i, req := range q.pending {
		if req.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
