package bridge

import "sync"

type waiter struct {
	client string
	ch     chan Response
}

// pending correlates in-flight request ids with their waiting callers.
type pending struct {
	mu      sync.Mutex
	waiters map[string]waiter
}

func newPending() *pending {
	return &pending{waiters: make(map[string]waiter)}
}

// add registers a request and returns the channel its response arrives on.
func (p *pending) add(req Request) <-chan Response {
	ch := make(chan Response, 1)
	p.mu.Lock()
	p.waiters[req.ID] = waiter{client: req.Client, ch: ch}
	p.mu.Unlock()
	return ch
}

// remove forgets id; a late response for it is dropped.
func (p *pending) remove(id string) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// resolve hands resp to its waiter. Only the client the request was sent
// to may answer it.
func (p *pending) resolve(client string, resp Response) bool {
	p.mu.Lock()
	w, ok := p.waiters[resp.ID]
	if ok && w.client != client {
		ok = false
	}
	if ok {
		delete(p.waiters, resp.ID)
	}
	p.mu.Unlock()
	if ok {
		w.ch <- resp
	}
	return ok
}

func (p *pending) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
