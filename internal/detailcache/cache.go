package detailcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/factoryd/internal/item"
)

// Logger defines the logging interface used by the Cache.
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

// Fetcher queries the detail of the item in one remote slot.
// access.Remote satisfies it.
type Fetcher interface {
	GetDetail(ctx context.Context, client, addr string, slot int) (item.Detail, error)
}

// Entry is a persisted cache row.
type Entry struct {
	Key    item.Key
	Detail item.Detail
}

// Repository persists cache entries.
type Repository interface {
	List(ctx context.Context) ([]Entry, error)
	Put(ctx context.Context, e Entry) error
}

// Cache provides item details with memoisation and thread safety.
type Cache struct {
	repo    Repository
	fetcher Fetcher
	mu      sync.RWMutex
	entries map[item.Key]*item.Detail
	logger  Logger
}

// New creates a cache. repo may be nil for a memory-only cache.
func New(repo Repository, fetcher Fetcher) *Cache {
	return &Cache{
		repo:    repo,
		fetcher: fetcher,
		entries: make(map[item.Key]*item.Detail),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// Load reads every persisted entry into memory.
func (c *Cache) Load(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	entries, err := c.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading item details: %w", err)
	}

	c.mu.Lock()
	for _, e := range entries {
		d := e.Detail
		c.entries[e.Key] = &d
	}
	c.mu.Unlock()

	c.logger.Info("item detail cache loaded", "count", len(entries))
	return nil
}

// Lookup returns a cached detail without querying the network.
func (c *Cache) Lookup(key item.Key) (*item.Detail, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[key]
	return d, ok
}

// Get returns the detail of the item of type key sitting in slot of addr,
// querying client on a cache miss. A failed query is returned as an error
// and nothing is cached.
func (c *Cache) Get(ctx context.Context, client, addr string, slot int, key item.Key) (*item.Detail, error) {
	if d, ok := c.Lookup(key); ok {
		return d, nil
	}

	fetched, err := c.fetcher.GetDetail(ctx, client, addr, slot)
	if err != nil {
		return nil, err
	}
	if fetched.MaxSize < 1 {
		return nil, fmt.Errorf("%w: %s reports max size %d", ErrInvalidDetail, key, fetched.MaxSize)
	}
	if fetched.Name == "" {
		fetched.Name = key.Name
	}

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		// Another caller won the race.
		c.mu.Unlock()
		return existing, nil
	}
	d := &fetched
	c.entries[key] = d
	c.mu.Unlock()

	c.logger.Debug("item detail cached", "item", key.String(), "label", d.Label, "max_size", d.MaxSize)

	if c.repo != nil {
		if err := c.repo.Put(ctx, Entry{Key: key, Detail: fetched}); err != nil {
			// The entry stays in memory; it is queried again after a restart.
			c.logger.Warn("persisting item detail failed", "item", key.String(), "error", err)
		}
	}
	return d, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
