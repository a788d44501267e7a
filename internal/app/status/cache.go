// Package status provides a short-TTL cache over the engine's statistics
// feed. Operators prefer a slightly old truth to no truth, so a failed
// refresh serves the previous snapshot flagged stale instead of an error.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"aircast/internal/infra/shoutcast"
)

// Fetcher retrieves a fresh statistics snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*shoutcast.Snapshot, error)
}

// Result is a snapshot together with its cache provenance.
type Result struct {
	Snapshot *shoutcast.Snapshot `json:"data"`
	Cached   bool                `json:"cached,omitempty"`
	Stale    bool                `json:"stale,omitempty"`
}

// Cache serves statistics snapshots with a short TTL.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	clock   func() time.Time

	mu        sync.Mutex
	snapshot  *shoutcast.Snapshot
	fetchedAt time.Time
}

// New creates a status cache. A zero TTL disables caching.
func New(fetcher Fetcher, ttl time.Duration) *Cache {
	return &Cache{fetcher: fetcher, ttl: ttl, clock: time.Now}
}

// Get returns the current statistics. Within the TTL the cached snapshot is
// authoritative; past it a refresh is attempted, and on refresh failure the
// stale snapshot is returned rather than an error. Get fails only when no
// snapshot has ever been fetched.
func (c *Cache) Get(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if c.snapshot != nil && now.Sub(c.fetchedAt) < c.ttl {
		return Result{Snapshot: c.snapshot, Cached: true}, nil
	}

	snap, err := c.fetcher.Fetch(ctx)
	if err != nil {
		if c.snapshot != nil {
			zlog.Warn().Msgf("stats refresh failed, serving stale snapshot: %v", err)
			return Result{Snapshot: c.snapshot, Cached: true, Stale: true}, nil
		}
		return Result{}, errors.Wrap(err, "stats fetch failed with empty cache")
	}

	c.snapshot = snap
	c.fetchedAt = now
	return Result{Snapshot: snap}, nil
}
