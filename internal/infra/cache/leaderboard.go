// Package cache keeps short-lived copies of hot read queries so the
// leaderboard endpoint does not hit SQLite on every page load.
// The store stays the source of truth.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MRamiBalles/coinrush/server/internal/infra/storage"
)

// LeaderboardSource is the query being cached.
type LeaderboardSource interface {
	TopWeekly(ctx context.Context, limit int) ([]storage.PlayerRecord, error)
}

// LeaderboardCache caches leaderboard pages keyed by limit.
type LeaderboardCache struct {
	source  LeaderboardSource
	entries *expirable.LRU[int, []storage.PlayerRecord]

	// gen is bumped by Invalidate; a load started under an older gen is not cached.
	mu  sync.Mutex
	gen uint64
}

// NewLeaderboardCache creates a cache whose entries expire after ttl.
func NewLeaderboardCache(source LeaderboardSource, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		source:  source,
		entries: expirable.NewLRU[int, []storage.PlayerRecord](32, nil, ttl),
	}
}

// Top returns the cached page or loads it. Errors are never cached.
func (c *LeaderboardCache) Top(ctx context.Context, limit int) ([]storage.PlayerRecord, error) {
	if recs, ok := c.entries.Get(limit); ok {
		return clone(recs), nil
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	recs, err := c.source.TopWeekly(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	c.mu.Lock()
	if c.gen == gen {
		c.entries.Add(limit, recs)
	}
	c.mu.Unlock()
	return clone(recs), nil
}

// Invalidate drops every cached page. Called after scores are written.
func (c *LeaderboardCache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.entries.Purge()
	c.mu.Unlock()
}

func clone(recs []storage.PlayerRecord) []storage.PlayerRecord {
	out := make([]storage.PlayerRecord, len(recs))
	copy(out, recs)
	return out
}
