// Package cache stores resolved playback links keyed by content and episode
// metadata. Entries carry their own lifetime: positive results live long,
// negative ("known not ready") results expire quickly to force a re-check.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Entry is a cached resolution outcome. Ready=false is the explicit
// not-ready marker, distinct from cache absence.
type Entry struct {
	URL   string `json:"url"`
	Ready bool   `json:"ready"`
}

// Store is a shared key-value cache with per-entry TTL. Implementations must
// be safe for concurrent use from multiple process instances.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

// Key derives the deterministic cache key for a resolution. Two requests
// with identical tuples always map to the same entry.
func Key(hash string, season, episode, absoluteEpisode int, requestedName string) string {
	return fmt.Sprintf("%s:s%d:e%d:a%d:%s", hash, season, episode, absoluteEpisode, requestedName)
}
