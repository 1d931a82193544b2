package dedupe

import (
	"context"
	"sync"
	"time"
)

// Guard answers "has this effect already been applied?" for at-least-once
// job processing. Once returns true exactly once per key within the TTL
// window; handlers use it to avoid double-applying tenant-visible side
// effects (e.g. re-sending a "certificate active" email after a redelivery).
//
// The guard is advisory: a false negative causes a duplicate effect, which
// subscribers and recipients must already tolerate under at-least-once
// delivery. It must never be used for correctness-critical mutual exclusion.
type Guard interface {
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryGuard implements Guard with an in-process map.
// Suitable for tests and single-instance deployments.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryGuard creates an empty in-memory guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]time.Time)}
}

// Once reports whether the key is being seen for the first time within its TTL.
func (g *MemoryGuard) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if expires, ok := g.seen[key]; ok && expires.After(now) {
		return false, nil
	}

	// Opportunistic cleanup keeps the map from growing unbounded.
	for k, expires := range g.seen {
		if expires.Before(now) {
			delete(g.seen, k)
		}
	}

	g.seen[key] = now.Add(ttl)
	return true, nil
}
