// Package cache holds the derived response cache for assembled aggregates,
// keyed by (subject id, security level) so requesters at different levels
// never share a projection.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"empgate/internal/details/models"
	"empgate/internal/platform/metrics"
	"empgate/pkg/requestcontext"
)

// keySep cannot appear in subject ids or level names, which makes the
// subject-id prefix match in Invalidate exact ("emp1" never matches
// "emp10"'s entries).
const keySep = "\x1f"

type entry struct {
	value       *models.Aggregate
	assembledAt time.Time
}

// Cache is a per-key concurrent read-through cache. There is deliberately no
// single-flight deduplication: two concurrent misses for the same key may
// both assemble and the last writer wins. Callers tolerate redundant
// assembly; this mirrors the observed behavior and is a documented design
// choice, not an oversight to fix.
type Cache struct {
	freshness time.Duration
	metrics   *metrics.Metrics

	entries sync.Map // subjectID \x1f level -> entry
}

func New(freshness time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{freshness: freshness, metrics: m}
}

// GetOrCompute returns the cached aggregate when present and younger than
// the freshness window; otherwise it runs assemble, stores the result, and
// returns it. The second return value reports whether the value came from
// cache. Assembly errors are returned unchanged and nothing is stored.
func (c *Cache) GetOrCompute(ctx context.Context, subjectID, level string, assemble func(context.Context) (*models.Aggregate, error)) (*models.Aggregate, bool, error) {
	k := key(subjectID, level)
	now := requestcontext.Now(ctx)

	if v, ok := c.entries.Load(k); ok {
		e := v.(entry)
		if now.Sub(e.assembledAt) < c.freshness {
			c.metrics.IncrementCacheHits()
			return e.value, true, nil
		}
	}
	c.metrics.IncrementCacheMisses()

	value, err := assemble(ctx)
	if err != nil {
		return nil, false, err
	}
	c.entries.Store(k, entry{value: value, assembledAt: now})
	return value, false, nil
}

// Invalidate removes every entry for the subject id across all security
// level variants. Returns the number of entries removed.
func (c *Cache) Invalidate(subjectID string) int {
	prefix := subjectID + keySep
	removed := 0
	c.entries.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			c.entries.Delete(k)
			removed++
		}
		return true
	})
	c.metrics.AddCacheEvictions(removed)
	return removed
}

// Sweep removes every entry older than maxAge as of the context time.
// Returns the number of entries evicted.
func (c *Cache) Sweep(ctx context.Context, maxAge time.Duration) int {
	now := requestcontext.Now(ctx)
	evicted := 0
	c.entries.Range(func(k, v any) bool {
		if now.Sub(v.(entry).assembledAt) >= maxAge {
			c.entries.Delete(k)
			evicted++
		}
		return true
	})
	c.metrics.AddCacheEvictions(evicted)
	return evicted
}

// Len reports the current entry count (diagnostics and tests).
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func key(subjectID, level string) string {
	return subjectID + keySep + level
}
