package report

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type cacheEntry struct {
	createdAt time.Time
	charts    map[ChartKind][]byte
	report    *Report
}

// Cache keeps the reports and chart images of recent runs for ttl so the
// dashboard can serve them by run id.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]cacheEntry
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now, entries: map[uuid.UUID]cacheEntry{}}
}

// Put stores a run and sweeps expired entries.
func (c *Cache) Put(r *Report, charts map[ChartKind][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, e := range c.entries {
		if !now.Before(e.createdAt.Add(c.ttl)) {
			delete(c.entries, id)
		}
	}
	c.entries[r.ID] = cacheEntry{createdAt: now, charts: charts, report: r}
}

// Chart returns a copy of the image, if the run is still cached.
func (c *Cache) Chart(run uuid.UUID, kind ChartKind) ([]byte, bool) {
	e, ok := c.get(run)
	if !ok {
		return nil, false
	}
	img, ok := e.charts[kind]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(img))
	copy(out, img)
	return out, true
}

func (c *Cache) Report(run uuid.UUID) (*Report, bool) {
	e, ok := c.get(run)
	return e.report, ok
}

// Kinds lists the chart kinds available for run in render order.
func (c *Cache) Kinds(run uuid.UUID) []ChartKind {
	e, ok := c.get(run)
	if !ok {
		return nil
	}
	var out []ChartKind
	for _, k := range ChartKinds {
		if _, ok := e.charts[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) get(run uuid.UUID) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[run]
	if !ok || !c.now().Before(e.createdAt.Add(c.ttl)) {
		return cacheEntry{}, false
	}
	return e, true
}
