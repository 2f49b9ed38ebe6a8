// package playback resolves playable stream URLs and keeps them warm for the play queue
package playback

import (
	"sync"
	"time"

	"github.com/vikify/resolver/internal/metrics"
	"github.com/vikify/resolver/internal/models"
)

// DefaultTTL is how long a resolved or preloaded track stays fresh.
const DefaultTTL = 6 * time.Hour

// Cache tracks resolved streams, preload confirmations and in-flight track ids.
//
// Entries expire lazily: a stale entry is dropped by the lookup that finds it.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]models.PreloadCacheEntry
	streams map[string]models.ResolvedStream

	flightMu sync.Mutex
	inFlight map[string]struct{}
}

// CacheStats is a point-in-time view of a [Cache].
type CacheStats struct {
	Cached   int           `json:"cached"`
	Streams  int           `json:"streams"`
	InFlight int           `json:"in_flight"`
	TTL      time.Duration `json:"ttl"`
}

// CacheOption configures a [Cache].
type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache. A non-positive ttl uses [DefaultTTL].
func NewCache(ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]models.PreloadCacheEntry),
		streams:  make(map[string]models.ResolvedStream),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsFresh reports whether trackID was resolved or preloaded within the TTL.
func (c *Cache) IsFresh(trackID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[trackID]
	if !ok {
		return false
	}
	if entry.Fresh(c.now(), c.ttl) {
		return true
	}
	delete(c.entries, trackID)
	delete(c.streams, trackID)
	metrics.StreamCacheLookups.WithLabelValues("expired").Inc()
	return false
}

// Stream returns the fresh resolved stream for trackID, if one with a URL exists.
func (c *Cache) Stream(trackID string) (models.ResolvedStream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.streams[trackID]
	if !ok || s.URL == "" {
		return models.ResolvedStream{}, false
	}
	if c.now().Sub(s.ResolvedAt) >= c.ttl {
		delete(c.streams, trackID)
		metrics.StreamCacheLookups.WithLabelValues("expired").Inc()
		return models.ResolvedStream{}, false
	}
	return s, true
}

// Store records s and a matching cache entry, replacing anything held for the track.
func (c *Cache) Store(s models.ResolvedStream) {
	if s.ResolvedAt.IsZero() {
		s.ResolvedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.streams[s.TrackID] = s
	c.entries[s.TrackID] = models.PreloadCacheEntry{TrackID: s.TrackID, ResolvedAt: s.ResolvedAt}
}

// MarkPreloaded records that the backend confirmed trackID without handing out a URL.
func (c *Cache) MarkPreloaded(trackID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[trackID] = models.PreloadCacheEntry{TrackID: trackID, ResolvedAt: c.now()}
}

// IsInFlight reports whether a resolution or prefetch for trackID is running.
func (c *Cache) IsInFlight(trackID string) bool {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	_, ok := c.inFlight[trackID]
	return ok
}

// tryBegin marks trackID in flight and reports whether it was not already.
func (c *Cache) tryBegin(trackID string) bool {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	if _, ok := c.inFlight[trackID]; ok {
		return false
	}
	c.inFlight[trackID] = struct{}{}
	metrics.InFlight.Inc()
	return true
}

func (c *Cache) finish(trackID string) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	if _, ok := c.inFlight[trackID]; ok {
		delete(c.inFlight, trackID)
		metrics.InFlight.Dec()
	}
}

// Stats counts entries without evicting stale ones.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	cached, streams := len(c.entries), len(c.streams)
	c.mu.Unlock()

	c.flightMu.Lock()
	inFlight := len(c.inFlight)
	c.flightMu.Unlock()

	return CacheStats{Cached: cached, Streams: streams, InFlight: inFlight, TTL: c.ttl}
}

// Clear drops every cached entry and stream. In-flight work is left alone.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.PreloadCacheEntry)
	c.streams = make(map[string]models.ResolvedStream)
}
