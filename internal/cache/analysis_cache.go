package cache

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"quotepulse/internal/model"
)

// Defaults for the in-process analysis cache
const (
	DefaultAnalysisTTL        = 5 * time.Minute
	DefaultAnalysisMaxEntries = 1000
	DefaultAnalysisVersion    = "v1"

	// Fraction of entries purged when the cache is full
	evictFraction = 0.2
)

// AnalysisCache memoizes complexity analyses per quote content fingerprint.
// It is process-local; there is no cross-process coherence.
type AnalysisCache interface {
	Get(quoteID string, quote *model.Quote) (*model.ComplexityAnalysis, bool)
	Put(quoteID string, quote *model.Quote, analysis *model.ComplexityAnalysis)
	// GetOrCompute returns the cached analysis or computes, stores and returns a fresh one.
	// Concurrent misses for the same fingerprint share one computation.
	GetOrCompute(quoteID string, quote *model.Quote, compute func() *model.ComplexityAnalysis) (analysis *model.ComplexityAnalysis, fromCache bool)
	Invalidate(quoteID string) int
	Clear()
	CleanupExpired() int
	SetVersion(version string)
	Len() int
	Stats() CacheStats
	RunJanitor(ctx context.Context, interval time.Duration)
}

// AnalysisCacheEntry is one memoized analysis
type AnalysisCacheEntry struct {
	QuoteID   string                    `json:"quoteId"`
	Analysis  *model.ComplexityAnalysis `json:"analysis"`
	Timestamp time.Time                 `json:"timestamp"`
	Version   string                    `json:"version"`
}

// CacheStats is a point-in-time view of cache counters
type CacheStats struct {
	Entries     int    `json:"entries"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Evictions   int64  `json:"evictions"`
	Expirations int64  `json:"expirations"`
	Version     string `json:"version"`
}

// AnalysisCacheConfig configures NewAnalysisCache. Zero values take defaults.
type AnalysisCacheConfig struct {
	TTL        time.Duration
	MaxEntries int
	Version    string
	Now        func() time.Time
}

type analysisCache struct {
	mu      sync.Mutex
	entries map[string]*AnalysisCacheEntry
	ttl     time.Duration
	max     int
	version string
	now     func() time.Time
	flight  singleflight.Group

	hits, misses, evictions, expirations atomic.Int64

	hitCounter   metric.Int64Counter
	missCounter  metric.Int64Counter
	evictCounter metric.Int64Counter
}

// NewAnalysisCache creates a new in-memory analysis cache
func NewAnalysisCache(cfg AnalysisCacheConfig) AnalysisCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultAnalysisTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultAnalysisMaxEntries
	}
	if cfg.Version == "" {
		cfg.Version = DefaultAnalysisVersion
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	meter := otel.Meter("quotepulse/cache")
	hitCounter, _ := meter.Int64Counter("quotepulse_analysis_cache_hits_total",
		metric.WithDescription("Complexity analyses served from cache"))
	missCounter, _ := meter.Int64Counter("quotepulse_analysis_cache_misses_total",
		metric.WithDescription("Complexity analysis cache misses"))
	evictCounter, _ := meter.Int64Counter("quotepulse_analysis_cache_evictions_total",
		metric.WithDescription("Entries evicted because the cache was full"))

	return &analysisCache{
		entries:      make(map[string]*AnalysisCacheEntry),
		ttl:          cfg.TTL,
		max:          cfg.MaxEntries,
		version:      cfg.Version,
		now:          cfg.Now,
		hitCounter:   hitCounter,
		missCounter:  missCounter,
		evictCounter: evictCounter,
	}
}

func (c *analysisCache) Get(quoteID string, quote *model.Quote) (*model.ComplexityAnalysis, bool) {
	key := Fingerprint(quoteID, quote)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.live(entry) {
		delete(c.entries, key)
		c.expirations.Add(1)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		add(c.missCounter, 1)
		return nil, false
	}
	c.hits.Add(1)
	add(c.hitCounter, 1)
	return entry.Analysis, true
}

func (c *analysisCache) Put(quoteID string, quote *model.Quote, analysis *model.ComplexityAnalysis) {
	key := Fingerprint(quoteID, quote)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.max {
		c.evictOldestLocked()
	}
	c.entries[key] = &AnalysisCacheEntry{
		QuoteID:   quoteID,
		Analysis:  analysis,
		Timestamp: c.now(),
		Version:   c.version,
	}
}

func (c *analysisCache) GetOrCompute(quoteID string, quote *model.Quote, compute func() *model.ComplexityAnalysis) (*model.ComplexityAnalysis, bool) {
	if analysis, ok := c.Get(quoteID, quote); ok {
		return analysis, true
	}
	key := Fingerprint(quoteID, quote)
	v, _, _ := c.flight.Do(key, func() (interface{}, error) {
		analysis := compute()
		c.Put(quoteID, quote, analysis)
		return analysis, nil
	})
	return v.(*model.ComplexityAnalysis), false
}

// Invalidate drops every entry of a quote, whatever its fingerprint
func (c *analysisCache) Invalidate(quoteID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.QuoteID == quoteID {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *analysisCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*AnalysisCacheEntry)
	c.mu.Unlock()
}

// CleanupExpired removes expired and stale-version entries and returns how many it removed
func (c *analysisCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !c.live(entry) {
			delete(c.entries, key)
			removed++
		}
	}
	c.expirations.Add(int64(removed))
	return removed
}

// SetVersion bumps the cache format; all entries written under another version become absent
func (c *analysisCache) SetVersion(version string) {
	c.mu.Lock()
	c.version = version
	c.mu.Unlock()
}

func (c *analysisCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *analysisCache) Stats() CacheStats {
	c.mu.Lock()
	entries, version := len(c.entries), c.version
	c.mu.Unlock()

	return CacheStats{
		Entries:     entries,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Version:     version,
	}
}

// RunJanitor purges expired entries every interval until ctx is done
func (c *analysisCache) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("Analysis cache janitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Analysis cache janitor stopped")
			return
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				log.Debug().Int("removed", n).Msg("Purged expired analyses")
			}
		}
	}
}

func (c *analysisCache) live(entry *AnalysisCacheEntry) bool {
	return entry.Version == c.version && c.now().Sub(entry.Timestamp) < c.ttl
}

// evictOldestLocked drops the oldest fifth of entries by insertion time
func (c *analysisCache) evictOldestLocked() {
	n := int(math.Ceil(float64(len(c.entries)) * evictFraction))
	if n < 1 {
		n = 1
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].Timestamp.Before(c.entries[keys[j]].Timestamp)
	})
	for _, key := range keys[:n] {
		delete(c.entries, key)
	}

	c.evictions.Add(int64(n))
	add(c.evictCounter, int64(n))
	log.Debug().Int("evicted", n).Int("max", c.max).Msg("Analysis cache full, evicted oldest entries")
}

func add(counter metric.Int64Counter, n int64) {
	if counter != nil {
		counter.Add(context.Background(), n)
	}
}
