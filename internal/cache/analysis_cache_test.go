package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotepulse/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testAnalysis(score float64) *model.ComplexityAnalysis {
	return &model.ComplexityAnalysis{Level: model.ComplexityMedium, Score: score}
}

func TestAnalysisCache_PutThenGet(t *testing.T) {
	c := NewAnalysisCache(AnalysisCacheConfig{})
	q := baseQuote()

	_, ok := c.Get(q.ID, q)
	assert.False(t, ok)

	want := testAnalysis(42)
	c.Put(q.ID, q, want)

	got, ok := c.Get(q.ID, baseQuote())
	require.True(t, ok)
	assert.Same(t, want, got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestAnalysisCache_ContentChangeMisses(t *testing.T) {
	c := NewAnalysisCache(AnalysisCacheConfig{})
	q := baseQuote()
	c.Put(q.ID, q, testAnalysis(42))

	edited := baseQuote()
	edited.LineItems[0].Cost = 50

	_, ok := c.Get(edited.ID, edited)
	assert.False(t, ok)
}

func TestAnalysisCache_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewAnalysisCache(AnalysisCacheConfig{Now: clock.Now})
	q := baseQuote()
	c.Put(q.ID, q, testAnalysis(42))

	clock.Advance(4*time.Minute + 59*time.Second)
	_, ok := c.Get(q.ID, q)
	assert.True(t, ok, "entry should still be live before the TTL")

	clock.Advance(time.Second)
	_, ok = c.Get(q.ID, q)
	assert.False(t, ok, "entry should expire at the TTL even if never removed")
	assert.Equal(t, 0, c.Len(), "expired entry is removed on access")
}

func TestAnalysisCache_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewAnalysisCache(AnalysisCacheConfig{TTL: time.Minute, Now: clock.Now})

	for i := 0; i < 5; i++ {
		q := baseQuote()
		c.Put(fmt.Sprintf("q%d", i), q, testAnalysis(float64(i)))
	}
	clock.Advance(30 * time.Second)
	c.Put("fresh", baseQuote(), testAnalysis(99))
	clock.Advance(45 * time.Second)

	assert.Equal(t, 5, c.CleanupExpired())
	assert.Equal(t, 1, c.Len())
}

func TestAnalysisCache_EvictsOldestFifth(t *testing.T) {
	clock := newFakeClock()
	c := NewAnalysisCache(AnalysisCacheConfig{MaxEntries: 10, Now: clock.Now})
	q := baseQuote()

	for i := 0; i < 10; i++ {
		c.Put(fmt.Sprintf("q%d", i), q, testAnalysis(float64(i)))
		clock.Advance(time.Second)
	}
	require.Equal(t, 10, c.Len())

	c.Put("q10", q, testAnalysis(10))

	assert.Equal(t, 9, c.Len())
	for _, gone := range []string{"q0", "q1"} {
		_, ok := c.Get(gone, q)
		assert.False(t, ok, "%s should have been evicted", gone)
	}
	for _, kept := range []string{"q2", "q9", "q10"} {
		_, ok := c.Get(kept, q)
		assert.True(t, ok, "%s should still be cached", kept)
	}
	assert.Equal(t, int64(2), c.Stats().Evictions)
}

func TestAnalysisCache_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	c := NewAnalysisCache(AnalysisCacheConfig{MaxEntries: 2})
	q := baseQuote()
	c.Put("a", q, testAnalysis(1))
	c.Put("b", q, testAnalysis(2))

	c.Put("a", q, testAnalysis(3))

	assert.Equal(t, 2, c.Len())
	got, ok := c.Get("a", q)
	require.True(t, ok)
	assert.Equal(t, 3.0, got.Score)
}

func TestAnalysisCache_Invalidate(t *testing.T) {
	c := NewAnalysisCache(AnalysisCacheConfig{})
	q := baseQuote()
	edited := baseQuote()
	edited.Notes = "Back yard too"

	c.Put("q1", q, testAnalysis(1))
	c.Put("q1", edited, testAnalysis(2))
	c.Put("q2", q, testAnalysis(3))

	assert.Equal(t, 2, c.Invalidate("q1"))
	_, ok := c.Get("q2", q)
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestAnalysisCache_VersionBumpHidesEntries(t *testing.T) {
	c := NewAnalysisCache(AnalysisCacheConfig{Version: "v1"})
	q := baseQuote()
	c.Put(q.ID, q, testAnalysis(1))

	c.SetVersion("v2")

	_, ok := c.Get(q.ID, q)
	assert.False(t, ok)
	assert.Equal(t, "v2", c.Stats().Version)
}

func TestAnalysisCache_Clear(t *testing.T) {
	c := NewAnalysisCache(AnalysisCacheConfig{})
	c.Put("a", baseQuote(), testAnalysis(1))
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestAnalysisCache_GetOrCompute(t *testing.T) {
	c := NewAnalysisCache(AnalysisCacheConfig{})
	q := baseQuote()
	calls := 0
	compute := func() *model.ComplexityAnalysis {
		calls++
		return testAnalysis(float64(calls))
	}

	first, fromCache := c.GetOrCompute(q.ID, q, compute)
	assert.False(t, fromCache)
	assert.Equal(t, 1.0, first.Score)

	second, fromCache := c.GetOrCompute(q.ID, q, compute)
	assert.True(t, fromCache)
	assert.Same(t, first, second)

	edited := baseQuote()
	edited.LineItems[1].Cost = 4
	third, fromCache := c.GetOrCompute(edited.ID, edited, compute)
	assert.False(t, fromCache)
	assert.Equal(t, 2.0, third.Score)
	assert.Equal(t, 2, calls)
}

func TestAnalysisCache_ConcurrentAccess(t *testing.T) {
	c := NewAnalysisCache(AnalysisCacheConfig{MaxEntries: 50})
	var computed atomic.Int64
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				q := baseQuote()
				id := fmt.Sprintf("q%d", i%80)
				c.GetOrCompute(id, q, func() *model.ComplexityAnalysis {
					computed.Add(1)
					return testAnalysis(float64(i))
				})
				if i%50 == 0 {
					c.CleanupExpired()
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
	assert.Greater(t, computed.Load(), int64(0))
}

func TestAnalysisCache_JanitorStopsWithContext(t *testing.T) {
	clock := newFakeClock()
	c := NewAnalysisCache(AnalysisCacheConfig{TTL: time.Minute, Now: clock.Now})
	c.Put("a", baseQuote(), testAnalysis(1))
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
