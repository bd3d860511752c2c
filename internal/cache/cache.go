// Package cache provides in-memory caching of Shin results.
package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yourusername/shin/internal/metrics"
	"github.com/yourusername/shin/internal/shin"
)

// Key identifies a solve by its prices and stopping rules
type Key struct {
	Prices               []float64
	MaxIterations        int
	ConvergenceThreshold float64
}

// String returns the cache key. Floats are encoded exactly so distinct
// inputs never collide.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(k.MaxIterations))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(k.ConvergenceThreshold, 'g', -1, 64))
	for _, p := range k.Prices {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(p, 'g', -1, 64))
	}
	return b.String()
}

// ResultCache provides in-memory caching for Shin results
type ResultCache struct {
	cache     *gocache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.Mutex
	hitCount  uint64
	missCount uint64
}

// NewResultCache creates a new result cache. A maxSize of zero disables the size limit.
func NewResultCache(ttl time.Duration, maxSize int) *ResultCache {
	return &ResultCache{
		cache:   gocache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached result
func (rc *ResultCache) Get(key Key) (*shin.Result, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if item, found := rc.cache.Get(key.String()); found {
		if result, ok := item.(*shin.Result); ok {
			rc.hitCount++
			rc.updateMetrics()
			return cloneResult(result), true
		}
	}

	rc.missCount++
	rc.updateMetrics()
	return nil, false
}

// Set stores a result in the cache. When the cache is full, expired items
// are purged first; if it is still full the result is not stored.
func (rc *ResultCache) Set(key Key, result *shin.Result) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.maxSize > 0 && rc.cache.ItemCount() >= rc.maxSize {
		rc.cache.DeleteExpired()
		if rc.cache.ItemCount() >= rc.maxSize {
			return false
		}
	}

	rc.cache.Set(key.String(), cloneResult(result), rc.ttl)
	return true
}

// Clear flushes the entire cache
func (rc *ResultCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.cache.Flush()
	rc.hitCount = 0
	rc.missCount = 0
	rc.updateMetrics()
}

// Stats returns cache statistics
func (rc *ResultCache) Stats() (hits, misses uint64, ratio float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.stats()
}

func (rc *ResultCache) stats() (hits, misses uint64, ratio float64) {
	hits = rc.hitCount
	misses = rc.missCount
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// updateMetrics must be called with rc.mu held
func (rc *ResultCache) updateMetrics() {
	_, _, ratio := rc.stats()
	metrics.UpdateCacheHitRatio(ratio)
}

// ItemCount returns the number of items in cache
func (rc *ResultCache) ItemCount() int {
	return rc.cache.ItemCount()
}

func cloneResult(r *shin.Result) *shin.Result {
	c := *r
	c.ImpliedProbabilities = append([]float64(nil), r.ImpliedProbabilities...)
	return &c
}
