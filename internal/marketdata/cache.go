package marketdata

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/kabu-screener/internal/models"
)

// CachedProvider memoizes History calls of an underlying provider
type CachedProvider struct {
	next      Provider
	cache     *cache.Cache
	ttl       time.Duration
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewCachedProvider wraps next with an in-memory cache
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// Name returns the name of the wrapped provider
func (c *CachedProvider) Name() string {
	return c.next.Name()
}

// BreakerState reports the wrapped provider's breaker, or closed when it has none
func (c *CachedProvider) BreakerState() string {
	if b, ok := c.next.(BreakerReporter); ok {
		return b.BreakerState()
	}
	return BreakerClosed
}

func cacheKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s", symbol, DayOf(start).Format("20060102"), DayOf(end).Format("20060102"))
}

// History returns cached bars when present, fetching and storing them otherwise.
// Errors are not cached.
func (c *CachedProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	key := cacheKey(symbol, start, end)
	if cached, found := c.cache.Get(key); found {
		if bars, ok := cached.([]models.Bar); ok {
			c.hitCount.Add(1)
			return append([]models.Bar(nil), bars...), nil
		}
	}
	c.missCount.Add(1)

	bars, err := c.next.History(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, append([]models.Bar(nil), bars...), c.ttl)
	return bars, nil
}

// Stats returns cache hit and miss counts
func (c *CachedProvider) Stats() (hits, misses uint64) {
	return c.hitCount.Load(), c.missCount.Load()
}
