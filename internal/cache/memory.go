package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/observability"
)

// AppCache is the L1 cache of apps keyed by id, used on every SDK request to
// check the API key. It is backed by otter (S3-FIFO).
type AppCache struct {
	store otter.Cache[string, model.App]
}

// NewAppCache builds a cache holding at most capacity apps for ttl each.
func NewAppCache(capacity int, ttl time.Duration) (*AppCache, error) {
	cache, err := otter.MustBuilder[string, model.App](capacity).
		CollectStats().
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &AppCache{store: cache}, nil
}

// Get returns the cached app.
func (c *AppCache) Get(id string) (model.App, bool) {
	app, ok := c.store.Get(id)
	if ok {
		observability.AppCacheHits.Inc()
	} else {
		observability.AppCacheMisses.Inc()
	}
	return app, ok
}

// Set caches app under its id.
func (c *AppCache) Set(app model.App) {
	c.store.Set(app.ID, app)
}

// Del evicts id. Called on every app mutation.
func (c *AppCache) Del(id string) {
	c.store.Delete(id)
}

// Len returns the number of cached apps.
func (c *AppCache) Len() int {
	return c.store.Size()
}

// RunMetricsCollector publishes the cache size and otter's cumulative
// eviction counters every interval until ctx is done.
func (c *AppCache) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats := c.store.Stats()
		observability.AppCacheItems.Set(float64(c.store.Size()))
		observability.AppCacheEvictions.Set(float64(stats.EvictedCount()))
		observability.AppCacheRejected.Set(float64(stats.RejectedSets()))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close stops otter's background goroutines.
func (c *AppCache) Close() {
	c.store.Close()
}
