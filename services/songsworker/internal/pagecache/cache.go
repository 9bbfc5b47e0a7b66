package pagecache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrBackend marks failures of the cache store itself, as opposed to the
// fetch behind it.
var ErrBackend = errors.New("page cache backend")

// FetchFunc downloads a page. A nil page with a nil error means "no page"
// and is never cached.
type FetchFunc func(ctx context.Context, id int64) ([]byte, error)

// Cache puts a Store in front of a FetchFunc.
type Cache struct {
	store Store
	fetch FetchFunc
	log   *zap.Logger
	group singleflight.Group
}

func New(store Store, fetch FetchFunc, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	initMetrics()
	return &Cache{store: store, fetch: fetch, log: log}
}

// Key is the cache key of a page id.
func Key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// GetOrFetch returns the stored page for id, fetching and storing it on a
// miss. Concurrent misses for one id share a single fetch.
func (c *Cache) GetOrFetch(ctx context.Context, id int64) ([]byte, error) {
	key := Key(id)
	page, ok, err := c.store.Get(ctx, key)
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: lookup %s: %w", ErrBackend, key, err)
	}
	if ok {
		lookupsTotal.WithLabelValues("hit").Inc()
		return page, nil
	}
	lookupsTotal.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// another caller may have filled the key while we waited
		if page, ok, err := c.store.Get(ctx, key); err == nil && ok {
			return page, nil
		}
		page, err := c.fetch(ctx, id)
		if err != nil || page == nil {
			return page, err
		}
		if err := c.store.Put(ctx, key, page); err != nil {
			c.log.Warn("page cache store failed", zap.String("key", key), zap.Error(err))
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	page, _ = v.([]byte)
	return page, nil
}
