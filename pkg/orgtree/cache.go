package orgtree

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL matches the upstream cache lifetime for the org tree.
const DefaultTTL = 15 * time.Minute

// redisKey is the single well-known cache slot; the tree is global, not
// per-caller.
const redisKey = "org-tree"

// Fetcher retrieves the full tree from the identity service.
type Fetcher interface {
	FetchTree(ctx context.Context) (Node, error)
}

// Cache holds the process-wide tree with a time-bounded lifetime. Concurrent
// cache misses share a single in-flight fetch. A fetch failure leaves any
// previously cached tree untouched and propagates to every waiter; a stale
// tree is never silently substituted and a half-built one is never stored.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	log     logrus.FieldLogger
	redis   *redis.Client

	group singleflight.Group

	mu        sync.RWMutex
	tree      *Tree
	fetchedAt time.Time

	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithRedis shares the fetched tree across replicas through Redis, keyed by
// the well-known slot with the cache TTL.
func WithRedis(client *redis.Client) Option {
	return func(c *Cache) { c.redis = client }
}

// WithLogger sets the cache logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Cache) { c.log = log }
}

// NewCache builds a tree cache over the given fetcher. A non-positive ttl
// falls back to DefaultTTL.
func NewCache(fetcher Fetcher, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		log:     logrus.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached tree, refreshing it when absent or expired.
func (c *Cache) Load(ctx context.Context) (*Tree, error) {
	c.mu.RLock()
	tree, fetchedAt := c.tree, c.fetchedAt
	c.mu.RUnlock()
	if tree != nil && c.now().Sub(fetchedAt) < c.ttl {
		return tree, nil
	}
	return c.refresh(ctx, false)
}

// Refresh forces a fetch regardless of freshness. Used by the background
// refresh schedule to keep the cache warm. A failed fetch keeps the previous
// tree installed; Load keeps serving it until its TTL runs out.
func (c *Cache) Refresh(ctx context.Context) (*Tree, error) {
	return c.refresh(ctx, true)
}

func (c *Cache) refresh(ctx context.Context, force bool) (*Tree, error) {
	v, err, _ := c.group.Do(redisKey, func() (interface{}, error) {
		// Another waiter may have completed the refresh already. A forced
		// refresh always goes to the source.
		if !force {
			c.mu.RLock()
			tree, fetchedAt := c.tree, c.fetchedAt
			c.mu.RUnlock()
			if tree != nil && c.now().Sub(fetchedAt) < c.ttl {
				return tree, nil
			}
		}

		node, err := c.fetchNode(ctx)
		if err != nil {
			return nil, err
		}
		fresh, err := New(node)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.tree = fresh
		c.fetchedAt = c.now()
		c.mu.Unlock()

		c.log.WithFields(logrus.Fields{
			"units": fresh.Size(),
			"ttl":   c.ttl,
		}).Debug("org tree refreshed")
		return fresh, nil
	})
	if err != nil {
		return nil, fmt.Errorf("org tree refresh: %w", err)
	}
	return v.(*Tree), nil
}

// fetchNode consults the shared Redis slot before falling back to the
// identity service, and publishes a fresh fetch back to Redis best-effort.
func (c *Cache) fetchNode(ctx context.Context) (Node, error) {
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, redisKey).Bytes()
		if err == nil {
			var node Node
			if err := json.Unmarshal(raw, &node); err == nil {
				return node, nil
			}
			// Unparseable shared entry: drop it and fetch fresh.
			c.redis.Del(ctx, redisKey)
		} else if err != redis.Nil {
			c.log.WithError(err).Warn("org tree redis lookup failed")
		}
	}

	node, err := c.fetcher.FetchTree(ctx)
	if err != nil {
		return Node{}, err
	}

	if c.redis != nil {
		if raw, err := json.Marshal(node); err == nil {
			if err := c.redis.Set(ctx, redisKey, raw, c.ttl).Err(); err != nil {
				c.log.WithError(err).Warn("org tree redis publish failed")
			}
		}
	}
	return node, nil
}
