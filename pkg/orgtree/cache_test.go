package orgtree

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls int32
	node  Node
	err   error
	delay time.Duration
}

func (f *stubFetcher) FetchTree(ctx context.Context) (Node, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.node, f.err
}

func (f *stubFetcher) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func TestCacheLoadFetchesOnce(t *testing.T) {
	fetcher := &stubFetcher{node: testNode()}
	cache := NewCache(fetcher, time.Minute)

	first, err := cache.Load(context.Background())
	require.NoError(t, err)
	second, err := cache.Load(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestCacheExpiryRefetches(t *testing.T) {
	fetcher := &stubFetcher{node: testNode()}
	cache := NewCache(fetcher, time.Minute)

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err := cache.Load(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestCacheFetchFailureKeepsNothing(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("hub down")}
	cache := NewCache(fetcher, time.Minute)

	_, err := cache.Load(context.Background())
	require.Error(t, err)

	// The failure is not cached either; the next load tries again.
	_, err = cache.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestCacheFetchFailureLeavesPreviousTree(t *testing.T) {
	fetcher := &stubFetcher{node: testNode()}
	cache := NewCache(fetcher, time.Minute)

	tree, err := cache.Load(context.Background())
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.err = errors.New("hub down")
	fetcher.mu.Unlock()

	_, err = cache.Refresh(context.Background())
	require.Error(t, err)

	// The failed refresh keeps the previous tree installed; Load serves it
	// without another fetch.
	again, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, tree, again)
	assert.Equal(t, 6, again.Size())
	assert.Equal(t, 2, fetcher.callCount())
}

func TestCacheRefreshReplacesFreshTree(t *testing.T) {
	fetcher := &stubFetcher{node: testNode()}
	cache := NewCache(fetcher, time.Minute)

	first, err := cache.Load(context.Background())
	require.NoError(t, err)

	// Still within TTL, but a forced refresh goes to the source anyway.
	second, err := cache.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestCacheConcurrentMissesShareOneFetch(t *testing.T) {
	fetcher := &stubFetcher{node: testNode(), delay: 20 * time.Millisecond}
	cache := NewCache(fetcher, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Load(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fetcher.callCount())
}

func TestCacheRedisHitSkipsFetcher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	raw, err := json.Marshal(testNode())
	require.NoError(t, err)
	require.NoError(t, mr.Set(redisKey, string(raw)))

	fetcher := &stubFetcher{err: errors.New("should not be called")}
	cache := NewCache(fetcher, time.Minute, WithRedis(client))

	tree, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, tree.Size())
	assert.Equal(t, 0, fetcher.callCount())
}

func TestCachePublishesToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	fetcher := &stubFetcher{node: testNode()}
	cache := NewCache(fetcher, time.Minute, WithRedis(client))

	_, err := cache.Load(context.Background())
	require.NoError(t, err)

	raw, err := mr.Get(redisKey)
	require.NoError(t, err)
	var node Node
	require.NoError(t, json.Unmarshal([]byte(raw), &node))
	assert.Equal(t, 1, node.ID)
}

func TestCacheDropsUnparseableRedisEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set(redisKey, "not json"))

	fetcher := &stubFetcher{node: testNode()}
	cache := NewCache(fetcher, time.Minute, WithRedis(client))

	tree, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, tree.Size())
	assert.Equal(t, 1, fetcher.callCount())
}
