package ardent_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ardent"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := ardent.NewMemoryCache()

	v, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, c.Set(ctx, "a:1", []byte("one"), 0))
	require.NoError(t, c.Set(ctx, "a:2", []byte("two"), 0))
	require.NoError(t, c.Set(ctx, "b:1", []byte("three"), 0))
	v, err = c.Get(ctx, "a:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), v)
	assert.Equal(t, 3, c.Len())

	require.NoError(t, c.DeletePrefix(ctx, "a:"))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete(ctx, "b:1"))
	assert.Zero(t, c.Len())

	require.NoError(t, c.Set(ctx, "x", []byte("x"), 0))
	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len())
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := ardent.NewMemoryCache()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	v, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Zero(t, c.Len())

	require.NoError(t, c.Set(ctx, "long", []byte("v"), time.Hour))
	v, err = c.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestMetadataCacheLoad(t *testing.T) {
	ctx := context.Background()
	mc := ardent.NewMetadataCache(ardent.NewMemoryCache(), 0)
	key := ardent.CacheKey{Connection: "default", Table: "users"}

	var calls atomic.Int32
	resolve := func(context.Context) (*ardent.TableMeta, error) {
		calls.Add(1)
		return &ardent.TableMeta{
			Table:      "users",
			Columns:    []string{"id", "name", "is_deleted"},
			PrimaryKey: "id",
			ResolvedAt: time.Now(),
		}, nil
	}

	meta, err := mc.Load(ctx, key, resolve)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "is_deleted"}, meta.Columns)

	// Served from the cache, decoded from msgpack.
	meta, err = mc.Load(ctx, key, resolve)
	require.NoError(t, err)
	assert.Equal(t, "id", meta.PrimaryKey)
	assert.Equal(t, "users", meta.Table)
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, mc.Invalidate(ctx, key))
	_, err = mc.Load(ctx, key, resolve)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, mc.InvalidateConnection(ctx, "default"))
	_, err = mc.Load(ctx, key, resolve)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMetadataCacheConcurrentLoad(t *testing.T) {
	ctx := context.Background()
	mc := ardent.NewMetadataCache(ardent.NewMemoryCache(), time.Minute)
	key := ardent.CacheKey{Connection: "default", Table: "posts"}

	var (
		calls   atomic.Int32
		release = make(chan struct{})
	)
	resolve := func(context.Context) (*ardent.TableMeta, error) {
		calls.Add(1)
		<-release
		return &ardent.TableMeta{Table: "posts", Columns: []string{"id"}, PrimaryKey: "id"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, err := mc.Load(ctx, key, resolve)
			assert.NoError(t, err)
			assert.Equal(t, "id", meta.PrimaryKey)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestMetadataCacheResolveError(t *testing.T) {
	ctx := context.Background()
	c := ardent.NewMemoryCache()
	mc := ardent.NewMetadataCache(c, 0)
	boom := errors.New("no such table")

	_, err := mc.Load(ctx, ardent.CacheKey{Connection: "default", Table: "ghost"}, func(context.Context) (*ardent.TableMeta, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len(), "failed resolutions are not cached")
}

func TestMetadataCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c := ardent.NewMemoryCache()
	mc := ardent.NewMetadataCache(c, 0)
	key := ardent.CacheKey{Connection: "default", Table: "users"}

	require.NoError(t, c.Set(ctx, key.String(), []byte{0xc1}, 0))
	_, err := mc.Load(ctx, key, func(context.Context) (*ardent.TableMeta, error) {
		return &ardent.TableMeta{}, nil
	})
	require.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	key := ardent.CacheKey{Connection: "reporting", Table: "orders"}
	assert.Equal(t, "ardent:meta:reporting:orders", key.String())
	assert.Equal(t, "ardent:meta:reporting:", ardent.ConnectionPrefix("reporting"))
}
