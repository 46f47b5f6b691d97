package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/title-doctor/internal/data"
	"github.com/target/title-doctor/internal/domain/model"
	apperrors "github.com/target/title-doctor/internal/errors"
	"github.com/target/title-doctor/internal/mocks/providers"
)

type failingCache struct{}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

func (failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache down")
}

func (failingCache) Delete(context.Context, string) (bool, error) {
	return false, errors.New("cache down")
}

func TestNewCachedChannelResolver_Validation(t *testing.T) {
	next := &providers.ChannelResolver{}
	cache := data.NewMemoryCache(data.MemoryCacheConfig{})

	_, err := NewCachedChannelResolver(CachedChannelResolverOptions{Cache: cache, TTL: time.Hour})
	require.Error(t, err)
	_, err = NewCachedChannelResolver(CachedChannelResolverOptions{Next: next, TTL: time.Hour})
	require.Error(t, err)
	_, err = NewCachedChannelResolver(CachedChannelResolverOptions{Next: next, Cache: cache})
	require.Error(t, err)
}

func TestCachedChannelResolver_HitSkipsProvider(t *testing.T) {
	next := &providers.ChannelResolver{}
	r, err := NewCachedChannelResolver(CachedChannelResolverOptions{
		Next:   next,
		Cache:  data.NewMemoryCache(data.MemoryCacheConfig{}),
		TTL:    time.Hour,
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := r.ResolveChannel(ctx, "@veritasium")
	require.NoError(t, err)
	second, err := r.ResolveChannel(ctx, " Veritasium ")
	require.NoError(t, err)

	assert.Equal(t, model.Channel{ID: "UC-veritasium", Name: "veritasium"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"@veritasium"}, next.Calls())
}

func TestCachedChannelResolver_ErrorsAreNotCached(t *testing.T) {
	calls := 0
	next := &providers.ChannelResolver{
		ResolveFunc: func(context.Context, string) (model.Channel, error) {
			calls++
			return model.Channel{}, apperrors.EmptyResult("Channel not found")
		},
	}
	r, err := NewCachedChannelResolver(CachedChannelResolverOptions{
		Next:   next,
		Cache:  data.NewMemoryCache(data.MemoryCacheConfig{}),
		TTL:    time.Hour,
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	for range 2 {
		_, err = r.ResolveChannel(context.Background(), "@nobody")
		require.Error(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestCachedChannelResolver_CacheFailureFallsThrough(t *testing.T) {
	next := &providers.ChannelResolver{}
	r, err := NewCachedChannelResolver(CachedChannelResolverOptions{
		Next:   next,
		Cache:  failingCache{},
		TTL:    time.Hour,
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	ch, err := r.ResolveChannel(context.Background(), "@veritasium")
	require.NoError(t, err)
	assert.Equal(t, "UC-veritasium", ch.ID)
}

func TestCachedChannelResolver_DiscardsCorruptEntry(t *testing.T) {
	cache := data.NewMemoryCache(data.MemoryCacheConfig{})
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "channel:veritasium", []byte("not json"), 0))

	next := &providers.ChannelResolver{}
	r, err := NewCachedChannelResolver(CachedChannelResolverOptions{
		Next:   next,
		Cache:  cache,
		TTL:    time.Hour,
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	ch, err := r.ResolveChannel(ctx, "veritasium")
	require.NoError(t, err)
	assert.Equal(t, "UC-veritasium", ch.ID)
	assert.Len(t, next.Calls(), 1)

	raw, err := cache.Get(ctx, "channel:veritasium")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "UC-veritasium")
}
