package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/model"
)

const channelCacheKeyPrefix = "channel:"

var _ core.ChannelResolver = (*CachedChannelResolver)(nil)

// CachedChannelResolverOptions groups dependencies for CachedChannelResolver.
type CachedChannelResolverOptions struct {
	Next   core.ChannelResolver // Required: resolver consulted on a miss
	Cache  core.CacheRepository // Required: resolution cache
	TTL    time.Duration        // Required: lifetime of a cached resolution
	Logger *slog.Logger         // Optional: structured logger
}

// CachedChannelResolver remembers successful channel resolutions so repeated
// submissions for the same channel do not spend search quota. Failed
// resolutions are never cached, and cache errors fall through to Next.
type CachedChannelResolver struct {
	next   core.ChannelResolver
	cache  core.CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedChannelResolver constructs a CachedChannelResolver.
func NewCachedChannelResolver(opts CachedChannelResolverOptions) (*CachedChannelResolver, error) {
	if opts.Next == nil {
		return nil, errors.New("next resolver is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedChannelResolver{
		next:   opts.Next,
		cache:  opts.Cache,
		ttl:    opts.TTL,
		logger: logger.With("component", "channel_cache"),
	}, nil
}

// ResolveChannel returns a cached resolution for ref or resolves and caches it.
func (r *CachedChannelResolver) ResolveChannel(ctx context.Context, ref string) (model.Channel, error) {
	key := channelCacheKey(ref)
	if key == "" {
		return r.next.ResolveChannel(ctx, ref)
	}

	if ch, ok := r.lookup(ctx, key); ok {
		return ch, nil
	}

	ch, err := r.next.ResolveChannel(ctx, ref)
	if err != nil {
		return model.Channel{}, err
	}

	raw, err := json.Marshal(ch)
	if err == nil {
		err = r.cache.Set(ctx, key, raw, r.ttl)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "failed to cache channel resolution", "key", key, "error", err)
	}
	return ch, nil
}

func (r *CachedChannelResolver) lookup(ctx context.Context, key string) (model.Channel, bool) {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "channel cache read failed", "key", key, "error", err)
		return model.Channel{}, false
	}
	if raw == nil {
		return model.Channel{}, false
	}

	var ch model.Channel
	if err := json.Unmarshal(raw, &ch); err != nil || ch.ID == "" {
		r.logger.WarnContext(ctx, "discarding unreadable channel cache entry", "key", key)
		_, _ = r.cache.Delete(ctx, key)
		return model.Channel{}, false
	}
	return ch, true
}

// channelCacheKey normalises a channel reference the way the resolver does,
// so "@Veritasium" and "veritasium" share an entry.
func channelCacheKey(ref string) string {
	ref = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ref), "@"))
	if ref == "" {
		return ""
	}
	return channelCacheKeyPrefix + ref
}
