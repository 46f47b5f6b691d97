package bootstrap

import (
	"errors"
	"fmt"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/data"
)

// Stores are the job store, pipeline queue and provider cache selected by configuration.
type Stores struct {
	Jobs  core.JobRepository
	Queue core.MessageQueue
	// Cache is shared through Redis when a connection exists, otherwise in process.
	Cache core.CacheRepository
}

// BuildStores constructs the job store and queue over the connected infrastructure.
func BuildStores(cfg *config.AppConfig, infra *Infrastructure) (Stores, error) {
	if cfg == nil {
		return Stores{}, errors.New("config is required")
	}
	if infra == nil {
		infra = &Infrastructure{}
	}

	var stores Stores
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		stores.Jobs = data.NewMemoryJobRepo()
	case config.StoreBackendRedis:
		if infra.Redis == nil {
			return Stores{}, errors.New("redis job store requires a redis connection")
		}
		stores.Jobs = data.NewRedisJobRepo(infra.Redis, cfg.Redis.KeyPrefix)
	case config.StoreBackendPostgres:
		if infra.Postgres == nil {
			return Stores{}, errors.New("postgres job store requires a database connection")
		}
		stores.Jobs = data.NewPostgresJobRepo(infra.Postgres)
	case config.StoreBackendSQLite:
		if infra.SQLite == nil {
			return Stores{}, errors.New("sqlite job store requires an open database")
		}
		stores.Jobs = data.NewSQLiteJobRepo(infra.SQLite)
	default:
		return Stores{}, fmt.Errorf("unknown job store backend %q", cfg.Store.Backend)
	}

	switch cfg.Store.Queue {
	case config.QueueBackendMemory:
		stores.Queue = data.NewMemoryQueue()
	case config.QueueBackendRedis:
		if infra.Redis == nil {
			return Stores{}, errors.New("redis queue requires a redis connection")
		}
		stores.Queue = data.NewRedisQueue(infra.Redis, cfg.Redis.KeyPrefix)
	default:
		return Stores{}, fmt.Errorf("unknown queue backend %q", cfg.Store.Queue)
	}

	if infra.Redis != nil {
		stores.Cache = data.NewRedisCacheRepo(infra.Redis, cfg.Redis.KeyPrefix)
	} else {
		stores.Cache = data.NewMemoryCache(data.MemoryCacheConfig{Capacity: cfg.YouTube.ChannelCacheSize})
	}

	return stores, nil
}
