package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/title-doctor/internal/domain/model"
)

// RedisJobRepo stores job records as JSON strings in Redis. Non-terminal jobs
// are also indexed in a sorted set scored by their last update so the reaper
// can find stale work.
type RedisJobRepo struct {
	client    redis.UniversalClient
	prefix    string
	activeKey string
}

// NewRedisJobRepo creates a Redis-backed job store. Keys are namespaced by prefix.
func NewRedisJobRepo(client redis.UniversalClient, prefix string) *RedisJobRepo {
	return &RedisJobRepo{
		client:    client,
		prefix:    prefix + "job:",
		activeKey: prefix + "jobs:active",
	}
}

func (r *RedisJobRepo) key(id string) string {
	return r.prefix + id
}

// Get loads a job record by id.
func (r *RedisJobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrJobIDRequired
	}

	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var j model.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &j, nil
}

// Set writes the full record and maintains the active index.
func (r *RedisJobRepo) Set(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	// Plain pipeline: the record and index keys may live in different cluster slots.
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(job.ID), data, 0)
		if job.IsTerminal() {
			pipe.ZRem(ctx, r.activeKey, job.ID)
		} else {
			pipe.ZAdd(ctx, r.activeKey, redis.Z{Score: float64(job.UpdatedAt.UnixMilli()), Member: job.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set job: %w", err)
	}
	return nil
}

// ListStale returns non-terminal jobs last updated before the cutoff, oldest first.
func (r *RedisJobRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	ids, err := r.client.ZRangeByScore(ctx, r.activeKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore: %w", err)
	}

	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		j, err := r.Get(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			// Index entry outlived its record.
			r.client.ZRem(ctx, r.activeKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if j.IsTerminal() {
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Health checks the health of the Redis connection.
func (r *RedisJobRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
