package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/pipeline"
)

// RedisQueue is a reliable queue built on two Redis lists.
//
// Publish: LPUSH queue
// Claim:   BRPOPLPUSH queue -> processing
// Ack:     LREM processing
//
// Messages claimed by a worker that dies before Ack stay in the processing
// list until RequeueInflight moves them back, giving at-least-once delivery.
type RedisQueue struct {
	client        redis.UniversalClient
	queueKey      string
	processingKey string
}

// NewRedisQueue creates a queue whose keys are namespaced by prefix.
// The keys share a hash tag so the list moves work on Redis Cluster.
func NewRedisQueue(client redis.UniversalClient, prefix string) *RedisQueue {
	return &RedisQueue{
		client:        client,
		queueKey:      prefix + "{pipeline}:queue",
		processingKey: prefix + "{pipeline}:processing",
	}
}

// Publish pushes env onto the queue.
func (q *RedisQueue) Publish(ctx context.Context, env pipeline.Envelope) error {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := q.client.LPush(ctx, q.queueKey, raw).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Claim moves the oldest message to the processing list, blocking up to timeout.
func (q *RedisQueue) Claim(ctx context.Context, timeout time.Duration) (*core.Delivery, error) {
	raw, err := q.client.BRPopLPush(ctx, q.queueKey, q.processingKey, timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNoMessage
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("redis brpoplpush: %w", err)
	}

	var env pipeline.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Poison message: drop it so it cannot block the queue.
		_ = q.client.LRem(ctx, q.processingKey, 1, raw).Err()
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &core.Delivery{Envelope: env, Receipt: raw}, nil
}

// Ack removes a handled message from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, d *core.Delivery) error {
	if d == nil {
		return nil
	}
	if err := q.client.LRem(ctx, q.processingKey, 1, d.Receipt).Err(); err != nil {
		return fmt.Errorf("redis lrem: %w", err)
	}
	return nil
}

// RequeueInflight moves up to limit messages from processing back to the queue.
// Call it at startup before any worker in the deployment claims messages.
func (q *RedisQueue) RequeueInflight(ctx context.Context, limit int64) (int64, error) {
	var moved int64
	for moved < limit {
		_, err := q.client.RPopLPush(ctx, q.processingKey, q.queueKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("redis rpoplpush: %w", err)
		}
		moved++
	}
	return moved, nil
}

// Depth returns the number of queued and in-flight messages.
func (q *RedisQueue) Depth(ctx context.Context) (queued, inflight int64, err error) {
	queued, err = q.client.LLen(ctx, q.queueKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis llen: %w", err)
	}
	inflight, err = q.client.LLen(ctx, q.processingKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis llen: %w", err)
	}
	return queued, inflight, nil
}
