package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisDBLockKey = "titledoctor:testutil:db_lock:%d"

// redisCandidates lists addresses probed in order; REDIS_ADDR overrides them.
func redisCandidates() []string {
	if addr := envOr("REDIS_ADDR", ""); addr != "" {
		return []string{addr}
	}
	return []string{"redis:6379", "localhost:6379", "localhost:56379"}
}

func pingRedis(addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// reserveRedisDB picks a logical DB for this test. TEST_REDIS_DB pins one;
// otherwise a lock key in DB 0 reserves one of 1..15 so parallel packages do
// not flush each other's data.
func reserveRedisDB(t TB, meta *redis.Client) int {
	if v := envOr("TEST_REDIS_DB", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for n := 1; n <= 15; n++ {
		key := fmt.Sprintf(redisDBLockKey, n)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ok, err := meta.SetNX(ctx, key, owner, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := meta.Del(ctx, key).Err(); err != nil {
				t.Logf("release redis db %d: %v", n, err)
			}
		})
		return n
	}
	return 1
}

// SetupTestRedis returns a client on an empty, reserved Redis DB.
func SetupTestRedis(t TB) *redis.Client {
	t.Helper()

	var (
		meta    *redis.Client
		lastErr error
		addr    string
	)
	for _, addr = range redisCandidates() {
		if meta, lastErr = pingRedis(addr, 0); lastErr == nil {
			break
		}
	}
	if meta == nil {
		unavailable(t, "TEST_REQUIRE_REDIS", "redis not available for testing: %v", lastErr)
		return nil
	}
	// Registered first so it runs after the lock release.
	t.Cleanup(func() { closeQuietly(t, "redis meta client", meta) })

	db := reserveRedisDB(t, meta)
	client, err := pingRedis(addr, db)
	if err != nil {
		t.Fatalf("open redis db %d at %s: %v", db, addr, err)
	}
	t.Cleanup(func() { closeQuietly(t, "redis client", client) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis db %d: %v", db, err)
	}
	return client
}
