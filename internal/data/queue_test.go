package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/pipeline"
	"github.com/target/title-doctor/internal/testutil"
)

func mustEnvelope(t *testing.T, jobID string) pipeline.Envelope {
	t.Helper()
	env, err := pipeline.Encode(pipeline.JobSubmitted{
		JobID:         jobID,
		ChannelRef:    "@veritasium",
		NotifyAddress: "creator@example.com",
	})
	require.NoError(t, err)
	return env
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, mustEnvelope(t, "job-1")))
	require.NoError(t, q.Publish(ctx, mustEnvelope(t, "job-2")))
	assert.Equal(t, 2, q.Len())

	first, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-1", first.Envelope.JobID)
	assert.NotEmpty(t, first.Envelope.ID)
	assert.Equal(t, first.Envelope.ID, first.Receipt)

	second, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-2", second.Envelope.JobID)

	require.NoError(t, q.Ack(ctx, first))
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueue_ClaimTimesOut(t *testing.T) {
	q := NewMemoryQueue()

	_, err := q.Claim(context.Background(), 20*time.Millisecond)
	require.ErrorIs(t, err, core.ErrNoMessage)
}

func TestMemoryQueue_ClaimHonorsContext(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Claim(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueue_ClaimWakesOnPublish(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	got := make(chan *core.Delivery, 1)
	go func() {
		d, err := q.Claim(ctx, 5*time.Second)
		if err == nil {
			got <- d
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Publish(ctx, mustEnvelope(t, "job-late")))

	select {
	case d := <-got:
		assert.Equal(t, "job-late", d.Envelope.JobID)
	case <-time.After(2 * time.Second):
		t.Fatal("claim did not wake on publish")
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, mustEnvelope(t, "job-1")))

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	q.Close()

	// Queued work is still drained after Close.
	d, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-1", d.Envelope.JobID)

	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Claim(ctx, 5*time.Second)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.ErrorIs(t, err, ErrQueueClosed)
	}

	assert.ErrorIs(t, q.Publish(ctx, mustEnvelope(t, "job-2")), ErrQueueClosed)
}

func TestRedisQueue_ClaimAckRequeue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	q := NewRedisQueue(client, "test:")
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, mustEnvelope(t, "job-1")))
	require.NoError(t, q.Publish(ctx, mustEnvelope(t, "job-2")))

	d1, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-1", d1.Envelope.JobID)

	msg, err := pipeline.Decode(d1.Envelope)
	require.NoError(t, err)
	assert.Equal(t, pipeline.TopicJobSubmitted, msg.Topic())

	d2, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-2", d2.Envelope.JobID)

	queued, inflight, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), queued)
	assert.Equal(t, int64(2), inflight)

	require.NoError(t, q.Ack(ctx, d1))

	// d2 was never acked, as if its worker died.
	moved, err := q.RequeueInflight(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	again, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-2", again.Envelope.JobID)
	assert.Equal(t, d2.Envelope.ID, again.Envelope.ID)
	require.NoError(t, q.Ack(ctx, again))

	_, err = q.Claim(ctx, time.Second)
	require.ErrorIs(t, err, core.ErrNoMessage)
}

func TestRedisQueue_ClaimDropsPoisonMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	q := NewRedisQueue(client, "test:")
	ctx := context.Background()

	require.NoError(t, client.LPush(ctx, "test:{pipeline}:queue", "not-json").Err())

	_, err := q.Claim(ctx, time.Second)
	require.Error(t, err)

	_, inflight, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, inflight)
}
