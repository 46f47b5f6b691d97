package reaper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/data"
	"github.com/target/title-doctor/internal/domain/model"
	"github.com/target/title-doctor/internal/domain/pipeline"
	"github.com/target/title-doctor/internal/testutil"
)

func TestNewRunner_Validation(t *testing.T) {
	cfg := config.ReaperConfig{Interval: time.Minute, StaleAfter: time.Minute, BatchSize: 10}

	_, err := NewRunner(RunnerOptions{Queue: data.NewMemoryQueue(), Config: cfg})
	require.Error(t, err)

	_, err = NewRunner(RunnerOptions{Repo: data.NewMemoryJobRepo(), Config: cfg})
	require.Error(t, err)

	_, err = NewRunner(RunnerOptions{Repo: data.NewMemoryJobRepo(), Queue: data.NewMemoryQueue()})
	require.Error(t, err, "zero interval is rejected")
}

func TestRunner_ReapsOnStart(t *testing.T) {
	repo := data.NewMemoryJobRepo()
	queue := data.NewMemoryQueue()
	stale := testutil.NewJob(testutil.WithStatus(model.JobStatusGeneratingContent))
	require.NoError(t, repo.Set(context.Background(), stale))

	r, err := NewRunner(RunnerOptions{
		Repo:   repo,
		Queue:  queue,
		Config: config.ReaperConfig{Interval: 50 * time.Millisecond, StaleAfter: time.Minute, BatchSize: 10},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	d, err := queue.Claim(context.Background(), 5*time.Second)
	cancel()
	require.NoError(t, err)
	require.NoError(t, <-done)

	msg, err := pipeline.Decode(d.Envelope)
	require.NoError(t, err)
	failed, ok := msg.(pipeline.StageFailed)
	require.True(t, ok)
	assert.Equal(t, stale.ID, failed.JobID)
	assert.Equal(t, model.StageGenerateTitles, failed.Stage)
}
