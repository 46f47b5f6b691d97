package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/domain/model"
)

func testCommandContext(cfg config.AppConfig) (*commandContext, *bytes.Buffer) {
	var out bytes.Buffer
	return &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
		Out:    &out,
	}, &out
}

func TestPrintUsageListsCommandsSorted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))

	out := buf.String()
	assert.Contains(t, out, "Usage: titledoctor-admin <command> [flags]")
	for name := range commands() {
		assert.Contains(t, out, name)
	}
	assert.Less(t, strings.Index(out, "get-job"), strings.Index(out, "reap"))
}

func TestPrintJobIncludesFailureDetails(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := &model.Job{
		ID:                "job-123",
		ChannelRef:        "@example",
		NotifyAddress:     "me@example.com",
		Status:            model.JobStatusFailed,
		Error:             "No videos found for this channel",
		FailedStage:       model.StageFetchContent,
		NotificationError: "resend 422: validation_error",
		DiscardedErrors:   []string{"generate-titles: late worker crash"},
		CreatedAt:         created,
		UpdatedAt:         created.Add(time.Minute),
		Stages:            []model.StageRecord{{Stage: model.StageResolveChannel, CompletedAt: created}},
	}

	var buf bytes.Buffer
	require.NoError(t, printJob(&buf, job))

	out := buf.String()
	assert.Contains(t, out, "job-123")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "No videos found for this channel")
	assert.Contains(t, out, "fetch-content")
	assert.Contains(t, out, "resend 422: validation_error")
	assert.Contains(t, out, "late worker crash")
	assert.Contains(t, out, "Stage resolve-channel:")
}

func TestPrintStaleJobs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var empty bytes.Buffer
	require.NoError(t, printStaleJobs(&empty, nil, now))
	assert.Equal(t, "No stale jobs.\n", empty.String())

	var buf bytes.Buffer
	jobs := []*model.Job{{
		ID:         "job-1",
		Status:     model.JobStatusGeneratingContent,
		ChannelRef: "example",
		UpdatedAt:  now.Add(-20 * time.Minute),
	}}
	require.NoError(t, printStaleJobs(&buf, jobs, now))
	assert.Contains(t, buf.String(), "JOB ID")
	assert.Contains(t, buf.String(), "generating-content")
	assert.Contains(t, buf.String(), "20m0s")
}

func TestParseGetJobFlags(t *testing.T) {
	opts, err := parseGetJobFlags([]string{"--json", "job-9"})
	require.NoError(t, err)
	assert.True(t, opts.RawJSON)
	assert.Equal(t, "job-9", opts.JobID)

	_, err = parseGetJobFlags(nil)
	require.Error(t, err)
}

func TestParseStaleFlags(t *testing.T) {
	defaults := config.ReaperConfig{StaleAfter: 15 * time.Minute, BatchSize: 100}

	opts, err := parseStaleFlags("list-stale", nil, defaults)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, opts.OlderThan)
	assert.Equal(t, 100, opts.Limit)

	opts, err = parseStaleFlags("reap", []string{"--older-than", "1h", "--limit", "5"}, defaults)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, opts.OlderThan)
	assert.Equal(t, 5, opts.Limit)

	_, err = parseStaleFlags("reap", []string{"--limit", "0"}, defaults)
	require.Error(t, err)
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	_, err = parseMigrateFlags([]string{"--timeout", "0s"})
	require.Error(t, err)
}

func TestCommandsRejectPrivateBackends(t *testing.T) {
	cfg := config.AppConfig{Store: config.StoreConfig{Backend: config.StoreBackendMemory, Queue: config.QueueBackendMemory}}

	tests := []struct {
		name string
		run  commandFn
		args []string
	}{
		{name: "get-job", run: runGetJob, args: []string{"job-1"}},
		{name: "list-stale", run: runListStale},
		{name: "reap", run: runReap},
		{name: "queue-depth", run: runQueueDepth},
		{name: "requeue-inflight", run: runRequeueInflight},
		{name: "migrate", run: runMigrations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdCtx, _ := testCommandContext(cfg)
			require.Error(t, tt.run(cmdCtx, tt.args))
		})
	}
}
