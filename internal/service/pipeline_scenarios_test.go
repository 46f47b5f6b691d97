package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/domain/model"
	"github.com/target/title-doctor/internal/domain/pipeline"
	apperrors "github.com/target/title-doctor/internal/errors"
)

func (h *pipelineHarness) submit(t *testing.T, channel string) string {
	t.Helper()
	res, err := h.submissions.Submit(context.Background(), model.SubmitRequest{Channel: channel, Email: "creator@example.com"})
	require.NoError(t, err)
	return res.JobID
}

func (h *pipelineHarness) job(t *testing.T, id string) *model.Job {
	t.Helper()
	j, err := h.states.Get(context.Background(), id)
	require.NoError(t, err)
	return j
}

func TestPipeline_HappyPath(t *testing.T) {
	h := newPipelineHarness(t)
	h.resolver.ResolveFunc = func(_ context.Context, ref string) (model.Channel, error) {
		assert.Equal(t, "@example", ref)
		return model.Channel{ID: "C1", Name: "Example"}, nil
	}
	h.mailer.SendFunc = func(context.Context, core.Email) (string, error) { return "E1", nil }

	id := h.submit(t, "@example")
	outcomes := h.drainQueue(t)

	assert.Equal(t, []pipeline.Topic{
		pipeline.TopicChannelResolved,
		pipeline.TopicContentFetched,
		pipeline.TopicTitlesGenerated,
		pipeline.TopicJobCompleted,
	}, topics(outcomes))

	j := h.job(t, id)
	assert.Equal(t, model.JobStatusCompleted, j.Status)
	assert.Equal(t, "E1", j.EmailID)
	assert.Equal(t, "C1", j.ChannelID)
	assert.Equal(t, "Example", j.ChannelName)
	assert.Len(t, j.Videos, 5)
	require.Len(t, j.ImprovedTitles, 5)
	assert.Equal(t, "Improved: "+j.Videos[0].Title, j.ImprovedTitles[0].Improved)
	require.NotNil(t, j.CompletedAt)
	assert.Nil(t, j.FailedAt)
	assert.Empty(t, j.Error)

	var stages []model.Stage
	for _, s := range j.Stages {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []model.Stage{
		model.StageResolveChannel,
		model.StageFetchContent,
		model.StageGenerateTitles,
		model.StageNotifySuccess,
	}, stages)

	sent := h.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "New Titles for Example", sent[0].Subject)
	assert.Equal(t, "creator@example.com", sent[0].To)
}

func TestPipeline_NoVideos(t *testing.T) {
	h := newPipelineHarness(t)
	h.videos.LatestFunc = func(context.Context, string, int) ([]model.Video, error) {
		return nil, nil
	}

	id := h.submit(t, "@quiet")
	outcomes := h.drainQueue(t)

	require.Len(t, outcomes, 2)
	failed, ok := outcomes[1].(pipeline.StageFailed)
	require.True(t, ok)
	assert.Equal(t, model.StageFetchContent, failed.Stage)
	assert.Equal(t, string(apperrors.ErrCodeEmptyResult), failed.Kind)

	j := h.job(t, id)
	assert.Equal(t, model.JobStatusFailed, j.Status)
	assert.Equal(t, "No videos found for this channel", j.Error)
	assert.Equal(t, model.StageFetchContent, j.FailedStage)
	assert.Equal(t, "email-1", j.NotificationEmailID)
	assert.Empty(t, j.NotificationError)
	require.NotNil(t, j.FailedAt)

	sent := h.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, FailureSubject(id), sent[0].Subject)
	assert.Contains(t, sent[0].Text, `"No videos found for this channel"`)
}

func TestPipeline_MissingTitleGeneratorKey(t *testing.T) {
	h := newPipelineHarness(t)
	h.titles.ImproveFunc = func(context.Context, string, []model.Video) ([]model.ImprovedTitle, error) {
		return nil, apperrors.MissingCredential("GEMINI_API_KEY")
	}

	id := h.submit(t, "@example")
	h.drainQueue(t)

	j := h.job(t, id)
	assert.Equal(t, model.JobStatusFailed, j.Status)
	assert.Equal(t, "Missing GEMINI_API_KEY", j.Error)
	assert.Equal(t, model.StageGenerateTitles, j.FailedStage)
	assert.Len(t, j.Videos, 5, "results of finished stages are kept")

	sent := h.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "failed to generate improved titles, please try again later")
}

func TestPipeline_FailureNotificationUndeliverable(t *testing.T) {
	h := newPipelineHarness(t)
	h.resolver.ResolveFunc = func(context.Context, string) (model.Channel, error) {
		return model.Channel{}, apperrors.Upstreamf("youtube search returned status 503")
	}
	h.mailer.SendFunc = func(context.Context, core.Email) (string, error) {
		return "", errors.New("mail provider unavailable")
	}

	id := h.submit(t, "@example")
	h.drainQueue(t)

	j := h.job(t, id)
	assert.Equal(t, model.JobStatusFailed, j.Status)
	assert.Equal(t, "youtube search returned status 503", j.Error)
	assert.Equal(t, "mail provider unavailable", j.NotificationError)
	assert.Empty(t, j.NotificationEmailID)
	require.NotNil(t, j.FailedAt)
	assert.Len(t, h.mailer.Sent(), 1)
}

func TestPipeline_ResultsMailFailure(t *testing.T) {
	h := newPipelineHarness(t)
	h.mailer.SendFunc = func(_ context.Context, email core.Email) (string, error) {
		if strings.HasPrefix(email.Subject, "New Titles") {
			return "", errors.New("rate limited")
		}
		return "failure-mail", nil
	}

	id := h.submit(t, "@example")
	h.drainQueue(t)

	j := h.job(t, id)
	assert.Equal(t, model.JobStatusFailed, j.Status)
	assert.Equal(t, model.StageNotifySuccess, j.FailedStage)
	assert.Equal(t, "rate limited", j.Error)
	assert.Equal(t, "failure-mail", j.NotificationEmailID)
	assert.Empty(t, j.EmailID)
	assert.Nil(t, j.CompletedAt)
}

func TestFailureAggregator_DuplicateEventIsIgnored(t *testing.T) {
	h := newPipelineHarness(t)
	h.videos.LatestFunc = func(context.Context, string, int) ([]model.Video, error) {
		return nil, nil
	}

	id := h.submit(t, "@quiet")
	outcomes := h.drainQueue(t)
	failed := outcomes[len(outcomes)-1].(pipeline.StageFailed)
	before := h.job(t, id)

	h.clock.Advance(1)
	out, err := h.aggregator.Handle(context.Background(), failed)
	require.NoError(t, err)
	assert.Nil(t, out)

	after := h.job(t, id)
	assert.Equal(t, before, after)
	assert.Len(t, h.mailer.Sent(), 1)
}

func TestFailureAggregator_AfterCompletionIsDiscarded(t *testing.T) {
	h := newPipelineHarness(t)

	id := h.submit(t, "@example")
	h.drainQueue(t)
	require.Equal(t, model.JobStatusCompleted, h.job(t, id).Status)

	out, err := h.aggregator.Handle(context.Background(), pipeline.StageFailed{
		JobID:         id,
		NotifyAddress: "creator@example.com",
		Stage:         model.StageGenerateTitles,
		Error:         "late worker crash",
	})
	require.NoError(t, err)
	assert.Nil(t, out)

	j := h.job(t, id)
	assert.Equal(t, model.JobStatusCompleted, j.Status)
	assert.Nil(t, j.FailedAt)
	assert.Empty(t, j.Error)
	assert.Equal(t, []string{"generate-titles: late worker crash"}, j.DiscardedErrors)
	assert.Len(t, h.mailer.Sent(), 1, "only the results mail was sent")
}

func TestFailureAggregator_DropsMalformedAndUnknown(t *testing.T) {
	h := newPipelineHarness(t)
	ctx := context.Background()

	for _, msg := range []pipeline.StageFailed{
		{NotifyAddress: "creator@example.com", Stage: model.StageFetchContent, Error: "boom"},
		{JobID: "job-1", Stage: model.StageFetchContent, Error: "boom"},
		{JobID: "missing", NotifyAddress: "creator@example.com", Stage: model.StageFetchContent, Error: "boom"},
	} {
		out, err := h.aggregator.Handle(ctx, msg)
		require.NoError(t, err)
		assert.Nil(t, out)
	}
	assert.Empty(t, h.mailer.Sent())
}

func TestPipeline_InvalidSubmissionPersistsNothing(t *testing.T) {
	h := newPipelineHarness(t)

	_, err := h.submissions.Submit(context.Background(), model.SubmitRequest{Channel: "@example"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, h.queue.Len())

	stale, err := h.repo.ListStale(context.Background(), h.clock.Now().Add(1), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestStages_StaleDeliveryIsDropped(t *testing.T) {
	h := newPipelineHarness(t)

	id := h.submit(t, "@example")
	h.drainQueue(t)
	require.Len(t, h.resolver.Calls(), 1)

	// Redelivery of the first message after the job finished.
	outcomes := h.drive(t, pipeline.JobSubmitted{JobID: id, ChannelRef: "@example", NotifyAddress: "creator@example.com"})
	assert.Empty(t, outcomes)
	assert.Len(t, h.resolver.Calls(), 1)
	assert.Equal(t, model.JobStatusCompleted, h.job(t, id).Status)
}

func TestStages_MissingJobIsDropped(t *testing.T) {
	h := newPipelineHarness(t)

	outcomes := h.drive(t, pipeline.JobSubmitted{JobID: "missing", ChannelRef: "@example", NotifyAddress: "creator@example.com"})
	assert.Empty(t, outcomes)
	assert.Empty(t, h.resolver.Calls())
}

func TestStages_TimeoutIsClassified(t *testing.T) {
	h := newPipelineHarness(t)
	h.resolver.ResolveFunc = func(context.Context, string) (model.Channel, error) {
		return model.Channel{}, fmt.Errorf("youtube search: %w", context.DeadlineExceeded)
	}

	id := h.submit(t, "@example")
	outcomes := h.drainQueue(t)

	require.NotEmpty(t, outcomes)
	failed, ok := outcomes[0].(pipeline.StageFailed)
	require.True(t, ok)
	assert.Equal(t, "timeout", failed.Kind)
	assert.Empty(t, failed.UserMessage)
	assert.Equal(t, model.JobStatusFailed, h.job(t, id).Status)
}

func TestStages_TitleCountMismatch(t *testing.T) {
	h := newPipelineHarness(t)
	h.titles.ImproveFunc = func(_ context.Context, _ string, videos []model.Video) ([]model.ImprovedTitle, error) {
		return []model.ImprovedTitle{{Original: videos[0].Title, Improved: "only one"}}, nil
	}

	id := h.submit(t, "@example")
	h.drainQueue(t)

	j := h.job(t, id)
	assert.Equal(t, model.JobStatusFailed, j.Status)
	assert.Equal(t, "expected 5 improved titles, got 1", j.Error)
	assert.Empty(t, j.ImprovedTitles)
}

func TestClassifyStageError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     string
		userText string
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), "timeout", ""},
		{"canceled", context.Canceled, "canceled", ""},
		{"empty result", apperrors.EmptyResult("No videos found for this channel"), "empty_result", "No videos found for this channel"},
		{"configuration", apperrors.MissingCredential("RESEND_API_KEY"), "configuration", ""},
		{"upstream", apperrors.Upstreamf("status 500"), "upstream", ""},
		{"plain", errors.New("boom"), "internal", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, userText := ClassifyStageError(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.userText, userText)
		})
	}
}
