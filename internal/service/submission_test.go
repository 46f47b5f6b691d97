package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/title-doctor/internal/data"
	"github.com/target/title-doctor/internal/domain/model"
	"github.com/target/title-doctor/internal/domain/pipeline"
	apperrors "github.com/target/title-doctor/internal/errors"
	"github.com/target/title-doctor/internal/mocks"
)

func TestSubmissionService_Submit(t *testing.T) {
	h := newPipelineHarness(t)
	ctx := context.Background()

	res, err := h.submissions.Submit(ctx, model.SubmitRequest{Channel: "  @veritasium ", Email: " creator@example.com"})
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.True(t, res.Success)
	assert.Equal(t, SubmittedMessage, res.Message)
	assert.Equal(t, model.JobStatusPending, res.Status)

	j, err := h.states.Get(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "@veritasium", j.ChannelRef)
	assert.Equal(t, "creator@example.com", j.NotifyAddress)

	require.Equal(t, 1, h.queue.Len())
	d, err := h.queue.Claim(ctx, 0)
	require.NoError(t, err)
	msg, err := pipeline.Decode(d.Envelope)
	require.NoError(t, err)
	assert.Equal(t, pipeline.JobSubmitted{
		JobID:         res.JobID,
		ChannelRef:    "@veritasium",
		NotifyAddress: "creator@example.com",
	}, msg)
}

func TestSubmissionService_SubmitRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		req     model.SubmitRequest
		message string
		field   string
	}{
		{
			name:    "missing channel",
			req:     model.SubmitRequest{Email: "creator@example.com"},
			message: "Missing required fields: channel and email",
		},
		{
			name:    "missing email",
			req:     model.SubmitRequest{Channel: "@veritasium"},
			message: "Missing required fields: channel and email",
		},
		{
			name:    "whitespace only",
			req:     model.SubmitRequest{Channel: "   ", Email: "  "},
			message: "Missing required fields: channel and email",
		},
		{
			name:    "invalid email",
			req:     model.SubmitRequest{Channel: "@veritasium", Email: "not-an-email"},
			message: "Invalid email address",
			field:   "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No expectations: invalid input must not touch the store or the queue.
			repo := mocks.NewMockJobRepository(ctrl)
			queue := mocks.NewMockMessageQueue(ctrl)

			states, err := NewJobStateService(JobStateServiceOptions{Repo: repo, Logger: discardLogger()})
			require.NoError(t, err)
			svc, err := NewSubmissionService(SubmissionServiceOptions{States: states, Queue: queue, Logger: discardLogger()})
			require.NoError(t, err)

			res, err := svc.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.message, err.Error())
			assert.Equal(t, tt.field, apperrors.GetField(err))
		})
	}
}

func TestSubmissionService_PublishFailureFailsJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := data.NewMemoryJobRepo()
	queue := mocks.NewMockMessageQueue(ctrl)
	queue.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker unavailable"))

	states, err := NewJobStateService(JobStateServiceOptions{Repo: repo, Logger: discardLogger()})
	require.NoError(t, err)
	svc, err := NewSubmissionService(SubmissionServiceOptions{States: states, Queue: queue, Logger: discardLogger()})
	require.NoError(t, err)

	res, err := svc.Submit(context.Background(), model.SubmitRequest{Channel: "@veritasium", Email: "creator@example.com"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(err))

	stale, err := repo.ListStale(context.Background(), states.Now().Add(1), 10)
	require.NoError(t, err)
	assert.Empty(t, stale, "unpublished job must not be left pending")
}

func TestSubmissionService_CreateFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	queue := mocks.NewMockMessageQueue(ctrl)
	repo.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	states, err := NewJobStateService(JobStateServiceOptions{Repo: repo, Logger: discardLogger()})
	require.NoError(t, err)
	svc, err := NewSubmissionService(SubmissionServiceOptions{States: states, Queue: queue, Logger: discardLogger()})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), model.SubmitRequest{Channel: "@veritasium", Email: "creator@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
