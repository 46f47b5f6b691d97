package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/title-doctor/internal/core"
	domainjob "github.com/target/title-doctor/internal/domain/job"
	"github.com/target/title-doctor/internal/domain/model"
	"github.com/target/title-doctor/internal/domain/pipeline"
	apperrors "github.com/target/title-doctor/internal/errors"
)

// SubmittedMessage is the acknowledgement text returned for accepted jobs.
const SubmittedMessage = "Job submitted successfully and Request has been queued."

// SubmissionServiceOptions groups dependencies for SubmissionService.
type SubmissionServiceOptions struct {
	States *JobStateService  // Required: job state owner
	Queue  core.MessageQueue // Required: pipeline queue
	Logger *slog.Logger      // Optional: structured logger
}

// SubmissionService validates submissions, creates the job record and
// starts the pipeline.
type SubmissionService struct {
	states *JobStateService
	queue  core.MessageQueue
	logger *slog.Logger
}

// NewSubmissionService constructs a new SubmissionService.
func NewSubmissionService(opts SubmissionServiceOptions) (*SubmissionService, error) {
	if opts.States == nil {
		return nil, errors.New("JobStateService is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("MessageQueue is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SubmissionService{
		states: opts.States,
		queue:  opts.Queue,
		logger: logger.With("component", "submission"),
	}, nil
}

// Submit validates req, persists a pending job and publishes JobSubmitted.
// Invalid input returns a validation AppError and persists nothing.
func (s *SubmissionService) Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	req.Normalize()
	if len(req.MissingFields()) > 0 {
		return nil, apperrors.Validation("Missing required fields: channel and email")
	}
	if !req.ValidEmail() {
		return nil, apperrors.ValidationField("email", "Invalid email address")
	}

	j, err := s.states.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	env, err := pipeline.Encode(pipeline.JobSubmitted{
		JobID:         j.ID,
		ChannelRef:    j.ChannelRef,
		NotifyAddress: j.NotifyAddress,
	})
	if err == nil {
		err = s.queue.Publish(ctx, env)
	}
	if err != nil {
		s.failUnpublished(ctx, j.ID, err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to queue job")
	}

	s.logger.InfoContext(ctx, "job submitted", "job_id", j.ID, "channel", j.ChannelRef)
	return &model.SubmitResult{
		JobID:    j.ID,
		Accepted: true,
		Success:  true,
		Message:  SubmittedMessage,
		Status:   j.Status,
	}, nil
}

func (s *SubmissionService) failUnpublished(ctx context.Context, jobID string, cause error) {
	reason := fmt.Sprintf("failed to queue job: %v", cause)
	failedAt := s.states.Now()
	t := domainjob.Failed(model.StageSubmit, reason)
	merge := t.Merge
	t.Merge = func(j *model.Job) {
		merge(j)
		j.FailedAt = &failedAt
	}
	if _, err := s.states.Transition(ctx, jobID, t); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark unpublished job as failed", "job_id", jobID, "error", err)
	}
}
