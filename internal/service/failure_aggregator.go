package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainjob "github.com/target/title-doctor/internal/domain/job"
	"github.com/target/title-doctor/internal/domain/model"
	"github.com/target/title-doctor/internal/domain/pipeline"
	apperrors "github.com/target/title-doctor/internal/errors"
	"github.com/target/title-doctor/internal/observability/notify"
	"github.com/target/title-doctor/internal/service/failurenotifier"
)

// failureSendTimeout bounds the failure mail so finalization keeps time to run.
const failureSendTimeout = 30 * time.Second

// FailureAggregatorOptions groups dependencies for FailureAggregator.
type FailureAggregatorOptions struct {
	States        *JobStateService         // Required: job state owner
	Notifications *NotificationService     // Required: failure mail
	Alerts        *failurenotifier.Service // Optional: ops alert fan-out
	Logger        *slog.Logger             // Optional: structured logger
}

// FailureAggregator is the single subscriber for StageFailed. It notifies
// the user once and finalizes the job as failed.
type FailureAggregator struct {
	states        *JobStateService
	notifications *NotificationService
	alerts        *failurenotifier.Service
	logger        *slog.Logger
}

// NewFailureAggregator constructs a new FailureAggregator.
func NewFailureAggregator(opts FailureAggregatorOptions) (*FailureAggregator, error) {
	if opts.States == nil {
		return nil, errors.New("JobStateService is required")
	}
	if opts.Notifications == nil {
		return nil, errors.New("NotificationService is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FailureAggregator{
		states:        opts.States,
		notifications: opts.Notifications,
		alerts:        opts.Alerts,
		logger:        logger.With("component", "failure_aggregator"),
	}, nil
}

// Handler returns the aggregator as a pipeline handler.
func (a *FailureAggregator) Handler() pipeline.Handler {
	return pipeline.Typed(a.Handle)
}

// Handle finalizes the job named by msg. Duplicate events and events for
// completed jobs never send mail or change the status.
func (a *FailureAggregator) Handle(ctx context.Context, msg pipeline.StageFailed) (pipeline.Message, error) {
	logger := a.logger.With("job_id", msg.JobID, "stage", msg.Stage)

	if msg.JobID == "" || msg.NotifyAddress == "" {
		logger.ErrorContext(ctx, "dropping malformed failure event: job id and email are required")
		return nil, nil
	}

	j, err := a.states.Get(ctx, msg.JobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			logger.WarnContext(ctx, "job record missing, dropping failure event")
			return nil, nil
		}
		return nil, fmt.Errorf("load failed job: %w", err)
	}

	switch {
	case j.FailedAt != nil:
		logger.DebugContext(ctx, "job already finalized, ignoring duplicate failure event")
		return nil, nil
	case j.Status == model.JobStatusCompleted:
		return nil, a.discard(ctx, logger, msg)
	}

	sendCtx, cancelSend := context.WithTimeout(ctx, failureSendTimeout)
	emailID, notifyErr := a.notifications.SendFailure(sendCtx, msg.NotifyAddress, msg.JobID, FailureMessage(msg.Stage, msg.UserMessage))
	cancelSend()
	if notifyErr != nil {
		logger.WarnContext(ctx, "failure notification not delivered", "error", notifyErr)
	}

	// The send may have used up the handler deadline; finalization must still run.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	failedAt := a.states.Now()
	final, err := a.states.Transition(writeCtx, msg.JobID, domainjob.Transition{
		Status: model.JobStatusFailed,
		Merge: func(j *model.Job) {
			j.Error = msg.Error
			j.FailedStage = msg.Stage
			j.FailedAt = &failedAt
			if notifyErr != nil {
				j.NotificationError = notifyErr.Error()
			} else {
				j.NotificationEmailID = emailID
			}
		},
	})
	if err != nil {
		if errors.Is(err, domainjob.ErrInvalidTransition) {
			logger.WarnContext(ctx, "job can no longer be failed", "reason", err)
			return nil, nil
		}
		return nil, fmt.Errorf("finalize failed job: %w", err)
	}

	logger.InfoContext(ctx, "job failed", "error", msg.Error, "kind", msg.Kind)
	a.alert(writeCtx, final, msg)
	return nil, nil
}

// discard records a failure that arrived after the job completed.
func (a *FailureAggregator) discard(ctx context.Context, logger *slog.Logger, msg pipeline.StageFailed) error {
	_, err := a.states.Transition(ctx, msg.JobID, domainjob.Transition{
		Merge: func(j *model.Job) {
			j.DiscardedErrors = append(j.DiscardedErrors, fmt.Sprintf("%s: %s", msg.Stage, msg.Error))
		},
	})
	if err != nil {
		return fmt.Errorf("record discarded failure: %w", err)
	}
	logger.InfoContext(ctx, "failure arrived after completion, recorded as discarded", "error", msg.Error)
	return nil
}

func (a *FailureAggregator) alert(ctx context.Context, j *model.Job, msg pipeline.StageFailed) {
	if a.alerts == nil || !a.alerts.Enabled() {
		return
	}

	payload := notify.JobFailurePayload{
		JobID:             j.ID,
		Stage:             string(msg.Stage),
		ChannelRef:        j.ChannelRef,
		ChannelName:       j.ChannelName,
		Error:             msg.Error,
		ErrorClass:        msg.Kind,
		NotificationError: j.NotificationError,
		OccurredAt:        a.states.Now(),
	}
	if j.FailedAt != nil {
		payload.OccurredAt = *j.FailedAt
	}
	a.alerts.NotifyJobFailure(ctx, payload)
}
