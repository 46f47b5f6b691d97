package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/title-doctor/internal/core"
	domainjob "github.com/target/title-doctor/internal/domain/job"
	"github.com/target/title-doctor/internal/domain/model"
	"github.com/target/title-doctor/internal/domain/pipeline"
	apperrors "github.com/target/title-doctor/internal/errors"
)

const (
	defaultMaxVideos    = 5
	failureWriteTimeout = 10 * time.Second

	noVideosMessage = "No videos found for this channel"
)

// Providers groups the external ports the pipeline stages call.
type Providers struct {
	Channels core.ChannelResolver
	Videos   core.VideoLister
	Titles   core.TitleGenerator
}

// StageServiceOptions groups dependencies for StageService.
type StageServiceOptions struct {
	States        *JobStateService     // Required: job state owner
	Providers     Providers            // Required: YouTube and language model ports
	Notifications *NotificationService // Required: results mail
	MaxVideos     int                  // Optional: videos per job, defaults to 5
	Logger        *slog.Logger         // Optional: structured logger
}

// StageService implements the four pipeline stages. Each stage marks its
// in-progress status, performs its work and returns exactly one success or
// StageFailed message.
type StageService struct {
	states        *JobStateService
	providers     Providers
	notifications *NotificationService
	maxVideos     int
	logger        *slog.Logger
}

// NewStageService constructs a new StageService.
func NewStageService(opts StageServiceOptions) (*StageService, error) {
	if opts.States == nil {
		return nil, errors.New("JobStateService is required")
	}
	if opts.Providers.Channels == nil || opts.Providers.Videos == nil || opts.Providers.Titles == nil {
		return nil, errors.New("channel, video and title providers are required")
	}
	if opts.Notifications == nil {
		return nil, errors.New("NotificationService is required")
	}

	maxVideos := opts.MaxVideos
	if maxVideos <= 0 {
		maxVideos = defaultMaxVideos
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StageService{
		states:        opts.States,
		providers:     opts.Providers,
		notifications: opts.Notifications,
		maxVideos:     maxVideos,
		logger:        logger.With("component", "stages"),
	}, nil
}

// Handlers returns the stage handlers keyed by their route subscriber.
func (s *StageService) Handlers() map[pipeline.Subscriber]pipeline.Handler {
	return map[pipeline.Subscriber]pipeline.Handler{
		pipeline.SubscriberResolveChannel: pipeline.Typed(s.ResolveChannel),
		pipeline.SubscriberFetchContent:   pipeline.Typed(s.FetchContent),
		pipeline.SubscriberGenerateTitles: pipeline.Typed(s.GenerateTitles),
		pipeline.SubscriberNotifySuccess:  pipeline.Typed(s.NotifySuccess),
	}
}

// ResolveChannel turns the submitted channel reference into a channel id and name.
func (s *StageService) ResolveChannel(ctx context.Context, msg pipeline.JobSubmitted) (pipeline.Message, error) {
	return s.run(ctx, model.StageResolveChannel, msg.JobID, msg.NotifyAddress,
		func(ctx context.Context) (stageResult, error) {
			ch, err := s.providers.Channels.ResolveChannel(ctx, msg.ChannelRef)
			if err != nil {
				return stageResult{}, err
			}
			return stageResult{
				merge: func(j *model.Job) {
					j.ChannelID = ch.ID
					j.ChannelName = ch.Name
				},
				out: pipeline.ChannelResolved{JobID: msg.JobID, NotifyAddress: msg.NotifyAddress, Channel: ch},
			}, nil
		})
}

// FetchContent lists the channel's most recent videos.
func (s *StageService) FetchContent(ctx context.Context, msg pipeline.ChannelResolved) (pipeline.Message, error) {
	return s.run(ctx, model.StageFetchContent, msg.JobID, msg.NotifyAddress,
		func(ctx context.Context) (stageResult, error) {
			videos, err := s.providers.Videos.LatestVideos(ctx, msg.Channel.ID, s.maxVideos)
			if err != nil {
				return stageResult{}, err
			}
			if len(videos) == 0 {
				return stageResult{}, apperrors.EmptyResult(noVideosMessage)
			}
			return stageResult{
				merge: func(j *model.Job) { j.Videos = videos },
				out: pipeline.ContentFetched{
					JobID:         msg.JobID,
					NotifyAddress: msg.NotifyAddress,
					ChannelName:   msg.Channel.Name,
					Videos:        videos,
				},
			}, nil
		})
}

// GenerateTitles asks the language model for one improved title per video.
func (s *StageService) GenerateTitles(ctx context.Context, msg pipeline.ContentFetched) (pipeline.Message, error) {
	return s.run(ctx, model.StageGenerateTitles, msg.JobID, msg.NotifyAddress,
		func(ctx context.Context) (stageResult, error) {
			titles, err := s.providers.Titles.ImproveTitles(ctx, msg.ChannelName, msg.Videos)
			if err != nil {
				return stageResult{}, err
			}
			if len(titles) != len(msg.Videos) {
				return stageResult{}, apperrors.Upstreamf(
					"expected %d improved titles, got %d", len(msg.Videos), len(titles))
			}
			return stageResult{
				merge: func(j *model.Job) { j.ImprovedTitles = titles },
				out: pipeline.TitlesGenerated{
					JobID:         msg.JobID,
					NotifyAddress: msg.NotifyAddress,
					ChannelName:   msg.ChannelName,
					Titles:        titles,
				},
			}, nil
		})
}

// NotifySuccess emails the improved titles and completes the job.
func (s *StageService) NotifySuccess(ctx context.Context, msg pipeline.TitlesGenerated) (pipeline.Message, error) {
	return s.run(ctx, model.StageNotifySuccess, msg.JobID, msg.NotifyAddress,
		func(ctx context.Context) (stageResult, error) {
			emailID, err := s.notifications.SendResults(ctx, msg.NotifyAddress, msg.ChannelName, msg.Titles)
			if err != nil {
				return stageResult{}, err
			}
			completedAt := s.states.Now()
			return stageResult{
				status: model.JobStatusCompleted,
				merge: func(j *model.Job) {
					j.EmailID = emailID
					j.CompletedAt = &completedAt
				},
				out: pipeline.JobCompleted{JobID: msg.JobID, EmailID: emailID},
			}, nil
		})
}

// stageResult is what a stage's work produced on success.
type stageResult struct {
	// status is the status to move to; empty keeps the in-progress status.
	status model.JobStatus
	merge  func(*model.Job)
	out    pipeline.Message
}

type stageWork func(ctx context.Context) (stageResult, error)

func (s *StageService) run(
	ctx context.Context,
	stage model.Stage,
	jobID, notifyAddress string,
	work stageWork,
) (pipeline.Message, error) {
	logger := s.logger.With("job_id", jobID, "stage", stage)

	if _, err := s.states.Transition(ctx, jobID, domainjob.InProgress(stage)); err != nil {
		if s.skippable(ctx, logger, err) {
			return nil, nil
		}
		return nil, fmt.Errorf("start %s: %w", stage, err)
	}

	started := time.Now()
	res, err := work(ctx)
	if err != nil {
		return s.fail(ctx, logger, stage, jobID, notifyAddress, err), nil
	}

	finishedAt := s.states.Now()
	_, err = s.states.Transition(ctx, jobID, domainjob.Transition{
		Status: res.status,
		Merge: func(j *model.Job) {
			if res.merge != nil {
				res.merge(j)
			}
			j.RecordStage(stage, finishedAt)
		},
	})
	if err != nil {
		if s.skippable(ctx, logger, err) {
			return nil, nil
		}
		return nil, fmt.Errorf("finish %s: %w", stage, err)
	}

	logger.InfoContext(ctx, "stage completed", "duration", time.Since(started))
	return res.out, nil
}

// skippable reports whether err means the delivery is stale: the job is
// gone, already terminal or already past this stage.
func (s *StageService) skippable(ctx context.Context, logger *slog.Logger, err error) bool {
	switch {
	case apperrors.IsNotFound(err):
		logger.WarnContext(ctx, "job record missing, dropping message")
		return true
	case errors.Is(err, domainjob.ErrInvalidTransition):
		logger.InfoContext(ctx, "stale delivery, dropping message", "reason", err)
		return true
	default:
		return false
	}
}

func (s *StageService) fail(
	ctx context.Context,
	logger *slog.Logger,
	stage model.Stage,
	jobID, notifyAddress string,
	cause error,
) pipeline.Message {
	kind, userMessage := ClassifyStageError(cause)
	logger.WarnContext(ctx, "stage failed", "error", cause, "kind", kind)

	// The stage context may already be past its deadline.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if _, err := s.states.Transition(writeCtx, jobID, domainjob.Failed(stage, cause.Error())); err != nil {
		logger.ErrorContext(ctx, "failed to record stage failure", "error", err)
	}

	return pipeline.StageFailed{
		JobID:         jobID,
		NotifyAddress: notifyAddress,
		Stage:         stage,
		Error:         cause.Error(),
		Kind:          kind,
		UserMessage:   userMessage,
	}
}

// ClassifyStageError returns the error kind carried on StageFailed and,
// for domain-empty results, the message to show the user verbatim.
func ClassifyStageError(err error) (kind, userMessage string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return string(apperrors.ErrCodeTimeout), ""
	case errors.Is(err, context.Canceled):
		return string(apperrors.ErrCodeCanceled), ""
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == apperrors.ErrCodeEmptyResult {
			return string(appErr.Code), appErr.Message
		}
		return string(appErr.Code), ""
	}
	return string(apperrors.ErrCodeInternal), ""
}
