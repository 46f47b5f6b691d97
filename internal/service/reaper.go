package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/core"
	domainjob "github.com/target/title-doctor/internal/domain/job"
	"github.com/target/title-doctor/internal/domain/model"
	"github.com/target/title-doctor/internal/domain/pipeline"
	apperrors "github.com/target/title-doctor/internal/errors"
	obserrors "github.com/target/title-doctor/internal/observability/errors"
	"github.com/target/title-doctor/internal/observability/metrics"
	"github.com/target/title-doctor/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	States  *JobStateService    // Required: job state owner
	Queue   core.MessageQueue   // Required: pipeline queue for StageFailed events
	Config  config.ReaperConfig // Required: reaper configuration
	Logger  *slog.Logger        // Optional: structured logger
	Metrics statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// ReaperService fails jobs that stopped making progress, for example after
// a worker crashed with the job's message in memory. Reaped jobs go through
// the failure aggregator like any other stage failure.
type ReaperService struct {
	states  *JobStateService
	queue   core.MessageQueue
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.States == nil {
		return nil, errors.New("JobStateService is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("MessageQueue is required")
	}
	if opts.Config.Interval <= 0 || opts.Config.StaleAfter <= 0 {
		return nil, errors.New("reaper interval and stale-after must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Config.Interval,
		"stale_after", opts.Config.StaleAfter,
		"batch_size", opts.Config.BatchSize,
	)

	return &ReaperService{
		states:  opts.States,
		queue:   opts.Queue,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Spread instances that start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.ReapStale(ctx); err != nil {
			s.logCleanupError(err)
		}

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReapStale fails one batch of non-terminal jobs whose last update is older
// than the stale threshold and publishes a StageFailed event for each.
func (s *ReaperService) ReapStale(ctx context.Context) (int, error) {
	start := time.Now()
	cutoff := s.states.Now().Add(-s.config.StaleAfter)

	jobs, err := s.states.ListStale(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		s.emitMetrics(0, time.Since(start), err)
		return 0, err
	}

	var (
		reaped int
		errs   []error
	)
	for _, j := range jobs {
		ok, err := s.reap(ctx, j)
		if err != nil {
			errs = append(errs, fmt.Errorf("reap job %s: %w", j.ID, err))
			if isContextCancellation(err) {
				break
			}
			continue
		}
		if ok {
			reaped++
		}
	}

	joined := errors.Join(errs...)
	s.emitMetrics(reaped, time.Since(start), joined)
	if reaped > 0 {
		s.logger.InfoContext(ctx, "reaped stale jobs", "count", reaped, "stale_after", s.config.StaleAfter)
	}
	return reaped, joined
}

func (s *ReaperService) reap(ctx context.Context, stale *model.Job) (bool, error) {
	stage := model.StageForStatus(stale.Status)
	reason := fmt.Sprintf("job timed out in status %s: no progress for %s", stale.Status, s.config.StaleAfter)

	if _, err := s.states.Transition(ctx, stale.ID, domainjob.Failed(stage, reason)); err != nil {
		if errors.Is(err, domainjob.ErrInvalidTransition) || apperrors.IsNotFound(err) {
			// Finished or vanished since it was listed.
			return false, nil
		}
		return false, err
	}

	env, err := pipeline.Encode(pipeline.StageFailed{
		JobID:         stale.ID,
		NotifyAddress: stale.NotifyAddress,
		Stage:         stage,
		Error:         reason,
		Kind:          string(apperrors.ErrCodeTimeout),
	})
	if err != nil {
		return false, err
	}
	if err := s.queue.Publish(ctx, env); err != nil {
		return false, fmt.Errorf("publish stage failure: %w", err)
	}

	s.logger.WarnContext(ctx, "job reaped", "job_id", stale.ID, "status", stale.Status, "updated_at", stale.UpdatedAt)
	return true, nil
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *ReaperService) emitMetrics(reaped int, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil && !isContextCancellation(err):
		result = metrics.ResultError
	case reaped == 0:
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if result == metrics.ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.run", 1, tags)
	s.metrics.Timing("reaper.run_duration", elapsed, metrics.CloneTags(tags))
	if reaped > 0 {
		s.metrics.Count("reaper.jobs_reaped", int64(reaped), nil)
	}
	if result != metrics.ResultError {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) logCleanupError(err error) {
	if isContextCancellation(err) {
		s.logger.Debug("reap cancelled by context", "error", err)
		return
	}
	s.logger.Error("reap failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
