// Package reaper provides the adapter that runs the stale job reaper.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/observability/statsd"
	"github.com/target/title-doctor/internal/service"
)

// Runner runs the reaper loop against a job store and the pipeline queue.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Repo   core.JobRepository
	Queue  core.MessageQueue
	Config config.ReaperConfig
	Logger *slog.Logger

	// Optional: share the process's state service so waiters see reaped jobs.
	States  *service.JobStateService
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := wireReaperService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.States == nil && opts.Repo == nil {
		return errors.New("job repository is required")
	}
	if opts.Queue == nil {
		return errors.New("message queue is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

func wireReaperService(opts RunnerOptions) (*service.ReaperService, error) {
	states := opts.States
	if states == nil {
		var err error
		states, err = service.NewJobStateService(service.JobStateServiceOptions{Repo: opts.Repo, Logger: opts.Logger})
		if err != nil {
			return nil, err
		}
	}

	return service.NewReaperService(service.ReaperServiceOptions{
		States:  states,
		Queue:   opts.Queue,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
