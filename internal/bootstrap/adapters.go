package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/adapters/jobrunner"
	"github.com/target/title-doctor/internal/adapters/reaper"
	"github.com/target/title-doctor/internal/domain/pipeline"
)

// PipelineHandlers returns the handler for every route subscriber.
func (c ServiceContainer) PipelineHandlers() map[pipeline.Subscriber]pipeline.Handler {
	handlers := c.Stages.Handlers()
	handlers[pipeline.SubscriberFailureAggregate] = c.Aggregator.Handler()
	return handlers
}

// PipelineConfig contains configuration for the pipeline runner.
type PipelineConfig struct {
	Services ServiceContainer
	Config   *config.AppConfig
	Logger   *slog.Logger
}

// RunPipeline claims pipeline messages and runs the stage handlers until ctx ends.
func RunPipeline(ctx context.Context, cfg PipelineConfig) error {
	opts := jobrunner.RunnerOptions{
		Queue:        cfg.Services.Stores.Queue,
		Handlers:     cfg.Services.PipelineHandlers(),
		Logger:       cfg.Logger,
		Concurrency:  cfg.Config.Pipeline.Concurrency,
		StageTimeout: cfg.Config.Pipeline.StageTimeout,
		MailboxSize:  cfg.Config.Pipeline.MailboxSize,
	}
	if cfg.Config.Store.Queue == config.QueueBackendRedis {
		opts.ClaimTimeout = cfg.Config.Redis.ClaimTimeout
	}
	if sink := cfg.Services.Observability.MetricsSink; sink != nil {
		opts.Metrics = sink
	}

	runner, err := jobrunner.NewRunner(opts)
	if err != nil {
		return fmt.Errorf("create pipeline runner: %w", err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run pipeline runner: %w", runErr)
	}
	return nil
}

// ReaperConfig contains configuration for the reaper.
type ReaperConfig struct {
	Services ServiceContainer
	Config   config.ReaperConfig
	Logger   *slog.Logger
}

// RunReaper fails stale jobs through the failure aggregator until ctx ends.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	opts := reaper.RunnerOptions{
		Repo:   cfg.Services.Stores.Jobs,
		Queue:  cfg.Services.Stores.Queue,
		Config: cfg.Config,
		Logger: cfg.Logger,
		States: cfg.Services.States,
	}
	if sink := cfg.Services.Observability.MetricsSink; sink != nil {
		opts.Metrics = sink
	}

	runner, err := reaper.NewRunner(opts)
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
