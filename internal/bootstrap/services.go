package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/adapters/gemini"
	"github.com/target/title-doctor/internal/adapters/resend"
	"github.com/target/title-doctor/internal/adapters/youtube"
	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/observability/notify/slack"
	"github.com/target/title-doctor/internal/observability/statsd"
	"github.com/target/title-doctor/internal/service"
	"github.com/target/title-doctor/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Stores        Stores
	States        *service.JobStateService
	Submissions   *service.SubmissionService
	Notifications *service.NotificationService
	Stages        *service.StageService
	Aggregator    *service.FailureAggregator
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Stores Stores
	Logger *slog.Logger

	// Optional overrides for the external providers, used by tests.
	Providers *service.Providers
	Mailer    core.Mailer
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	opts := failurenotifier.Options{
		Logger:      logger,
		SkipClasses: cfg.SkipClasses,
		Timeout:     cfg.Timeout,
	}
	if !cfg.Enabled {
		return failurenotifier.NewService(opts)
	}

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			JobURLBase: cfg.Slack.JobURLBase,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			opts.Sinks = append(opts.Sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	return failurenotifier.NewService(opts)
}

// buildProviders constructs the YouTube, Gemini and Resend clients. Channel
// resolution goes through the stores' cache when one is configured.
func buildProviders(
	cfg *config.AppConfig,
	cache core.CacheRepository,
	logger *slog.Logger,
) (service.Providers, core.Mailer, error) {
	yt := youtube.NewClient(youtube.Options{Config: cfg.YouTube, Logger: logger})

	var channels core.ChannelResolver = yt
	if cache != nil && cfg.YouTube.ChannelCacheTTL > 0 {
		cached, err := service.NewCachedChannelResolver(service.CachedChannelResolverOptions{
			Next:   yt,
			Cache:  cache,
			TTL:    cfg.YouTube.ChannelCacheTTL,
			Logger: logger,
		})
		if err != nil {
			return service.Providers{}, nil, fmt.Errorf("create channel cache: %w", err)
		}
		channels = cached
	}

	gm, err := gemini.NewClient(gemini.Options{Config: cfg.Gemini, Logger: logger})
	if err != nil {
		return service.Providers{}, nil, fmt.Errorf("create gemini client: %w", err)
	}

	mailer := resend.NewClient(resend.Options{Config: cfg.Resend, Logger: logger})

	return service.Providers{Channels: channels, Videos: yt, Titles: gm}, mailer, nil
}

// NewServices wires the domain services over the selected stores.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.Stores.Jobs == nil || deps.Stores.Queue == nil {
		return ServiceContainer{}, errors.New("job store and queue are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		logger.Warn("provider credentials missing; affected stages will fail jobs", "missing", missing)
	}

	providers, mailer, err := buildProviders(cfg, deps.Stores.Cache, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	if deps.Providers != nil {
		providers = *deps.Providers
	}
	if deps.Mailer != nil {
		mailer = deps.Mailer
	}

	c := ServiceContainer{
		Stores:        deps.Stores,
		Observability: buildObservability(logger, cfg.Observability),
	}

	if c.States, err = service.NewJobStateService(service.JobStateServiceOptions{
		Repo:   deps.Stores.Jobs,
		Logger: logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("create job state service: %w", err)
	}

	if c.Submissions, err = service.NewSubmissionService(service.SubmissionServiceOptions{
		States: c.States,
		Queue:  deps.Stores.Queue,
		Logger: logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("create submission service: %w", err)
	}

	if c.Notifications, err = service.NewNotificationService(service.NotificationServiceOptions{
		Mailer: mailer,
		Logger: logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("create notification service: %w", err)
	}

	if c.Stages, err = service.NewStageService(service.StageServiceOptions{
		States:        c.States,
		Providers:     providers,
		Notifications: c.Notifications,
		MaxVideos:     cfg.Pipeline.MaxVideos,
		Logger:        logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("create stage service: %w", err)
	}

	if c.Aggregator, err = service.NewFailureAggregator(service.FailureAggregatorOptions{
		States:        c.States,
		Notifications: c.Notifications,
		Alerts:        c.Observability.FailureNotifier,
		Logger:        logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("create failure aggregator: %w", err)
	}

	return c, nil
}
