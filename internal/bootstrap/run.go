package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/target/title-doctor/config"
)

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// backgroundService describes a startable component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	return []backgroundService{
		{
			mode: config.ServiceModeHTTP,
			name: "http server",
			start: func(ctx context.Context) error {
				server := NewHTTPServer(HTTPServerConfig{
					Config:   cfg.Config.HTTP,
					Services: cfg.Services,
					Logger:   logger,
				})
				return ServeHTTP(ctx, server, logger)
			},
		},
		{
			mode: config.ServiceModePipeline,
			name: "pipeline runner",
			start: func(ctx context.Context) error {
				return RunPipeline(ctx, PipelineConfig{Services: cfg.Services, Config: cfg.Config, Logger: logger})
			},
		},
		{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{Services: cfg.Services, Config: cfg.Config.Reaper, Logger: logger})
			},
		},
	}
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// shutdown signal arrives or one of them fails. A failing service cancels the rest.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config with AppConfig is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServices(sigCtx, buildBackgroundServices(cfg, logger), enabledServices, logger)
}

func runServices(
	ctx context.Context,
	services []backgroundService,
	enabled map[config.ServiceMode]bool,
	logger *slog.Logger,
) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		if !enabled[svc.mode] {
			continue
		}
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", svc.name, "mode", svc.mode)
			if err := svc.start(gctx); err != nil {
				logger.ErrorContext(gctx, "service error", "service", svc.name, "error", err)
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			logger.Info(svc.name + " stopped")
			return nil
		})
	}

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		logger.Info("services shut down")
	}
	return err
}
