package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfgPtr := &cfg

	logger = bootstrap.ConfigureLogger(os.Stdout, cfg.Observability)
	logStartupInfo(ctx, logger, cfgPtr)

	if err = bootstrap.ValidateServiceConfig(cfgPtr); err != nil {
		return err
	}

	infra, err := bootstrap.ConnectInfrastructure(ctx, cfgPtr, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close infrastructure failed", "error", cerr)
		}
	}()

	stores, err := bootstrap.BuildStores(cfgPtr, infra)
	if err != nil {
		return err
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: cfgPtr,
		Stores: stores,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if services.Observability.MetricsSink != nil {
			if cerr := services.Observability.MetricsSink.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close metrics sink failed", "error", cerr)
			}
		}
	}()

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   cfgPtr,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting title doctor service",
		"job_store", cfg.Store.Backend,
		"queue", cfg.Store.Queue,
		"enabled_services", bootstrap.GetEnabledServices(cfg),
		"dev", cfg.IsDev)
}
