package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/title-doctor/config"
)

// InitLogger initializes the structured logger used until configuration is loaded.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// ConfigureLogger rebuilds the default logger from LOG_LEVEL and LOG_FORMAT.
func ConfigureLogger(w io.Writer, cfg config.ObservabilityConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// minStaleFactor is the smallest REAPER_STALE_AFTER / PIPELINE_STAGE_TIMEOUT ratio accepted.
const minStaleFactor = 2

// ValidateServiceConfig rejects service and backend combinations that cannot work.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}

	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	switch cfg.Store.Backend {
	case config.StoreBackendMemory, config.StoreBackendRedis, config.StoreBackendPostgres, config.StoreBackendSQLite:
	default:
		return fmt.Errorf("invalid JOB_STORE_BACKEND %q (valid options: memory, redis, postgres, sqlite)", cfg.Store.Backend)
	}

	switch cfg.Store.Queue {
	case config.QueueBackendMemory, config.QueueBackendRedis:
	default:
		return fmt.Errorf("invalid QUEUE_BACKEND %q (valid options: memory, redis)", cfg.Store.Queue)
	}

	// In-process backends are invisible to other processes, so submissions
	// and the pipeline must share this one.
	split := !services[config.ServiceModeHTTP] || !services[config.ServiceModePipeline]
	if split && cfg.Store.Backend == config.StoreBackendMemory {
		return errors.New("JOB_STORE_BACKEND=memory requires the http and pipeline services in the same process")
	}
	if split && cfg.Store.Queue == config.QueueBackendMemory {
		return errors.New("QUEUE_BACKEND=memory requires the http and pipeline services in the same process")
	}

	// A job is only refreshed when a stage starts, so the reaper must wait out
	// at least a full stage plus the hop to the next one.
	if services[config.ServiceModeReaper] && cfg.Reaper.StaleAfter < minStaleFactor*cfg.Pipeline.StageTimeout {
		return fmt.Errorf(
			"REAPER_STALE_AFTER (%s) must be at least %d x PIPELINE_STAGE_TIMEOUT (%s)",
			cfg.Reaper.StaleAfter, minStaleFactor, cfg.Pipeline.StageTimeout,
		)
	}

	return nil
}

// GetEnabledServices returns a sorted list of enabled service names.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Return empty list on error - validation will catch this
		return []string{}
	}

	enabledServices := make([]string, 0, len(services))
	for svc := range services {
		enabledServices = append(enabledServices, string(svc))
	}
	sort.Strings(enabledServices)

	return enabledServices
}
