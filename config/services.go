package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the submission and status API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModePipeline runs the pipeline runner that executes stages.
	ServiceModePipeline ServiceMode = "pipeline"
	// ServiceModeReaper runs the stale job reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModePipeline,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModePipeline, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, pipeline, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// PipelineConfig contains pipeline runner configuration.
type PipelineConfig struct {
	// Concurrency bounds the number of stage handlers running at once across all jobs.
	Concurrency int `env:"PIPELINE_CONCURRENCY" envDefault:"8"`

	// StageTimeout bounds a single stage invocation, including its external call.
	StageTimeout time.Duration `env:"PIPELINE_STAGE_TIMEOUT" envDefault:"60s"`

	// MailboxSize is the per-job mailbox buffer.
	MailboxSize int `env:"PIPELINE_MAILBOX_SIZE" envDefault:"4"`

	// MaxVideos is the number of recent videos fetched per channel.
	MaxVideos int `env:"PIPELINE_MAX_VIDEOS" envDefault:"5"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.StageTimeout < time.Second {
		p.StageTimeout = time.Second
	}
	if p.MailboxSize < 1 {
		p.MailboxSize = 1
	}
	if p.MaxVideos < 1 {
		p.MaxVideos = 1
	}
	if p.MaxVideos > 50 {
		p.MaxVideos = 50
	}
}

// ReaperConfig contains stale job reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	// StaleAfter is how long a non-terminal job may go without an update
	// before it is failed through the failure aggregator.
	StaleAfter time.Duration `env:"REAPER_STALE_AFTER" envDefault:"15m"`

	// BatchSize is the maximum number of jobs failed per tick.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.StaleAfter < time.Minute {
		r.StaleAfter = time.Minute
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
