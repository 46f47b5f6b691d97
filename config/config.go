package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded once at startup from environment variables using
// github.com/caarlos0/env and passed explicitly to every component. See the
// domain config files for the available environment variables:
//   - database.go: job store backend, PostgreSQL, Redis and SQLite
//   - http.go: HTTP server configuration
//   - services.go: service modes, pipeline runner and reaper
//   - providers.go: YouTube, Gemini and Resend credentials
//   - observability.go: metrics and ops notifications
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, verbose errors).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Job store and queue backends
	Store    StoreConfig
	Postgres DBConfig     `envPrefix:"DB_"`
	Redis    RedisConfig  `envPrefix:"REDIS_"`
	SQLite   SQLiteConfig `envPrefix:"SQLITE_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,pipeline,reaper"`

	// Pipeline runner configuration
	Pipeline PipelineConfig

	// Reaper configuration
	Reaper ReaperConfig

	// External collaborators
	YouTube YouTubeConfig `envPrefix:"YOUTUBE_"`
	Gemini  GeminiConfig  `envPrefix:"GEMINI_"`
	Resend  ResendConfig  `envPrefix:"RESEND_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Store.Sanitize()
	c.HTTP.Sanitize()
	c.Pipeline.Sanitize()
	c.Reaper.Sanitize()
	c.YouTube.Sanitize()
	c.Gemini.Sanitize()
	c.Resend.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	return c.serviceEnabled(ServiceModeHTTP)
}

// IsPipelineEnabled returns true if the pipeline runner service is enabled.
func (c *AppConfig) IsPipelineEnabled() bool {
	return c.serviceEnabled(ServiceModePipeline)
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	return c.serviceEnabled(ServiceModeReaper)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// MissingCredentials lists the provider credentials that are not configured.
// Missing credentials do not stop the process; the affected stage fails each
// job with a configuration error instead.
func (c *AppConfig) MissingCredentials() []string {
	var missing []string
	if c.YouTube.APIKey == "" {
		missing = append(missing, "YOUTUBE_API_KEY")
	}
	if c.Gemini.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.Resend.APIKey == "" {
		missing = append(missing, "RESEND_API_KEY")
	}
	return missing
}
