package config

import (
	"strings"
	"time"
)

const defaultObservabilityName = "titledoctor"

// ObservabilityConfig groups configuration that controls metrics, logging, and alert fan-out.
type ObservabilityConfig struct {
	LogLevel      string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	Metrics       ObservabilityMetricsConfig
	Notifications ObservabilityNotificationsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != "text" {
		c.LogFormat = "json"
	}
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to external sinks such as StatsD.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"titledoctor"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), ".")
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// ObservabilityNotificationsConfig controls operator alerts for failed jobs.
type ObservabilityNotificationsConfig struct {
	Enabled bool          `env:"OBSERVABILITY_NOTIFICATIONS_ENABLED" envDefault:"false"`
	Timeout time.Duration `env:"OBSERVABILITY_NOTIFICATIONS_TIMEOUT" envDefault:"5s"`
	// SkipClasses lists error kinds that never page, such as a user typing an unknown channel.
	SkipClasses []string                `env:"OBSERVABILITY_NOTIFICATIONS_SKIP_CLASSES" envDefault:"empty_result" envSeparator:","`
	Slack       SlackNotificationConfig `                                                                                              envPrefix:"OBSERVABILITY_NOTIFICATIONS_SLACK_"`
}

// Sanitize normalises notification configuration values.
func (c *ObservabilityNotificationsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}

	c.Slack.sanitize()

	classes := c.SkipClasses[:0]
	for _, class := range c.SkipClasses {
		if class = strings.ToLower(strings.TrimSpace(class)); class != "" {
			classes = append(classes, class)
		}
	}
	c.SkipClasses = classes

	if !c.Enabled {
		c.Slack.Enabled = false
		return
	}

	if c.Slack.Enabled && c.Slack.WebhookURL == "" {
		c.Slack.Enabled = false
	}
}

// SlackNotificationConfig controls Slack webhook fan-out.
type SlackNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"titledoctor"`
	JobURLBase string `env:"JOB_URL_BASE"`
}

func (c *SlackNotificationConfig) sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Channel = strings.TrimSpace(c.Channel)
	c.JobURLBase = strings.TrimRight(strings.TrimSpace(c.JobURLBase), "/")
	if c.Username == "" {
		c.Username = defaultObservabilityName
	}
}
