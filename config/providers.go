package config

import (
	"strings"
	"time"
)

// YouTubeConfig configures the YouTube Data API client used to resolve
// channels and list recent videos.
type YouTubeConfig struct {
	APIKey            string        `env:"API_KEY"`
	BaseURL           string        `env:"BASE_URL"            envDefault:"https://www.googleapis.com/youtube/v3"`
	Timeout           time.Duration `env:"TIMEOUT"             envDefault:"15s"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"5"`
	// ChannelCacheTTL is how long a resolved channel is reused; 0 disables the cache.
	ChannelCacheTTL time.Duration `env:"CHANNEL_CACHE_TTL" envDefault:"24h"`
	// ChannelCacheSize bounds the in-process cache used when Redis is not configured.
	ChannelCacheSize int `env:"CHANNEL_CACHE_SIZE" envDefault:"1024"`
}

// Sanitize trims values and enforces safe defaults.
func (c *YouTubeConfig) Sanitize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.ChannelCacheTTL < 0 {
		c.ChannelCacheTTL = 0
	}
	if c.ChannelCacheSize <= 0 {
		c.ChannelCacheSize = 1024
	}
}

// GeminiConfig configures the Gemini client used to generate improved titles.
type GeminiConfig struct {
	APIKey            string        `env:"API_KEY"`
	BaseURL           string        `env:"BASE_URL"            envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	Model             string        `env:"MODEL"               envDefault:"gemini-2.0-flash"`
	Temperature       float64       `env:"TEMPERATURE"         envDefault:"0.7"`
	Timeout           time.Duration `env:"TIMEOUT"             envDefault:"45s"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"2"`
	// ResponseTextPath is a JMESPath expression selecting the generated text
	// from a generateContent response.
	ResponseTextPath string `env:"RESPONSE_TEXT_PATH" envDefault:"candidates[0].content.parts[0].text"`
}

// Sanitize trims values and enforces safe defaults.
func (c *GeminiConfig) Sanitize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Model = strings.TrimSpace(c.Model); c.Model == "" {
		c.Model = "gemini-2.0-flash"
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		c.Temperature = 0.7
	}
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.ResponseTextPath = strings.TrimSpace(c.ResponseTextPath); c.ResponseTextPath == "" {
		c.ResponseTextPath = "candidates[0].content.parts[0].text"
	}
}

// ResendConfig configures the Resend email client.
type ResendConfig struct {
	APIKey      string        `env:"API_KEY"`
	BaseURL     string        `env:"BASE_URL"   envDefault:"https://api.resend.com"`
	FromAddress string        `env:"FROM_EMAIL" envDefault:"onboarding@resend.dev"`
	Timeout     time.Duration `env:"TIMEOUT"    envDefault:"15s"`
}

// Sanitize trims values and enforces safe defaults.
func (c *ResendConfig) Sanitize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.FromAddress = strings.TrimSpace(c.FromAddress); c.FromAddress == "" {
		c.FromAddress = "onboarding@resend.dev"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}
