package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CORSAllowedOrigins lists origins allowed to call the submission API.
	CORSAllowedOrigins []string `env:"HTTP_CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// MaxWait caps the long-poll duration of the job wait endpoint.
	MaxWait time.Duration `env:"HTTP_MAX_WAIT" envDefault:"60s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	origins := h.CORSAllowedOrigins[:0]
	for _, o := range h.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	h.CORSAllowedOrigins = origins

	if h.MaxWait <= 0 {
		h.MaxWait = 60 * time.Second
	}
	if h.MaxWait > 5*time.Minute {
		h.MaxWait = 5 * time.Minute
	}
}
