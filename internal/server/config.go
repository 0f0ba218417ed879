package server

import "time"

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr   string        `mapstructure:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string `mapstructure:"allowed_origin"`

	// RateLimit is filled from the top-level ratelimit section.
	RateLimit RateLimitConfig `mapstructure:"-"`
}

// RateLimitConfig is a per-client token bucket applied to scan routes.
// A zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64       `mapstructure:"rps"`
	Burst int           `mapstructure:"burst"`
	TTL   time.Duration `mapstructure:"ttl"`
}
