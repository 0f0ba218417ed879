package webclient

import "time"

// Config controls the outbound HTTP client used for third-party APIs.
type Config struct {
	// Timeout bounds one request end to end. Zero means 30s.
	Timeout time.Duration `mapstructure:"timeout"`

	// DNSCacheRefresh is how often cached DNS answers are refreshed. Zero
	// disables the cache and uses the system resolver.
	DNSCacheRefresh time.Duration `mapstructure:"dns_cache_refresh"`

	// UserAgent is sent when a request does not set one.
	UserAgent string `mapstructure:"user_agent"`

	// MaxBodyBytes caps how much of a response body is read. Zero means 16 MiB.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 16 << 20
)
