package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/raysh454/clarity/internal/analyzer"
	"github.com/raysh454/clarity/internal/billing"
	"github.com/raysh454/clarity/internal/engine"
	"github.com/raysh454/clarity/internal/logging"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/pagespeed"
	"github.com/raysh454/clarity/internal/registry"
	"github.com/raysh454/clarity/internal/render"
	"github.com/raysh454/clarity/internal/server"
	"github.com/raysh454/clarity/internal/webclient"
)

// EnvPrefix namespaces every environment override, e.g. CLARITY_SCAN_STRATEGY.
const EnvPrefix = "CLARITY"

// Config is the full runtime configuration, one section per component.
type Config struct {
	Logger    logging.Config         `mapstructure:"logger"`
	Server    server.Config          `mapstructure:"server"`
	Scan      analyzer.Config        `mapstructure:"scan"`
	Browser   render.Options         `mapstructure:"browser"`
	Engine    engine.Config          `mapstructure:"engine"`
	Remote    RemoteConfig           `mapstructure:"remote"`
	Quota     QuotaConfig            `mapstructure:"quota"`
	Storage   StorageConfig          `mapstructure:"storage"`
	Billing   billing.Config         `mapstructure:"billing"`
	RateLimit server.RateLimitConfig `mapstructure:"ratelimit"`
}

// RemoteConfig configures the PageSpeed strategy and its HTTP client.
type RemoteConfig struct {
	pagespeed.Config `mapstructure:",squash"`

	HTTP webclient.Config `mapstructure:"http"`
}

// QuotaConfig controls the per-email daily free scan allowance.
type QuotaConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	FreeScansPerDay int  `mapstructure:"free_scans_per_day"`
}

// StorageConfig locates the SQLite database. ":memory:" keeps it in RAM.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// SetDefaults registers a default for every key so environment overrides
// resolve during Unmarshal.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "clarity")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "150s")
	v.SetDefault("server.allowed_origin", "*")

	// -- Scan --
	v.SetDefault("scan.strategy", string(model.StrategyLocal))
	v.SetDefault("scan.timeout", "2m")
	v.SetDefault("scan.max_concurrent", 4)
	v.SetDefault("scan.inspect_document", false)
	v.SetDefault("scan.url.deny_private_hosts", true)

	// -- Browser --
	def := render.DefaultOptions()
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", def.UserAgent)
	v.SetDefault("browser.extra_flags", []string{})
	v.SetDefault("browser.window_width", def.WindowWidth)
	v.SetDefault("browser.window_height", def.WindowHeight)
	v.SetDefault("browser.launch_timeout", def.LaunchTimeout)
	v.SetDefault("browser.navigation_timeout", def.NavigationTimeout)
	v.SetDefault("browser.script_timeout", def.ScriptTimeout)

	// -- Engine --
	v.SetDefault("engine.axe_source_file", "")
	v.SetDefault("engine.axe_script_url", engine.DefaultAxeScriptURL)
	v.SetDefault("engine.run_tags", engine.DefaultRunTags)

	// -- Remote --
	v.SetDefault("remote.endpoint", pagespeed.DefaultEndpoint)
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.allow_anonymous", false)
	v.SetDefault("remote.strategy", "desktop")
	v.SetDefault("remote.timeout", "90s")
	v.SetDefault("remote.http.timeout", "100s")
	v.SetDefault("remote.http.dns_cache_refresh", "5m")
	v.SetDefault("remote.http.user_agent", "clarity/"+Version)
	v.SetDefault("remote.http.max_body_bytes", 16<<20)

	// -- Quota --
	v.SetDefault("quota.enabled", true)
	v.SetDefault("quota.free_scans_per_day", registry.DefaultFreeScansPerDay)

	// -- Storage --
	v.SetDefault("storage.path", "clarity.db")

	// -- Billing --
	v.SetDefault("billing.secret_key", "")
	v.SetDefault("billing.price_personal", "")
	v.SetDefault("billing.price_enterprise", "")
	v.SetDefault("billing.public_domain", "http://localhost:8080")

	// -- Rate limit --
	v.SetDefault("ratelimit.rps", 0.5)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("ratelimit.ttl", "10m")
}

// NewViper returns a viper instance with defaults, the CLARITY_ environment
// prefix and the conventional credential variable names bound. .env in the
// working directory is loaded first; it never overrides the real environment.
func NewViper() *viper.Viper {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("remote.api_key", EnvPrefix+"_REMOTE_API_KEY", "PAGESPEED_API_KEY")
	_ = v.BindEnv("billing.secret_key", EnvPrefix+"_BILLING_SECRET_KEY", "STRIPE_SECRET_KEY")
	_ = v.BindEnv("billing.price_personal", EnvPrefix+"_BILLING_PRICE_PERSONAL", "STRIPE_PRICE_PERSONAL")
	_ = v.BindEnv("billing.price_enterprise", EnvPrefix+"_BILLING_PRICE_ENTERPRISE", "STRIPE_PRICE_ENTERPRISE")
	_ = v.BindEnv("billing.public_domain", EnvPrefix+"_BILLING_PUBLIC_DOMAIN", "PUBLIC_DOMAIN")
	return v
}

// LoadConfig reads an optional config file into v and returns the validated
// configuration. With an empty path ./config.yaml is used when present.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals and validates.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Server.RateLimit = cfg.RateLimit

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns the defaults without reading files or environment.
func DefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration for sane values. Missing credentials
// are not errors here; the components that need them report
// ConfigurationError when they are used.
func (c *Config) Validate() error {
	if !c.Scan.Strategy.Valid() {
		return fmt.Errorf("scan.strategy must be %q or %q, got %q", model.StrategyLocal, model.StrategyRemote, c.Scan.Strategy)
	}
	if c.Scan.Timeout <= 0 {
		return errors.New("scan.timeout must be positive")
	}
	if c.Scan.MaxConcurrent < 0 {
		return errors.New("scan.max_concurrent must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"browser.launch_timeout":     c.Browser.LaunchTimeout,
		"browser.navigation_timeout": c.Browser.NavigationTimeout,
		"browser.script_timeout":     c.Browser.ScriptTimeout,
		"remote.timeout":             c.Remote.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Scan.Timeout {
		return fmt.Errorf("server.write_timeout (%s) must exceed scan.timeout (%s)", c.Server.WriteTimeout, c.Scan.Timeout)
	}
	if s := c.Remote.Strategy; s != "desktop" && s != "mobile" {
		return fmt.Errorf("remote.strategy must be desktop or mobile, got %q", s)
	}
	if c.Quota.Enabled && c.Quota.FreeScansPerDay <= 0 {
		return errors.New("quota.free_scans_per_day must be positive when quota is enabled")
	}
	if c.Quota.Enabled && c.Storage.Path == "" {
		return errors.New("storage.path is required when quota is enabled")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("ratelimit.rps and ratelimit.burst must not be negative")
	}
	return nil
}
