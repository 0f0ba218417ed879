package render

import "time"

// DefaultUserAgent is a current desktop Chrome string. Some sites serve
// degraded pages to the stock HeadlessChrome identifier.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Options controls how ChromeBrowser launches and drives Chrome.
type Options struct {
	ExecPath          string        `mapstructure:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent"`
	ExtraFlags        []string      `mapstructure:"extra_flags"`
	WindowWidth       int           `mapstructure:"window_width"`
	WindowHeight      int           `mapstructure:"window_height"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ScriptTimeout     time.Duration `mapstructure:"script_timeout"`
}

// DefaultOptions returns the launch profile used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		UserAgent:         DefaultUserAgent,
		WindowWidth:       1366,
		WindowHeight:      900,
		LaunchTimeout:     30 * time.Second,
		NavigationTimeout: 60 * time.Second,
		ScriptTimeout:     45 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.WindowWidth <= 0 || o.WindowHeight <= 0 {
		o.WindowWidth, o.WindowHeight = d.WindowWidth, d.WindowHeight
	}
	if o.LaunchTimeout <= 0 {
		o.LaunchTimeout = d.LaunchTimeout
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.ScriptTimeout <= 0 {
		o.ScriptTimeout = d.ScriptTimeout
	}
	return o
}
