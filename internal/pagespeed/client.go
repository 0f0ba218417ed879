// Package pagespeed calls the PageSpeed Insights API for the remote scan
// strategy, where Google renders and audits the page.
package pagespeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/raysh454/clarity/internal/logging"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/webclient"
)

// DefaultEndpoint is the v5 runPagespeed endpoint.
const DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config controls the remote audit call.
type Config struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`

	// AllowAnonymous sends requests without a key when APIKey is empty
	// instead of failing with a ConfigurationError.
	AllowAnonymous bool `mapstructure:"allow_anonymous"`

	// Strategy is the PageSpeed form factor, "desktop" or "mobile".
	Strategy string        `mapstructure:"strategy"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Client audits a URL through PageSpeed Insights.
type Client struct {
	cfg    Config
	web    webclient.WebClient
	logger logging.Logger
}

// NewClient builds a Client on top of web.
func NewClient(cfg Config, web webclient.WebClient, logger logging.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "desktop"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &Client{
		cfg:    cfg,
		web:    web,
		logger: logger.With(logging.Field{Key: "component", Value: "pagespeed"}),
	}
}

type envelope struct {
	LighthouseResult *model.LighthouseFindings `json:"lighthouseResult"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Audit makes exactly one request. Failures are *model.ScanError of kind
// ConfigurationError or RemoteAuditError.
func (c *Client) Audit(ctx context.Context, target string) (*model.LighthouseFindings, error) {
	if c.cfg.APIKey == "" && !c.cfg.AllowAnonymous {
		return nil, model.NewScanError(model.KindConfigurationError,
			"Remote audit is not configured", fmt.Errorf("pagespeed api key is not set"))
	}

	reqURL, err := c.requestURL(target)
	if err != nil {
		return nil, model.NewScanError(model.KindConfigurationError, "Remote audit is not configured", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.web.Do(ctx, &webclient.Request{
		Method:  "GET",
		URL:     reqURL,
		Headers: map[string][]string{"Accept": {"application/json"}},
	})
	if err != nil {
		return nil, model.NewScanError(model.KindRemoteAuditError, "Audit service is unreachable", err)
	}

	c.logger.Debug("pagespeed responded",
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})

	if !resp.OK() {
		msg := c.errorMessage(resp.StatusCode, resp.Body)
		c.logger.Warn("pagespeed audit failed",
			logging.Field{Key: "status", Value: resp.StatusCode},
			logging.Field{Key: "message", Value: msg})
		return nil, model.NewScanError(model.KindRemoteAuditError, msg,
			fmt.Errorf("pagespeed status %d", resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, model.NewScanError(model.KindRemoteAuditError, "Audit service returned an unreadable response", err)
	}
	if env.LighthouseResult == nil {
		return nil, model.NewScanError(model.KindRemoteAuditError, "Audit service returned an unreadable response",
			fmt.Errorf("response has no lighthouseResult"))
	}
	return env.LighthouseResult, nil
}

func (c *Client) requestURL(target string) (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse pagespeed endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", target)
	q.Set("category", "accessibility")
	q.Set("strategy", c.cfg.Strategy)
	if c.cfg.APIKey != "" {
		q.Set("key", c.cfg.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// errorMessage prefers the API's own error.message. A body that is not the
// expected JSON is only logged.
func (c *Client) errorMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		c.logger.Debug("pagespeed error body not decodable", logging.Err(err))
	} else if m := strings.TrimSpace(eb.Error.Message); m != "" {
		return m
	}
	return fmt.Sprintf("audit API returned status %d", status)
}
