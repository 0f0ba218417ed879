package webclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/clarity/internal/logging"
	"github.com/rs/dnscache"
)

// net/http backed implementation of webclient.
type NetHTTPClient struct {
	client  *http.Client
	cfg     Config
	logger  logging.Logger
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewNetHTTPClient builds a client. When httpClient is nil a transport with
// a caching DNS dialer is constructed from cfg.
func NewNetHTTPClient(cfg Config, logger logging.Logger, httpClient *http.Client) (*NetHTTPClient, error) {
	componentLogger := logger.With(logging.Field{Key: "backend", Value: "nethttp"})

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	nhc := &NetHTTPClient{
		cfg:    cfg,
		logger: componentLogger,
		stop:   make(chan struct{}),
	}

	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.DNSCacheRefresh > 0 {
			resolver := &dnscache.Resolver{}
			transport.DialContext = cachedDialer(resolver)
			nhc.wg.Add(1)
			go nhc.refreshLoop(resolver, cfg.DNSCacheRefresh)
		}
		httpClient = &http.Client{Timeout: cfg.Timeout, Transport: transport}
	}
	nhc.client = httpClient

	componentLogger.Info("created nethttp webclient",
		logging.Field{Key: "timeout", Value: httpClient.Timeout.String()},
		logging.Field{Key: "dns_cache", Value: cfg.DNSCacheRefresh > 0})

	return nhc, nil
}

func cachedDialer(resolver *dnscache.Resolver) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses for %s", host)
		}
		return nil, lastErr
	}
}

func (nhc *NetHTTPClient) refreshLoop(resolver *dnscache.Resolver, every time.Duration) {
	defer nhc.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-nhc.stop:
			return
		case <-ticker.C:
			resolver.Refresh(true)
			nhc.logger.Debug("dns cache refreshed")
		}
	}
}

// Do implements the generic request execution using net/http.
func (nhc *NetHTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	nhc.logger.Debug("sending http request",
		logging.Field{Key: "method", Value: method},
		logging.Field{Key: "url", Value: redact(req.URL)})

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" && nhc.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", nhc.cfg.UserAgent)
	}

	resp, err := nhc.client.Do(httpReq)
	if err != nil {
		nhc.logger.Warn("http request failed",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: redact(req.URL)},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, nhc.cfg.MaxBodyBytes))
	if err != nil {
		nhc.logger.Warn("failed to read response body",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: redact(req.URL)},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		Request:    req,
		Body:       body,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now(),
	}, nil
}

// Get is a convenience method for simple GET requests
func (nhc *NetHTTPClient) Get(ctx context.Context, url string) (*Response, error) {
	return nhc.Do(ctx, &Request{Method: http.MethodGet, URL: url})
}

// Close stops the DNS refresh loop and drops idle connections.
func (nhc *NetHTTPClient) Close() error {
	nhc.stopped.Do(func() {
		close(nhc.stop)
		nhc.wg.Wait()
		nhc.client.CloseIdleConnections()
		nhc.logger.Info("closing nethttp webclient")
	})
	return nil
}

// redact hides credential query parameters from logs.
func redact(raw string) string {
	i := strings.Index(raw, "?")
	if i < 0 {
		return raw
	}
	parts := strings.Split(raw[i+1:], "&")
	for j, p := range parts {
		k, _, found := strings.Cut(p, "=")
		if found && strings.EqualFold(k, "key") {
			parts[j] = k + "=REDACTED"
		}
	}
	return raw[:i+1] + strings.Join(parts, "&")
}
