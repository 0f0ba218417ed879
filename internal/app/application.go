package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raysh454/clarity/internal/analyzer"
	"github.com/raysh454/clarity/internal/billing"
	"github.com/raysh454/clarity/internal/engine"
	"github.com/raysh454/clarity/internal/logging"
	"github.com/raysh454/clarity/internal/metrics"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/pagespeed"
	"github.com/raysh454/clarity/internal/registry"
	"github.com/raysh454/clarity/internal/render"
	"github.com/raysh454/clarity/internal/server"
	"github.com/raysh454/clarity/internal/webclient"
)

const (
	shutdownTimeout = 15 * time.Second

	// Usage rows older than this are pruned once a day.
	usageRetention = 30 * 24 * time.Hour
)

// Application is the global runtime state container. It owns every
// component built from Config and closes them in reverse order.
type Application struct {
	Config   *Config
	Logger   logging.Logger
	Scanner  *analyzer.DefaultAnalyzer
	Registry *registry.Registry
	Metrics  *metrics.Metrics
	Server   *server.Server

	clock   func() time.Time
	closers []func() error
}

// Option customises NewApplication.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	clock   func() time.Time
}

// WithMetrics replaces the process-wide metrics instance.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithClock replaces time.Now for quota and result timestamps.
func WithClock(clock func() time.Time) Option { return func(o *options) { o.clock = clock } }

// NewApplication builds the scanner, the registry, billing and the HTTP
// server from cfg.
func NewApplication(cfg *Config, logger logging.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.Default()
	}

	a := &Application{Config: cfg, Logger: logger, Metrics: o.metrics, clock: o.clock}

	scanner, closeScanner, err := NewScanner(cfg, logger, o.metrics, o.clock)
	if err != nil {
		return nil, err
	}
	a.Scanner = scanner
	a.closers = append(a.closers, closeScanner)

	deps := server.Deps{
		Scanner:  scanner,
		Checkout: billing.NewCheckout(cfg.Billing, nil, logger),
		Metrics:  o.metrics,
		Clock:    o.clock,
	}

	if cfg.Storage.Path != "" {
		db, err := registry.Open(cfg.Storage.Path)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		reg, err := registry.NewRegistry(db, logger)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("creating registry: %w", err)
		}
		a.Registry = reg
		deps.Subscribers = reg
		if cfg.Quota.Enabled {
			deps.Quota = registry.NewQuota(reg, cfg.Quota.FreeScansPerDay, o.clock)
		}
	}

	a.Server = server.NewServer(cfg.Server, deps, logger)
	return a, nil
}

// NewScanner builds the analyzer for cfg.Scan.Strategy. The returned func
// releases whatever the strategy holds open.
func NewScanner(cfg *Config, logger logging.Logger, rec analyzer.Recorder, clock func() time.Time) (*analyzer.DefaultAnalyzer, func() error, error) {
	deps := analyzer.Deps{Recorder: rec, Clock: clock}
	closeFn := func() error { return nil }

	switch cfg.Scan.Strategy {
	case model.StrategyRemote:
		web, err := webclient.NewNetHTTPClient(cfg.Remote.HTTP, logger, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("creating web client: %w", err)
		}
		deps.Auditor = pagespeed.NewClient(cfg.Remote.Config, web, logger)
		closeFn = web.Close
	default:
		invoker, err := engine.NewAxeInvoker(cfg.Engine, logger)
		if err != nil {
			return nil, nil, err
		}
		deps.Browser = render.NewChromeBrowser(cfg.Browser, logger)
		deps.Invoker = invoker
	}

	a, err := analyzer.NewDefaultAnalyzer(cfg.Scan, deps, logger)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return a, closeFn, nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.Config.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := a.Server.HTTPServer()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening",
			logging.Field{Key: "addr", Value: ln.Addr().String()},
			logging.Field{Key: "strategy", Value: string(a.Scanner.Strategy())})
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("application shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if a.Registry != nil {
		g.Go(func() error {
			a.pruneUsage(gctx, 24*time.Hour)
			return nil
		})
	}

	return g.Wait()
}

func (a *Application) pruneUsage(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		before := registry.DayStamp(a.clock().Add(-usageRetention))
		if n, err := a.Registry.PruneUsage(ctx, before); err != nil {
			if ctx.Err() == nil {
				a.Logger.Warn("pruning scan usage", logging.Err(err))
			}
		} else if n > 0 {
			a.Logger.Info("pruned scan usage", logging.Field{Key: "rows", Value: n}, logging.Field{Key: "before", Value: before})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases components in reverse construction order.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
