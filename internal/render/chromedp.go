package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/raysh454/clarity/internal/logging"
	"github.com/raysh454/clarity/internal/model"
)

const closeTimeout = 5 * time.Second

// ChromeBrowser launches one headless Chrome per Acquire via chromedp.
type ChromeBrowser struct {
	opts   Options
	logger logging.Logger
}

// NewChromeBrowser returns a Browser backed by a local Chrome install.
func NewChromeBrowser(opts Options, logger logging.Logger) *ChromeBrowser {
	return &ChromeBrowser{
		opts:   opts.withDefaults(),
		logger: logger.With(logging.Field{Key: "backend", Value: "chromedp"}),
	}
}

func (b *ChromeBrowser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Headless,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(b.opts.UserAgent),
		chromedp.WindowSize(b.opts.WindowWidth, b.opts.WindowHeight),
		chromedp.WSURLReadTimeout(b.opts.LaunchTimeout),
	)
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}
	for _, f := range b.opts.ExtraFlags {
		name, value := splitFlag(f)
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// Acquire starts a browser process and opens a blank tab in it. The
// process is not tied to ctx; it lives until Release.
func (b *ChromeBrowser) Acquire(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			b.logger.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}),
	)

	s := &chromeSession{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		opts:        b.opts,
		logger:      b.logger,
	}

	if err := s.launch(ctx, b.opts.LaunchTimeout); err != nil {
		b.logger.Warn("browser launch failed", logging.Err(err))
		return nil, model.NewScanError(model.KindRenderFailure, "Could not start the browser", err)
	}

	b.logger.Debug("browser session acquired")
	return s, nil
}

type chromeSession struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
	logger      logging.Logger
	releaseOnce sync.Once
}

// launch performs the first Run on the tab context itself. chromedp binds
// the browser process to the context of that first Run, so it must not
// carry a deadline; the wait is bounded here instead.
func (s *chromeSession) launch(ctx context.Context, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(s.tabCtx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
		if err == nil {
			return nil
		}
	case <-timer.C:
		err = fmt.Errorf("%w: browser did not start within %s", context.DeadlineExceeded, timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.releaseOnce.Do(s.kill)
	if launchErr := <-done; launchErr != nil && launchErr != err {
		s.logger.Debug("launch aborted", logging.Err(launchErr))
	}
	return err
}

// run executes actions on an already launched tab, bounded by timeout and
// by the caller's ctx.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	s.logger.Info("navigating", logging.Field{Key: "url", Value: url})

	err := s.run(ctx, s.opts.NavigationTimeout,
		navigateAction(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return model.NewScanError(model.KindRenderTimeout,
			fmt.Sprintf("Page took longer than %s to load", s.opts.NavigationTimeout), err)
	default:
		return model.NewScanError(model.KindRenderFailure, "Could not load the page", err)
	}
}

var errNavigation = errors.New("navigation failed")

// navigateAction commits a navigation and returns at DOMContentLoaded.
// Unlike chromedp.Navigate it does not wait for the load event.
func navigateAction(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()

		loaded := make(chan struct{})
		var once sync.Once
		chromedp.ListenTarget(lctx, func(ev any) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				once.Do(func() { close(loaded) })
			}
		})

		_, _, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("%w: %s", errNavigation, errorText)
		}

		select {
		case <-loaded:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *chromeSession) Document(ctx context.Context) (*Document, error) {
	var (
		location string
		html     string
	)
	err := s.run(ctx, s.opts.ScriptTimeout,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot document: %w", err)
	}
	return ParseDocument(location, html)
}

func (s *chromeSession) Evaluate(ctx context.Context, expression string, out any) error {
	err := s.run(ctx, s.opts.ScriptTimeout,
		chromedp.Evaluate(expression, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true).WithReturnByValue(true)
		}),
	)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

func (s *chromeSession) Release() {
	s.releaseOnce.Do(s.shutdown)
}

// shutdown closes the browser gracefully, then kills the process if it
// has not exited within closeTimeout.
func (s *chromeSession) shutdown() {
	closeCtx, cancel := context.WithTimeout(s.tabCtx, closeTimeout)
	if err := chromedp.Cancel(closeCtx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("close browser", logging.Err(err))
	}
	cancel()
	s.kill()
	s.logger.Debug("browser session released")
}

// kill cancels the tab and allocator contexts, which terminates the process
// and waits for it to exit.
func (s *chromeSession) kill() {
	s.tabCancel()
	s.allocCancel()
}

func splitFlag(f string) (string, any) {
	for len(f) > 0 && f[0] == '-' {
		f = f[1:]
	}
	for i := 0; i < len(f); i++ {
		if f[i] == '=' {
			return f[:i], f[i+1:]
		}
	}
	return f, true
}
