package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raysh454/clarity/internal/assessor"
	"github.com/raysh454/clarity/internal/engine"
	"github.com/raysh454/clarity/internal/logging"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/render"
	"github.com/raysh454/clarity/internal/utils"
	"golang.org/x/sync/semaphore"
)

const defaultScanTimeout = 2 * time.Minute

// Deps are the collaborators a DefaultAnalyzer drives. Browser and Invoker
// are required for the local strategy, Auditor for the remote one.
type Deps struct {
	Browser  render.Browser
	Invoker  engine.Invoker
	Auditor  RemoteAuditor
	Recorder Recorder
	Clock    func() time.Time
}

// DefaultAnalyzer is the scan orchestrator. It is the only component that
// releases render sessions.
type DefaultAnalyzer struct {
	cfg    Config
	deps   Deps
	sem    *semaphore.Weighted
	logger logging.Logger
}

// NewDefaultAnalyzer checks that deps cover cfg.Strategy.
func NewDefaultAnalyzer(cfg Config, deps Deps, logger logging.Logger) (*DefaultAnalyzer, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = model.StrategyLocal
	}
	if !cfg.Strategy.Valid() {
		return nil, model.NewScanError(model.KindConfigurationError, "Scanner is misconfigured",
			fmt.Errorf("unknown scan strategy %q", cfg.Strategy))
	}
	switch cfg.Strategy {
	case model.StrategyLocal:
		if deps.Browser == nil || deps.Invoker == nil {
			return nil, model.NewScanError(model.KindConfigurationError, "Scanner is misconfigured",
				errors.New("local strategy needs a browser and a rule engine"))
		}
	case model.StrategyRemote:
		if deps.Auditor == nil {
			return nil, model.NewScanError(model.KindConfigurationError, "Scanner is misconfigured",
				errors.New("remote strategy needs an auditor"))
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultScanTimeout
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	a := &DefaultAnalyzer{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(logging.Field{Key: "component", Value: "analyzer"}),
	}
	if cfg.MaxConcurrent > 0 {
		a.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}

	a.logger.Info("created analyzer",
		logging.Field{Key: "strategy", Value: string(cfg.Strategy)},
		logging.Field{Key: "timeout", Value: cfg.Timeout.String()},
		logging.Field{Key: "max_concurrent", Value: cfg.MaxConcurrent})
	return a, nil
}

func (a *DefaultAnalyzer) Strategy() model.StrategyKind { return a.cfg.Strategy }

// Scan runs validate, render, audit and normalize in order. Every external
// call is attempted once.
func (a *DefaultAnalyzer) Scan(ctx context.Context, raw string) (*model.ScanResult, error) {
	run := newScanRun(uuid.NewString(), a.logger)
	start := a.deps.Clock()

	res, err := a.scan(ctx, run, raw)

	elapsed := a.deps.Clock().Sub(start)
	if err != nil {
		run.to(StateFailed)
		kind := model.KindOf(err)
		fields := []logging.Field{
			{Key: "input", Value: raw},
			{Key: "kind", Value: string(kind)},
			{Key: "elapsed", Value: elapsed.String()},
			logging.Err(err),
		}
		if kind == model.KindInvalidURL {
			run.logger.Info("scan rejected", fields...)
		} else {
			run.logger.Warn("scan failed", fields...)
		}
		a.record(kind, elapsed)
		return nil, err
	}

	run.to(StateDone)
	run.logger.Info("scan complete",
		logging.Field{Key: "url", Value: res.URL},
		logging.Field{Key: "score", Value: res.Score},
		logging.Field{Key: "violations", Value: len(res.Violations)},
		logging.Field{Key: "elapsed", Value: elapsed.String()})
	a.record("", elapsed)
	return res, nil
}

func (a *DefaultAnalyzer) scan(ctx context.Context, run *scanRun, raw string) (*model.ScanResult, error) {
	run.to(StateValidating)
	url, err := utils.ValidateScanURL(raw, a.cfg.URL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	if a.sem != nil {
		if err := a.sem.Acquire(ctx, 1); err != nil {
			run.to(StateRendering)
			return nil, model.NewScanError(model.KindRenderTimeout, "Scanner is busy, try again shortly", err)
		}
		defer a.sem.Release(1)
	}

	var findings model.RawFindings
	switch a.cfg.Strategy {
	case model.StrategyRemote:
		findings, err = a.auditRemote(ctx, run, url)
	default:
		findings, err = a.auditLocal(ctx, run, url)
	}
	if err != nil {
		return nil, err
	}

	run.to(StateNormalizing)
	res, err := assessor.Normalize(findings, url, a.deps.Clock())
	if err != nil {
		var se *model.ScanError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, model.NewScanError(model.KindInternal, "Internal error", err)
	}
	return res, nil
}

// auditLocal owns the render session: release is registered as soon as it
// is acquired and runs before normalization starts.
func (a *DefaultAnalyzer) auditLocal(ctx context.Context, run *scanRun, url string) (model.RawFindings, error) {
	run.to(StateRendering)
	session, err := a.deps.Browser.Acquire(ctx)
	if err != nil {
		return nil, asScanError(ctx, err, model.KindRenderFailure, "Could not start the browser")
	}
	defer func() {
		session.Release()
		run.logger.Debug("render session released")
	}()

	if err := session.Navigate(ctx, url); err != nil {
		return nil, asScanError(ctx, err, model.KindRenderFailure, "Could not load the page")
	}

	if a.cfg.InspectDocument {
		if doc, err := session.Document(ctx); err != nil {
			run.logger.Debug("document snapshot failed", logging.Err(err))
		} else {
			run.logger.Info("page rendered",
				logging.Field{Key: "final_url", Value: doc.URL},
				logging.Field{Key: "title", Value: doc.Title},
				logging.Field{Key: "lang", Value: doc.Lang})
		}
	}

	run.to(StateAuditing)
	findings, err := a.deps.Invoker.Run(ctx, session)
	if err != nil {
		return nil, asScanError(ctx, err, model.KindRuleEngineError, "Accessibility engine failed on this page")
	}
	return findings, nil
}

// auditRemote makes the single audit call. The remote service runs its own
// engine, so auditing is a pass-through step.
func (a *DefaultAnalyzer) auditRemote(ctx context.Context, run *scanRun, url string) (model.RawFindings, error) {
	run.to(StateRendering)
	findings, err := a.deps.Auditor.Audit(ctx, url)
	if err != nil {
		return nil, asScanError(ctx, err, model.KindRemoteAuditError, "Audit service failed")
	}
	run.to(StateAuditing)
	return findings, nil
}

func (a *DefaultAnalyzer) record(kind model.ErrorKind, elapsed time.Duration) {
	if a.deps.Recorder != nil {
		a.deps.Recorder.ScanFinished(a.cfg.Strategy, kind, elapsed)
	}
}

// asScanError keeps typed errors as they are. Untyped errors become a
// RenderTimeout when the scan deadline passed, otherwise fallback.
func asScanError(ctx context.Context, err error, fallback model.ErrorKind, msg string) error {
	var se *model.ScanError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.NewScanError(model.KindRenderTimeout, "Scan timed out", err)
	}
	return model.NewScanError(fallback, msg, err)
}
