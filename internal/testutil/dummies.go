// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/clarity/internal/logging"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/render"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string

	// InfoFields holds the fields of each Info call, parallel to Infos.
	InfoFields [][]logging.Field
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
	l.InfoFields = append(l.InfoFields, append([]logging.Field(nil), fields...))
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// InfoMessages returns a copy of the recorded info messages.
func (l *DummyLogger) InfoMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Infos...)
}

// InfoField returns the value of key on the most recent Info entry logged
// with msg.
func (l *DummyLogger) InfoField(msg, key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.Infos) - 1; i >= 0; i-- {
		if l.Infos[i] != msg {
			continue
		}
		for _, f := range l.InfoFields[i] {
			if f.Key == key {
				return f.Value, true
			}
		}
		return nil, false
	}
	return nil, false
}

// ─── Browser ───────────────────────────────────────────────────────────

// FakeBrowser implements render.Browser. Every Acquire returns the same
// Session so tests can inspect it afterwards.
type FakeBrowser struct {
	Session    *FakeSession
	AcquireErr error
	Acquires   atomic.Int32
}

func (b *FakeBrowser) Acquire(ctx context.Context) (render.Session, error) {
	b.Acquires.Add(1)
	if b.AcquireErr != nil {
		return nil, b.AcquireErr
	}
	if b.Session == nil {
		b.Session = &FakeSession{}
	}
	return b.Session, nil
}

// FakeSession implements render.Session.
//
// NavigateDelay blocks Navigate until it elapses or ctx is done. Evaluate
// answers from Results, keyed by call index, marshalling the value into out
// the way Chrome returns JSON by value.
type FakeSession struct {
	NavigateErr   error
	NavigateDelay time.Duration
	Doc           *render.Document
	EvaluateErrs  map[int]error
	Results       map[int]any

	mu        sync.Mutex
	Navigated []string
	Scripts   []string
	releases  atomic.Int32
}

func (s *FakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.Navigated = append(s.Navigated, url)
	s.mu.Unlock()

	if s.NavigateDelay > 0 {
		select {
		case <-time.After(s.NavigateDelay):
		case <-ctx.Done():
			return model.NewScanError(model.KindRenderTimeout, "Page took too long to load", ctx.Err())
		}
	}
	return s.NavigateErr
}

func (s *FakeSession) Document(context.Context) (*render.Document, error) {
	if s.Doc == nil {
		return &render.Document{}, nil
	}
	return s.Doc, nil
}

func (s *FakeSession) Evaluate(_ context.Context, expression string, out any) error {
	s.mu.Lock()
	idx := len(s.Scripts)
	s.Scripts = append(s.Scripts, expression)
	s.mu.Unlock()

	if err := s.EvaluateErrs[idx]; err != nil {
		return err
	}
	v, ok := s.Results[idx]
	if !ok {
		return errors.New("fake session: no result for evaluate call")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (s *FakeSession) Release() { s.releases.Add(1) }

// Releases reports how many times Release was called.
func (s *FakeSession) Releases() int { return int(s.releases.Load()) }

// ─── Rule engine ───────────────────────────────────────────────────────

// FakeInvoker implements engine.Invoker with a canned result.
type FakeInvoker struct {
	Findings *model.AxeFindings
	Err      error
	Calls    atomic.Int32
}

func (f *FakeInvoker) Run(context.Context, render.Session) (*model.AxeFindings, error) {
	f.Calls.Add(1)
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Findings == nil {
		return &model.AxeFindings{}, nil
	}
	return f.Findings, nil
}

// ─── Remote auditor ────────────────────────────────────────────────────

// FakeAuditor implements analyzer.RemoteAuditor.
type FakeAuditor struct {
	Findings *model.LighthouseFindings
	Err      error

	mu   sync.Mutex
	URLs []string
}

func (f *FakeAuditor) Audit(_ context.Context, url string) (*model.LighthouseFindings, error) {
	f.mu.Lock()
	f.URLs = append(f.URLs, url)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Findings, nil
}

// ─── Scanner ───────────────────────────────────────────────────────────

// FakeScanner implements server.Scanner.
type FakeScanner struct {
	Result *model.ScanResult
	Err    error
	Kind   model.StrategyKind

	mu     sync.Mutex
	Inputs []string
}

func (f *FakeScanner) Scan(_ context.Context, raw string) (*model.ScanResult, error) {
	f.mu.Lock()
	f.Inputs = append(f.Inputs, raw)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}

func (f *FakeScanner) Strategy() model.StrategyKind {
	if f.Kind == "" {
		return model.StrategyLocal
	}
	return f.Kind
}

func (f *FakeScanner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Inputs...)
}

// ─── Checkout ──────────────────────────────────────────────────────────

// FakeCheckout implements server.CheckoutCreator.
type FakeCheckout struct {
	URL string
	Err error

	mu    sync.Mutex
	Plans []string
}

func (f *FakeCheckout) CreateSession(_ context.Context, plan, email string) (string, error) {
	f.mu.Lock()
	f.Plans = append(f.Plans, plan)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return f.URL, nil
}
