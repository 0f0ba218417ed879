// Package engine runs the axe-core accessibility rules inside a rendered
// page and returns the raw findings.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/raysh454/clarity/internal/logging"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/render"
)

// DefaultAxeScriptURL is where axe-core is loaded from when no local copy
// is configured.
const DefaultAxeScriptURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.8.4/axe.min.js"

// DefaultRunTags is the ruleset profile: WCAG 2.0 level A and AA.
var DefaultRunTags = []string{"wcag2a", "wcag2aa"}

// Config controls how axe-core is injected and run.
type Config struct {
	// SourceFile, when set, is read once and injected inline.
	SourceFile string   `mapstructure:"axe_source_file"`
	ScriptURL  string   `mapstructure:"axe_script_url"`
	RunTags    []string `mapstructure:"run_tags"`
}

// Invoker produces raw findings from a session that has finished loading.
type Invoker interface {
	Run(ctx context.Context, session render.Session) (*model.AxeFindings, error)
}

// AxeInvoker injects axe-core and evaluates axe.run in the page.
type AxeInvoker struct {
	inject string
	run    string
	logger logging.Logger
}

// NewAxeInvoker prepares the injection and run scripts.
func NewAxeInvoker(cfg Config, logger logging.Logger) (*AxeInvoker, error) {
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = DefaultAxeScriptURL
	}
	if len(cfg.RunTags) == 0 {
		cfg.RunTags = DefaultRunTags
	}

	var inject string
	if cfg.SourceFile != "" {
		src, err := os.ReadFile(cfg.SourceFile)
		if err != nil {
			return nil, model.NewScanError(model.KindConfigurationError,
				"Accessibility engine is not available", fmt.Errorf("read axe source: %w", err))
		}
		inject = inlineInjectScript(string(src))
	} else {
		inject = tagInjectScript(cfg.ScriptURL)
	}

	run, err := runScript(cfg.RunTags)
	if err != nil {
		return nil, err
	}

	return &AxeInvoker{
		inject: inject,
		run:    run,
		logger: logger.With(logging.Field{Key: "component", Value: "engine"}),
	}, nil
}

// Run injects axe-core and executes it. Any failure is a RuleEngineError.
func (a *AxeInvoker) Run(ctx context.Context, session render.Session) (*model.AxeFindings, error) {
	var loaded bool
	if err := session.Evaluate(ctx, a.inject, &loaded); err != nil {
		a.logger.Warn("axe injection failed", logging.Err(err))
		return nil, engineError("Could not load the accessibility engine", err)
	}
	if !loaded {
		return nil, engineError("Could not load the accessibility engine", errors.New("axe global missing after injection"))
	}

	var findings model.AxeFindings
	if err := session.Evaluate(ctx, a.run, &findings); err != nil {
		a.logger.Warn("axe run failed", logging.Err(err))
		return nil, engineError("Accessibility engine failed on this page", err)
	}

	a.logger.Debug("axe run complete",
		logging.Field{Key: "violations", Value: len(findings.Violations)},
		logging.Field{Key: "passes", Value: len(findings.Passes)},
		logging.Field{Key: "incomplete", Value: len(findings.Incomplete)},
		logging.Field{Key: "engine_version", Value: findings.TestEngine.Version})
	return &findings, nil
}

func engineError(msg string, cause error) error {
	return model.NewScanError(model.KindRuleEngineError, msg, cause)
}

// tagInjectScript adds a script tag for url and resolves to true once
// window.axe is defined.
func tagInjectScript(url string) string {
	quoted, _ := json.Marshal(url)
	return `new Promise(function (resolve, reject) {
	if (window.axe) { resolve(true); return; }
	var s = document.createElement("script");
	s.src = ` + string(quoted) + `;
	s.onload = function () { resolve(!!window.axe); };
	s.onerror = function () { reject(new Error("failed to load " + s.src)); };
	(document.head || document.documentElement).appendChild(s);
})`
}

// inlineInjectScript evaluates the axe source directly. Wrapping it in a
// function keeps its top-level names out of the page scope.
func inlineInjectScript(src string) string {
	return `(function () {
if (!window.axe) {
` + src + `
}
return !!window.axe;
})()`
}

func runScript(tags []string) (string, error) {
	opts := map[string]any{
		"runOnly":     map[string]any{"type": "tag", "values": tags},
		"resultTypes": []string{"violations", "incomplete", "passes"},
		"reporter":    "v2",
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode axe options: %w", err)
	}
	return `axe.run(document, ` + string(b) + `)`, nil
}
