// Package render drives the page load half of a local scan: a headless
// browser is started per scan, navigated to the target and then handed to
// the rule engine, which evaluates script inside the loaded page.
package render

import "context"

// Browser hands out isolated sessions. Each session owns its own browser
// process; nothing is shared or pooled across scans.
type Browser interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session is one live browser tab. Whoever acquires a session must call
// Release exactly once it is done with it.
type Session interface {
	// Navigate loads url and returns once the document body is ready.
	// Failures are *model.ScanError of kind RenderTimeout or RenderFailure.
	Navigate(ctx context.Context, url string) error

	// Document snapshots the rendered DOM.
	Document(ctx context.Context) (*Document, error)

	// Evaluate runs expression in the page's own JavaScript context,
	// awaiting a returned promise, and decodes the result into out.
	Evaluate(ctx context.Context, expression string, out any) error

	// Release terminates the browser. Extra calls are no-ops.
	Release()
}
