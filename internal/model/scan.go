package model

import "time"

// StrategyKind names the upstream mechanism that produced a scan's findings.
type StrategyKind string

const (
	// StrategyLocal drives a headless browser and runs axe-core in the page.
	StrategyLocal StrategyKind = "local"

	// StrategyRemote delegates rendering and auditing to the PageSpeed API.
	StrategyRemote StrategyKind = "remote"
)

// Valid reports whether k is a known strategy.
func (k StrategyKind) Valid() bool {
	return k == StrategyLocal || k == StrategyRemote
}

// MaxNodesPerViolation caps the node list carried by each Violation.
const MaxNodesPerViolation = 10

// ScanRequest is one inbound request to scan a URL.
type ScanRequest struct {
	// URL is the raw user-supplied input.
	URL string `json:"url" example:"https://example.com"`

	// Email optionally ties the scan to the free daily quota.
	Email string `json:"email,omitempty" example:"ada@example.com"`
}

// ScanResult is the canonical output of a scan. Its JSON field set is the
// contract the UI and quota layers depend on.
type ScanResult struct {
	// URL is the validated, https-upgraded target.
	URL string `json:"url"`

	// Score is the 0..100 accessibility score.
	Score int `json:"score"`

	// Violations are kept in upstream discovery order.
	Violations []Violation `json:"violations"`

	// Passes is the number of passing checks.
	Passes int `json:"passes"`

	// Incomplete is the number of inconclusive checks.
	Incomplete int `json:"incomplete"`

	// Timestamp is when the result was produced (UTC).
	Timestamp time.Time `json:"timestamp"`
}

// Violation is one normalized accessibility defect.
type Violation struct {
	ID          string `json:"id"`
	Impact      Impact `json:"impact,omitempty"`
	Description string `json:"description"`
	Help        string `json:"help"`

	// HelpURL is best effort and may be empty.
	HelpURL string `json:"helpUrl"`

	// Nodes is capped at MaxNodesPerViolation.
	Nodes []Node `json:"nodes"`
}

// Node is one affected DOM element.
type Node struct {
	HTML   string   `json:"html"`
	Target []string `json:"target"`
}

// NodeCount sums the node lists of vs.
func NodeCount(vs []Violation) int {
	n := 0
	for _, v := range vs {
		n += len(v.Nodes)
	}
	return n
}
