package assessor

import (
	"time"

	"github.com/raysh454/clarity/internal/model"
)

// NormalizeLocal maps an axe-core result. Every violation is kept in the
// order axe reported it, including ones without an impact.
func NormalizeLocal(f *model.AxeFindings, url string, now time.Time) *model.ScanResult {
	violations := make([]model.Violation, 0, len(f.Violations))
	nodeCount := 0

	for _, rule := range f.Violations {
		nodeCount += len(rule.Nodes)

		nodes := make([]model.Node, 0, min(len(rule.Nodes), model.MaxNodesPerViolation))
		for _, n := range rule.Nodes {
			if len(nodes) == model.MaxNodesPerViolation {
				break
			}
			nodes = append(nodes, axeNode(n))
		}

		violations = append(violations, model.Violation{
			ID:          rule.ID,
			Impact:      model.ParseImpact(rule.Impact),
			Description: rule.Description,
			Help:        rule.Help,
			HelpURL:     rule.HelpURL,
			Nodes:       nodes,
		})
	}

	return &model.ScanResult{
		URL:        url,
		Score:      LocalScore(nodeCount),
		Violations: violations,
		Passes:     len(f.Passes),
		Incomplete: len(f.Incomplete),
		Timestamp:  now.UTC(),
	}
}

func axeNode(n model.AxeNode) model.Node {
	target := make([]string, 0, len(n.Target))
	for _, sel := range n.Target {
		target = append(target, flattenSelector(sel))
	}
	return model.Node{HTML: n.HTML, Target: target}
}
