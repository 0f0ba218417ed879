package assessor

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/raysh454/clarity/internal/model"
)

// first [text](https://...) link in a Lighthouse description
var markdownLink = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+)\)`)

// NormalizeRemote maps a Lighthouse accessibility result. The score comes
// from the category score alone, never from the individual audits.
func NormalizeRemote(f *model.LighthouseFindings, url string, now time.Time) (*model.ScanResult, error) {
	category, ok := f.CategoryScore()
	if !ok {
		return nil, model.NewScanError(model.KindRemoteAuditError,
			"Audit service returned no accessibility score", errors.New("missing categories.accessibility.score"))
	}

	violations := []model.Violation{}
	passes := 0
	for i := range f.Audits {
		a := &f.Audits[i]
		if a.Score != nil && *a.Score == 1 {
			passes++
			continue
		}
		if a.Score == nil || a.ID == "" || a.Title == "" {
			continue
		}
		violations = append(violations, model.Violation{
			ID:          a.ID,
			Impact:      model.ImpactFromAuditScore(a.Score),
			Description: a.Description,
			Help:        a.Title,
			HelpURL:     DocURL(a.Description),
			Nodes:       lighthouseNodes(a.Nodes()),
		})
	}

	return &model.ScanResult{
		URL:        url,
		Score:      RemoteScore(category),
		Violations: violations,
		Passes:     passes,
		Incomplete: 0,
		Timestamp:  now.UTC(),
	}, nil
}

// RemoteScore scales a 0..1 category score to 0..100.
func RemoteScore(category float64) int {
	s := int(math.Round(category * 100))
	return max(0, min(100, s))
}

// DocURL returns the first markdown link target in description, or "".
func DocURL(description string) string {
	m := markdownLink.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return m[1]
}

func lighthouseNodes(in []model.LighthouseNode) []model.Node {
	out := make([]model.Node, 0, min(len(in), model.MaxNodesPerViolation))
	for _, n := range in {
		if len(out) == model.MaxNodesPerViolation {
			break
		}
		var target []string
		if sel := strings.TrimSpace(n.Selector); sel != "" {
			target = []string{sel}
		} else {
			target = []string{}
		}
		out = append(out, model.Node{HTML: n.Snippet, Target: target})
	}
	return out
}
