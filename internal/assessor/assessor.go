// Package assessor turns raw engine output into the canonical ScanResult
// and computes its score. Everything here is pure: no I/O, no clock reads,
// and inputs are never modified.
package assessor

import (
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/clarity/internal/model"
)

// ShadowSelectorSeparator joins the parts of a selector path that crosses
// shadow roots.
const ShadowSelectorSeparator = " >>> "

// Normalize dispatches on the findings variant. url is the validated scan
// target and now the generation time.
func Normalize(raw model.RawFindings, url string, now time.Time) (*model.ScanResult, error) {
	switch f := raw.(type) {
	case *model.AxeFindings:
		if f == nil {
			break
		}
		return NormalizeLocal(f, url, now), nil
	case *model.LighthouseFindings:
		if f == nil {
			break
		}
		return NormalizeRemote(f, url, now)
	}
	return nil, fmt.Errorf("normalize: unsupported findings %T", raw)
}

// LocalScore is the volume penalty model: two points per affected node,
// capped at 80, floored at 0. Severity is not weighted.
func LocalScore(nodeCount int) int {
	penalty := min(80, nodeCount*2)
	return max(0, 100-penalty)
}

func flattenSelector(parts []string) string {
	return strings.Join(parts, ShadowSelectorSeparator)
}
