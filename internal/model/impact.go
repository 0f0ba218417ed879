package model

import "strings"

// Impact is a severity level. The zero value means no impact was reported.
type Impact string

const (
	ImpactMinor    Impact = "minor"
	ImpactModerate Impact = "moderate"
	ImpactSerious  Impact = "serious"
	ImpactCritical Impact = "critical"
)

var impactRank = map[Impact]int{
	ImpactMinor:    1,
	ImpactModerate: 2,
	ImpactSerious:  3,
	ImpactCritical: 4,
}

// ParseImpact maps an upstream impact string onto the ordered set. Unknown
// or empty input yields the zero Impact.
func ParseImpact(s string) Impact {
	imp := Impact(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := impactRank[imp]; ok {
		return imp
	}
	return ""
}

// Rank orders impacts: 0 for none, 1 (minor) through 4 (critical).
func (i Impact) Rank() int {
	return impactRank[i]
}

// Less reports whether i is less severe than other.
func (i Impact) Less(other Impact) bool {
	return i.Rank() < other.Rank()
}

// ImpactFromAuditScore maps a fractional audit sub-score onto an impact. A
// nil score is treated as moderate.
func ImpactFromAuditScore(score *float64) Impact {
	if score == nil {
		return ImpactModerate
	}
	switch s := *score; {
	case s >= 0.9:
		return ImpactMinor
	case s >= 0.6:
		return ImpactModerate
	case s >= 0.3:
		return ImpactSerious
	default:
		return ImpactCritical
	}
}
