package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawFindings is the upstream output of one scan before normalization. It is
// implemented by *AxeFindings and *LighthouseFindings only.
type RawFindings interface {
	Strategy() StrategyKind
	isRawFindings()
}

// ─── Local: axe-core v2 reporter ───────────────────────────────────────

// AxeFindings is the subset of an axe.run() result that normalization reads.
type AxeFindings struct {
	URL        string    `json:"url"`
	Violations []AxeRule `json:"violations"`
	Passes     []AxeRule `json:"passes"`
	Incomplete []AxeRule `json:"incomplete"`
	TestEngine struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"testEngine"`
}

func (*AxeFindings) Strategy() StrategyKind { return StrategyLocal }
func (*AxeFindings) isRawFindings()         {}

// AxeRule is one rule outcome. Impact is empty when axe reports null.
type AxeRule struct {
	ID          string    `json:"id"`
	Impact      string    `json:"impact"`
	Description string    `json:"description"`
	Help        string    `json:"help"`
	HelpURL     string    `json:"helpUrl"`
	Tags        []string  `json:"tags,omitempty"`
	Nodes       []AxeNode `json:"nodes"`
}

// AxeNode is one element matched by a rule.
type AxeNode struct {
	HTML   string        `json:"html"`
	Target []AxeSelector `json:"target"`
}

// AxeSelector is one entry of an axe target. Plain selectors decode to a
// single part; selectors that cross shadow roots decode to one part per
// tree, outermost first.
type AxeSelector []string

func (s *AxeSelector) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = AxeSelector{one}
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("axe selector: %w", err)
	}
	*s = parts
	return nil
}

// ─── Remote: Lighthouse result from PageSpeed Insights ─────────────────

// LighthouseFindings mirrors the lighthouseResult object of a PageSpeed
// Insights response.
type LighthouseFindings struct {
	FinalURL   string `json:"finalUrl"`
	Categories struct {
		Accessibility *struct {
			Score *float64 `json:"score"`
		} `json:"accessibility"`
	} `json:"categories"`
	Audits LighthouseAudits `json:"audits"`
}

func (*LighthouseFindings) Strategy() StrategyKind { return StrategyRemote }
func (*LighthouseFindings) isRawFindings()         {}

// CategoryScore returns the accessibility category score, if reported.
func (f *LighthouseFindings) CategoryScore() (float64, bool) {
	if f.Categories.Accessibility == nil || f.Categories.Accessibility.Score == nil {
		return 0, false
	}
	return *f.Categories.Accessibility.Score, true
}

// LighthouseAudit is one audit record. A nil Score means the audit did not
// produce one (manual or not applicable).
type LighthouseAudit struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Score       *float64 `json:"score"`
	Details     *struct {
		Items []struct {
			Node *LighthouseNode `json:"node"`
		} `json:"items"`
	} `json:"details,omitempty"`
}

// LighthouseNode is the node descriptor carried by audit detail items.
type LighthouseNode struct {
	Snippet  string `json:"snippet"`
	Selector string `json:"selector"`
}

// Nodes returns the node descriptors of the audit's detail items.
func (a *LighthouseAudit) Nodes() []LighthouseNode {
	if a.Details == nil {
		return nil
	}
	out := make([]LighthouseNode, 0, len(a.Details.Items))
	for _, it := range a.Details.Items {
		if it.Node != nil {
			out = append(out, *it.Node)
		}
	}
	return out
}

// LighthouseAudits is the audits object decoded in document order. A Go map
// would lose the order violations are reported in.
type LighthouseAudits []LighthouseAudit

func (a *LighthouseAudits) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("audits: %w", err)
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("audits: expected object, got %v", tok)
	}

	var out LighthouseAudits
	for dec.More() {
		// key
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("audits: %w", err)
		}
		var audit LighthouseAudit
		if err := dec.Decode(&audit); err != nil {
			return fmt.Errorf("audits: %w", err)
		}
		out = append(out, audit)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("audits: %w", err)
	}

	*a = out
	return nil
}
