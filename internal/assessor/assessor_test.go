package assessor

import (
	"fmt"
	"testing"
	"time"

	"github.com/raysh454/clarity/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stamp = time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("CET", 3600))

func ptr(v float64) *float64 { return &v }

func axeRule(id, impact string, nodes int) model.AxeRule {
	r := model.AxeRule{ID: id, Impact: impact, Description: id + " desc", Help: id + " help", HelpURL: "https://dequeuniversity.com/rules/axe/4.8/" + id}
	for i := 0; i < nodes; i++ {
		r.Nodes = append(r.Nodes, model.AxeNode{
			HTML:   fmt.Sprintf("<div id=n%d>", i),
			Target: []model.AxeSelector{{fmt.Sprintf("#n%d", i)}},
		})
	}
	return r
}

// ─── Local ─────────────────────────────────────────────────────────────

func TestLocalScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, LocalScore(0))
	assert.Equal(t, 94, LocalScore(3))
	assert.Equal(t, 22, LocalScore(39))
	assert.Equal(t, 20, LocalScore(40))
	assert.Equal(t, 20, LocalScore(1000))

	prev := LocalScore(0)
	for n := 1; n <= 120; n++ {
		s := LocalScore(n)
		assert.LessOrEqual(t, s, prev, n)
		assert.GreaterOrEqual(t, s, 0)
		prev = s
	}
}

func TestNormalizeLocal_SingleViolationThreeNodes(t *testing.T) {
	t.Parallel()

	raw := &model.AxeFindings{Violations: []model.AxeRule{axeRule("image-alt", "critical", 3)}}
	res, err := Normalize(raw, "https://example.com", stamp)
	require.NoError(t, err)

	assert.Equal(t, 94, res.Score)
	assert.Equal(t, "https://example.com", res.URL)
	assert.Equal(t, stamp.UTC(), res.Timestamp)
	assert.Equal(t, time.UTC, res.Timestamp.Location())
	require.Len(t, res.Violations, 1)
	v := res.Violations[0]
	assert.Equal(t, model.ImpactCritical, v.Impact)
	assert.Equal(t, "image-alt help", v.Help)
	assert.Equal(t, "https://dequeuniversity.com/rules/axe/4.8/image-alt", v.HelpURL)
	assert.Equal(t, []string{"#n0"}, v.Nodes[0].Target)
}

func TestNormalizeLocal_KeepsEveryViolationInOrder(t *testing.T) {
	t.Parallel()

	raw := &model.AxeFindings{
		Violations: []model.AxeRule{
			axeRule("region", "", 1),
			axeRule("color-contrast", "serious", 2),
			axeRule("label", "bogus", 0),
		},
		Passes:     []model.AxeRule{axeRule("a", "", 0), axeRule("b", "", 0)},
		Incomplete: []model.AxeRule{axeRule("c", "", 0)},
	}
	res := NormalizeLocal(raw, "https://example.com", stamp)

	require.Len(t, res.Violations, 3)
	assert.Equal(t, "region", res.Violations[0].ID)
	assert.Equal(t, model.Impact(""), res.Violations[0].Impact)
	assert.Equal(t, "color-contrast", res.Violations[1].ID)
	assert.Equal(t, "label", res.Violations[2].ID)
	assert.NotNil(t, res.Violations[2].Nodes)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, 1, res.Incomplete)
	assert.Equal(t, 94, res.Score)
}

func TestNormalizeLocal_CapsNodesButScoresAll(t *testing.T) {
	t.Parallel()

	raw := &model.AxeFindings{Violations: []model.AxeRule{axeRule("link-name", "serious", 25)}}
	res := NormalizeLocal(raw, "https://example.com", stamp)

	assert.Len(t, res.Violations[0].Nodes, model.MaxNodesPerViolation)
	assert.Equal(t, 50, res.Score, "score uses all 25 nodes")
}

func TestNormalizeLocal_FlattensShadowSelectors(t *testing.T) {
	t.Parallel()

	raw := &model.AxeFindings{Violations: []model.AxeRule{{
		ID: "button-name",
		Nodes: []model.AxeNode{{
			HTML:   "<button>",
			Target: []model.AxeSelector{{"app-shell", "nav-bar", "button.menu"}, {"#plain"}},
		}},
	}}}
	res := NormalizeLocal(raw, "https://example.com", stamp)

	assert.Equal(t, []string{"app-shell >>> nav-bar >>> button.menu", "#plain"}, res.Violations[0].Nodes[0].Target)
}

func TestNormalizeLocal_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	raw := &model.AxeFindings{Violations: []model.AxeRule{axeRule("x", "minor", 12)}}
	before := len(raw.Violations[0].Nodes)
	_ = NormalizeLocal(raw, "https://example.com", stamp)
	assert.Equal(t, before, len(raw.Violations[0].Nodes))
	assert.Equal(t, "minor", raw.Violations[0].Impact)
}

func TestNormalizeLocal_EmptyFindings(t *testing.T) {
	t.Parallel()

	res := NormalizeLocal(&model.AxeFindings{}, "https://example.com", stamp)
	assert.Equal(t, 100, res.Score)
	assert.NotNil(t, res.Violations)
	assert.Empty(t, res.Violations)
}

// ─── Remote ────────────────────────────────────────────────────────────

func lighthouse(category *float64, audits ...model.LighthouseAudit) *model.LighthouseFindings {
	f := &model.LighthouseFindings{Audits: audits}
	if category != nil {
		f.Categories.Accessibility = &struct {
			Score *float64 `json:"score"`
		}{Score: category}
	}
	return f
}

func TestNormalizeRemote_ScoreFromCategory(t *testing.T) {
	t.Parallel()

	f := lighthouse(ptr(0.87),
		model.LighthouseAudit{ID: "a", Title: "A", Score: ptr(0)},
		model.LighthouseAudit{ID: "b", Title: "B", Score: ptr(0)},
	)
	res, err := Normalize(f, "https://example.com", stamp)
	require.NoError(t, err)
	assert.Equal(t, 87, res.Score)
	assert.Equal(t, 0, res.Incomplete)
}

func TestRemoteScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 87, RemoteScore(0.87))
	assert.Equal(t, 100, RemoteScore(1))
	assert.Equal(t, 0, RemoteScore(0))
	assert.Equal(t, 100, RemoteScore(1.2))
	assert.Equal(t, 0, RemoteScore(-0.3))
}

func TestNormalizeRemote_Inclusion(t *testing.T) {
	t.Parallel()

	f := lighthouse(ptr(0.5),
		model.LighthouseAudit{ID: "passing", Title: "Passing", Score: ptr(1)},
		model.LighthouseAudit{ID: "minor", Title: "Minor", Score: ptr(0.95)},
		model.LighthouseAudit{ID: "manual", Title: "Manual", Score: nil},
		model.LighthouseAudit{ID: "", Title: "No id", Score: ptr(0)},
		model.LighthouseAudit{ID: "notitle", Title: "", Score: ptr(0)},
		model.LighthouseAudit{ID: "moderate", Title: "Moderate", Score: ptr(0.6)},
		model.LighthouseAudit{ID: "serious", Title: "Serious", Score: ptr(0.3)},
		model.LighthouseAudit{ID: "critical", Title: "Critical", Score: ptr(0.1)},
		model.LighthouseAudit{ID: "also-passing", Title: "Also", Score: ptr(1)},
	)
	res, err := NormalizeRemote(f, "https://example.com", stamp)
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Violations))
	for _, v := range res.Violations {
		ids = append(ids, v.ID)
		assert.NotEqual(t, model.Impact(""), v.Impact)
	}
	assert.Equal(t, []string{"minor", "moderate", "serious", "critical"}, ids)
	assert.Equal(t, model.ImpactMinor, res.Violations[0].Impact)
	assert.Equal(t, model.ImpactModerate, res.Violations[1].Impact)
	assert.Equal(t, model.ImpactSerious, res.Violations[2].Impact)
	assert.Equal(t, model.ImpactCritical, res.Violations[3].Impact)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, 50, res.Score)
}

func TestNormalizeRemote_ViolationShape(t *testing.T) {
	t.Parallel()

	audit := model.LighthouseAudit{
		ID:          "color-contrast",
		Title:       "Contrast is too low",
		Description: "Low-contrast text is hard to read. [Learn more](https://dequeuniversity.com/rules/axe/4.8/color-contrast) or [see this](https://example.org).",
		Score:       ptr(0),
	}
	audit.Details = &struct {
		Items []struct {
			Node *model.LighthouseNode `json:"node"`
		} `json:"items"`
	}{}
	for i := 0; i < 14; i++ {
		audit.Details.Items = append(audit.Details.Items, struct {
			Node *model.LighthouseNode `json:"node"`
		}{Node: &model.LighthouseNode{Snippet: "<p>", Selector: fmt.Sprintf("p:nth-child(%d)", i)}})
	}

	res, err := NormalizeRemote(lighthouse(ptr(0.4), audit), "https://example.com", stamp)
	require.NoError(t, err)

	v := res.Violations[0]
	assert.Equal(t, "Contrast is too low", v.Help)
	assert.Equal(t, audit.Description, v.Description)
	assert.Equal(t, "https://dequeuniversity.com/rules/axe/4.8/color-contrast", v.HelpURL)
	assert.Len(t, v.Nodes, model.MaxNodesPerViolation)
	assert.Equal(t, []string{"p:nth-child(0)"}, v.Nodes[0].Target)
}

func TestNormalizeRemote_MissingCategory(t *testing.T) {
	t.Parallel()

	_, err := NormalizeRemote(lighthouse(nil), "https://example.com", stamp)
	require.Error(t, err)
	assert.Equal(t, model.KindRemoteAuditError, model.KindOf(err))
}

func TestDocURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://a.example/x", DocURL("See [docs](https://a.example/x)."))
	assert.Equal(t, "", DocURL("No links here"))
	assert.Equal(t, "", DocURL("[relative](/docs)"))
}

// ─── Dispatch ──────────────────────────────────────────────────────────

func TestNormalize_NilVariant(t *testing.T) {
	t.Parallel()

	_, err := Normalize((*model.AxeFindings)(nil), "https://example.com", stamp)
	require.Error(t, err)
	_, err = Normalize(nil, "https://example.com", stamp)
	require.Error(t, err)
}
