package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/clarity/internal/billing"
	"github.com/raysh454/clarity/internal/metrics"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/registry"
	"github.com/raysh454/clarity/internal/server"
	"github.com/raysh454/clarity/internal/testutil"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func sampleResult() *model.ScanResult {
	return &model.ScanResult{
		URL:   "https://example.com",
		Score: 96,
		Violations: []model.Violation{{
			ID: "image-alt", Impact: model.ImpactCritical, Help: "Images must have alternate text",
			Nodes: []model.Node{{HTML: "<img src=a.png>", Target: []string{"img"}}},
		}},
		Passes:    12,
		Timestamp: fixedNow,
	}
}

type testEnv struct {
	srv      *server.Server
	scanner  *testutil.FakeScanner
	checkout *testutil.FakeCheckout
	quota    *registry.Quota
	logger   *testutil.DummyLogger
}

func newTestServer(t *testing.T, mutate func(*server.Config, *server.Deps)) *testEnv {
	t.Helper()

	db, err := registry.Open(filepath.Join(t.TempDir(), "clarity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg, err := registry.NewRegistry(db, &testutil.DummyLogger{})
	require.NoError(t, err)

	env := &testEnv{
		scanner:  &testutil.FakeScanner{Result: sampleResult()},
		checkout: &testutil.FakeCheckout{URL: "https://checkout.stripe.com/c/cs_1"},
		quota:    registry.NewQuota(reg, 2, func() time.Time { return fixedNow }),
		logger:   &testutil.DummyLogger{},
	}

	promReg := prometheus.NewRegistry()
	cfg := server.Config{ListenAddr: ":0"}
	deps := server.Deps{
		Scanner:     env.scanner,
		Quota:       env.quota,
		Subscribers: reg,
		Checkout:    env.checkout,
		Metrics:     metrics.New(promReg, promReg),
		Clock:       func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	env.srv = server.NewServer(cfg, deps, env.logger)
	return env
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), "body: %s", rec.Body.String())
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body server.ErrorResponse
	decodeJSON(t, rec, &body)
	return body.Error
}

// ─── Middleware ────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = doJSON(t, env.srv, http.MethodOptions, "/api/scan", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestServer_RequestID(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodGet, "/healthz", "")
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestServer_RequestLogMasksEmail(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodPost, "/api/subscribe", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body, ok := env.logger.InfoField("http_request", "body")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"email": "a***@example.com"}, body)

	doJSON(t, env.srv, http.MethodGet, "/api/quota?email=grace@example.com", "")
	query, ok := env.logger.InfoField("http_request", "query")
	require.True(t, ok)
	assert.Equal(t, "g***@example.com", query.(url.Values).Get("email"))

	doJSON(t, env.srv, http.MethodPost, "/api/subscribe", `not json ada@example.com`)
	size, ok := env.logger.InfoField("http_request", "body_bytes")
	require.True(t, ok)
	assert.Equal(t, len(`not json ada@example.com`), size)
	_, ok = env.logger.InfoField("http_request", "body")
	assert.False(t, ok)
}

func TestServer_Health(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body server.HealthResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, server.HealthResponse{Status: "ok", Strategy: "local"}, body)
}

func TestServer_MetricsAndSwagger(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	doJSON(t, env.srv, http.MethodGet, "/api/scan?url=example.com", "")

	rec := doJSON(t, env.srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clarity_http_requests_total{method="GET",route="/api/scan",status="200"} 1`)

	rec = doJSON(t, env.srv, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/api/scan"`)
}

// ─── Scan ──────────────────────────────────────────────────────────────

func TestServer_ScanGet(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodGet, "/api/scan?url=+example.com+", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got map[string]any
	decodeJSON(t, rec, &got)
	assert.Equal(t, "https://example.com", got["url"])
	assert.EqualValues(t, 96, got["score"])
	assert.EqualValues(t, 12, got["passes"])
	assert.Equal(t, []string{"example.com"}, env.scanner.Calls())
	assert.Empty(t, rec.Header().Get("X-Scans-Remaining"))
}

func TestServer_ScanPost(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodPost, "/api/scan", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"https://example.com"}, env.scanner.Calls())
}

func TestServer_ScanMissingInput(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	tests := []struct {
		name, method, path, body, want string
	}{
		{"get no url", http.MethodGet, "/api/scan", "", "Provide ?url=https://…"},
		{"get blank url", http.MethodGet, "/api/scan?url=%20", "", "Provide ?url=https://…"},
		{"post empty body", http.MethodPost, "/api/scan", "", "Body must be { url: 'https://…' }"},
		{"post bad json", http.MethodPost, "/api/scan", "{nope", "Body must be { url: 'https://…' }"},
		{"post no url", http.MethodPost, "/api/scan", `{}`, "Body must be { url: 'https://…' }"},
	}
	for _, tt := range tests {
		rec := doJSON(t, env.srv, tt.method, tt.path, tt.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
		assert.Equal(t, tt.want, errorBody(t, rec), tt.name)
	}
	assert.Empty(t, env.scanner.Calls())
}

func TestServer_ScanErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{model.NewScanError(model.KindInvalidURL, "Provide a valid URL", nil), 400, "Provide ?url=https://…"},
		{model.NewScanError(model.KindRenderTimeout, "Page took longer than 1m0s to load", nil), 504, "Page took longer than 1m0s to load"},
		{model.NewScanError(model.KindRenderFailure, "Could not load the page", errors.New("net::ERR_NAME_NOT_RESOLVED")), 502, "Could not load the page"},
		{model.NewScanError(model.KindRuleEngineError, "Accessibility engine failed on this page", nil), 500, "Accessibility engine failed on this page"},
		{model.NewScanError(model.KindRemoteAuditError, "Audit service is unreachable", nil), 502, "Audit service is unreachable"},
		{model.NewScanError(model.KindConfigurationError, "Remote audit is not configured", nil), 500, "Remote audit is not configured"},
		{errors.New("boom: /var/secret"), 500, "Internal error"},
	}
	for _, tt := range tests {
		env := newTestServer(t, func(_ *server.Config, d *server.Deps) {
			d.Scanner = &testutil.FakeScanner{Err: tt.err}
		})
		rec := doJSON(t, env.srv, http.MethodGet, "/api/scan?url=example.com", "")
		assert.Equal(t, tt.wantStatus, rec.Code, tt.wantMsg)
		assert.Equal(t, tt.wantMsg, errorBody(t, rec))
	}
}

func TestServer_ScanQuota(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodGet, "/api/scan?url=example.com&email=ada@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Scans-Remaining"))

	rec = doJSON(t, env.srv, http.MethodPost, "/api/scan", `{"url":"example.com","email":"Ada@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Scans-Remaining"))

	rec = doJSON(t, env.srv, http.MethodGet, "/api/scan?url=example.com&email=ada@example.com", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Daily free scan limit reached", errorBody(t, rec))
	assert.Len(t, env.scanner.Calls(), 2)

	rec = doJSON(t, env.srv, http.MethodGet, "/api/scan?url=example.com&email=not-an-email", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_FailedScanDoesNotConsumeQuota(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, func(_ *server.Config, d *server.Deps) {
		d.Scanner = &testutil.FakeScanner{Err: model.NewScanError(model.KindRenderFailure, "Could not load the page", nil)}
	})

	rec := doJSON(t, env.srv, http.MethodGet, "/api/scan?url=example.com&email=ada@example.com", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	st, err := env.quota.Status(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Used)
}

func TestServer_ScanRateLimited(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, func(c *server.Config, _ *server.Deps) {
		c.RateLimit = server.RateLimitConfig{RPS: 0.001, Burst: 2}
	})

	for i := 0; i < 2; i++ {
		rec := doJSON(t, env.srv, http.MethodGet, "/api/scan?url=example.com", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doJSON(t, env.srv, http.MethodGet, "/api/scan?url=example.com", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many scans, slow down", errorBody(t, rec))

	// Other routes are not limited.
	rec = doJSON(t, env.srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ─── Quota & subscribe ─────────────────────────────────────────────────

func TestServer_Quota(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodGet, "/api/quota?email=ada@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st registry.QuotaStatus
	decodeJSON(t, rec, &st)
	assert.Equal(t, registry.QuotaStatus{Email: "ada@example.com", Day: "2026-10-15", Used: 0, Limit: 2, Remaining: 2}, st)

	rec = doJSON(t, env.srv, http.MethodGet, "/api/quota", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	off := newTestServer(t, func(_ *server.Config, d *server.Deps) { d.Quota = nil })
	rec = doJSON(t, off.srv, http.MethodGet, "/api/quota?email=ada@example.com", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Subscribe(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodPost, "/api/subscribe", `{"email":"Ada@Example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body server.SubscribeResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, server.SubscribeResponse{Email: "ada@example.com", CreatedAt: "2026-10-15T09:30:00Z"}, body)

	rec = doJSON(t, env.srv, http.MethodPost, "/api/subscribe", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, env.srv, http.MethodPost, "/api/subscribe", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Provide a valid email address", errorBody(t, rec))

	rec = doJSON(t, env.srv, http.MethodPost, "/api/subscribe", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ─── Checkout ──────────────────────────────────────────────────────────

func TestServer_Checkout(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, nil)

	rec := doJSON(t, env.srv, http.MethodPost, "/api/checkout", `{"email":"ada@example.com","plan":"personal"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body server.CheckoutResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", body.URL)

	rec = doJSON(t, env.srv, http.MethodPost, "/api/checkout", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Plan not specified", errorBody(t, rec))
}

func TestServer_CheckoutErrors(t *testing.T) {
	t.Parallel()

	invalid := newTestServer(t, func(_ *server.Config, d *server.Deps) {
		d.Checkout = &testutil.FakeCheckout{Err: billing.ErrInvalidPlan}
	})
	rec := doJSON(t, invalid.srv, http.MethodPost, "/api/checkout", `{"plan":"gold"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid plan", errorBody(t, rec))

	failing := newTestServer(t, func(_ *server.Config, d *server.Deps) {
		d.Checkout = &testutil.FakeCheckout{Err: errors.New("stripe down")}
	})
	rec = doJSON(t, failing.srv, http.MethodPost, "/api/checkout", `{"plan":"personal"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "stripe down")
}

func TestServer_CheckoutFreePlanWithRealBilling(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, func(_ *server.Config, d *server.Deps) {
		d.Checkout = billing.NewCheckout(billing.Config{}, nil, &testutil.DummyLogger{})
	})

	rec := doJSON(t, env.srv, http.MethodPost, "/api/checkout", `{"plan":"free"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"/scan"}`, rec.Body.String())
}
