package app

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/raysh454/clarity/internal/metrics"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/testutil"
)

func testMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	return metrics.New(reg, reg)
}

func remoteConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Scan.Strategy = model.StrategyRemote
	cfg.Remote.AllowAnonymous = true
	cfg.Remote.HTTP.DNSCacheRefresh = 0
	cfg.Storage.Path = filepath.Join(t.TempDir(), "clarity.db")
	return cfg
}

func TestNewApplication_WiresComponents(t *testing.T) {
	t.Parallel()
	cfg := remoteConfig(t)

	a, err := NewApplication(cfg, &testutil.DummyLogger{}, WithMetrics(testMetrics()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, model.StrategyRemote, a.Scanner.Strategy())
	assert.NotNil(t, a.Registry)
	assert.NotNil(t, a.Server)
}

func TestNewApplication_LocalStrategyMissingAxeSource(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Engine.SourceFile = filepath.Join(t.TempDir(), "axe.min.js")

	_, err := NewApplication(cfg, &testutil.DummyLogger{}, WithMetrics(testMetrics()))
	require.Error(t, err)
	assert.Equal(t, model.KindConfigurationError, model.KindOf(err))
}

func TestApplication_ServeAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := remoteConfig(t)
	a, err := NewApplication(cfg, &testutil.DummyLogger{}, WithMetrics(testMetrics()))
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout):
		t.Fatal("server did not shut down")
	}
}
