package server_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/scrypster/shoprec/internal/config"
	"github.com/scrypster/shoprec/internal/engine"
	"github.com/scrypster/shoprec/internal/recommend"
	"github.com/scrypster/shoprec/internal/server"
	"github.com/scrypster/shoprec/internal/signals"
	"github.com/scrypster/shoprec/internal/storage/sqlite"
	"github.com/scrypster/shoprec/web/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{}

func (g *stubGenerator) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 2}, nil
}

func (g *stubGenerator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = g.Embed(ctx, text)
	}
	return out, nil
}

func (g *stubGenerator) GetModel() string { return "stub-model" }

// startTestServer stands up the full stack on a random port against an
// in-memory SQLite store. Cleanup is registered with t.Cleanup.
func startTestServer(t *testing.T, cfg *config.Config) string {
	t.Helper()

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	cfg.Server.Port = 0
	if cfg.Server.RateLimitPerSec == 0 {
		cfg.Server.RateLimitPerSec = 1000
		cfg.Server.RateLimitBurst = 1000
	}

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)

	trending := signals.NewTrending(store, store, signals.TrendingConfig{
		Window:         168 * time.Hour,
		PurchaseWeight: 5,
		ViewWeight:     1,
	})
	coOccurrence := signals.NewCoOccurrence(store)
	recent := signals.NewRecentlyViewed(store, 20)

	eng, err := engine.NewRecommendationEngine(store, &stubGenerator{}, nil, engine.Config{NumWorkers: 1})
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))

	orchestrator := recommend.NewOrchestrator(store, store, trending, coOccurrence, recent, nil)
	api := handlers.NewAPIHandlers(store, eng, orchestrator, store, store, coOccurrence, recent, trending, nil)

	ctx, cancel := context.WithCancel(context.Background())
	addr, _ := server.Start(ctx, cfg, api)

	t.Cleanup(func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = eng.Shutdown(shutdownCtx)
		_ = store.Close()
	})

	return "http://" + addr
}

func devConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1"},
		Security: config.SecurityConfig{
			SecurityMode: "development",
		},
	}
}

func TestServer_StartsOnRandomPort(t *testing.T) {
	baseURL := startTestServer(t, devConfig())

	require.True(t, strings.HasPrefix(baseURL, "http://"))
	addr := strings.TrimPrefix(baseURL, "http://")

	host, port, err := net.SplitHostPort(addr)
	assert.NoError(t, err)
	assert.NotEmpty(t, host)
	assert.NotEqual(t, "0", port, "a real port must be assigned")
}

func TestServer_HealthEndpoint(t *testing.T) {
	baseURL := startTestServer(t, devConfig())

	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health, "version")
}

func TestServer_SecurityHeaders(t *testing.T) {
	baseURL := startTestServer(t, devConfig())

	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for name, want := range expected {
		assert.Equal(t, want, resp.Header.Get(name), "header %q", name)
	}
}

func TestServer_RouteRegistration(t *testing.T) {
	baseURL := startTestServer(t, devConfig())

	paths := []string{
		"/api/health",
		"/api/stats",
		"/api/recommendations/trending",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(baseURL + path)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusOK, resp.StatusCode, "route %s", path)
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	baseURL := startTestServer(t, devConfig())

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/api/health"},
		{"GET", "/api/events"},
		{"GET", "/api/orders"},
		{"DELETE", "/api/recommendations/trending"},
	}
	for _, tt := range tests {
		t.Run(tt.method+"_"+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, baseURL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	}
}

func TestServer_DevelopmentMode_NoAuth(t *testing.T) {
	baseURL := startTestServer(t, devConfig())

	resp, err := http.Get(baseURL + "/api/stats")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ProductionMode_RequiresAuth(t *testing.T) {
	token := "test-secret-token"
	cfg := devConfig()
	cfg.Security.SecurityMode = "production"
	cfg.Security.APIToken = token
	baseURL := startTestServer(t, cfg)

	t.Run("without_auth_header", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/stats")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("with_invalid_auth_header", func(t *testing.T) {
		req, _ := http.NewRequest("GET", baseURL+"/api/stats", nil)
		req.Header.Set("Authorization", "Bearer wrong-token")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("with_valid_auth_header", func(t *testing.T) {
		req, _ := http.NewRequest("GET", baseURL+"/api/stats", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health_bypasses_auth", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/health")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServer_GracefulShutdown(t *testing.T) {
	cfg := devConfig()
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	trending := signals.NewTrending(store, store, signals.TrendingConfig{
		Window: 168 * time.Hour, PurchaseWeight: 5, ViewWeight: 1,
	})
	coOccurrence := signals.NewCoOccurrence(store)
	recent := signals.NewRecentlyViewed(store, 20)
	eng, err := engine.NewRecommendationEngine(store, &stubGenerator{}, nil, engine.Config{NumWorkers: 1})
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Shutdown(ctx)
	}()

	orchestrator := recommend.NewOrchestrator(store, store, trending, coOccurrence, recent, nil)
	api := handlers.NewAPIHandlers(store, eng, orchestrator, store, store, coOccurrence, recent, trending, nil)

	ctx, cancel := context.WithCancel(context.Background())
	addr, _ := server.Start(ctx, cfg, api)
	baseURL := "http://" + addr

	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err, "server should respond before shutdown")
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	time.Sleep(200 * time.Millisecond)

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer checkCancel()
	req, _ := http.NewRequestWithContext(checkCtx, "GET", baseURL+"/api/health", nil)
	_, err = http.DefaultClient.Do(req)
	assert.Error(t, err, "server should stop responding after shutdown")
}
