// SPDX-License-Identifier: MIT

package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koski/dealsearch/internal/api"
	"github.com/koski/dealsearch/internal/cache"
	"github.com/koski/dealsearch/internal/catalog"
	"github.com/koski/dealsearch/internal/config"
	"github.com/koski/dealsearch/internal/health"
	"github.com/koski/dealsearch/internal/jobs"
	"github.com/koski/dealsearch/internal/search"
)

var testProducts = []catalog.Product{
	{ID: "p2", Title: "Mechanical Keyboard", DiscountPercentage: 60},
	{ID: "p1", Title: "Wireless Mouse", DiscountPercentage: 25},
}

// stubEngine implements search.Searcher and doubles as the sync
// indexer, mirroring how the daemon wires the real client into both.
type stubEngine struct {
	mu         sync.Mutex
	deals      []catalog.Product
	hits       []catalog.Product
	dealsErr   error
	queryErr   error
	statsErr   error
	indexErr   error
	stats      search.IndexStats
	dealsCalls int
	queryCalls int
	lastLimit  int
	lastQuery  string
	block      chan struct{} // IndexProducts waits on it when set
	entered    chan struct{} // signalled once IndexProducts is reached
}

func (e *stubEngine) Health(context.Context) error        { return nil }
func (e *stubEngine) EnsureIndexes(context.Context) error { return nil }

func (e *stubEngine) TopDeals(_ context.Context, limit int) ([]catalog.Product, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dealsCalls++
	e.lastLimit = limit
	if e.dealsErr != nil {
		return nil, e.dealsErr
	}
	return e.deals, nil
}

func (e *stubEngine) Query(_ context.Context, query string, _ int) ([]catalog.Product, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queryCalls++
	e.lastQuery = query
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.hits, nil
}

func (e *stubEngine) IndexProducts(ctx context.Context, products []catalog.Product, _ bool) (int, error) {
	if e.entered != nil {
		select {
		case e.entered <- struct{}{}:
		default:
		}
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexErr != nil {
		return 0, e.indexErr
	}
	return len(products), nil
}

func (e *stubEngine) Stats(context.Context) (search.IndexStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.statsErr != nil {
		return search.IndexStats{}, e.statsErr
	}
	return e.stats, nil
}

func (e *stubEngine) dealsCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dealsCalls
}

func (e *stubEngine) queryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queryCalls
}

// seedSource is an in-memory catalog source for sync tests.
type seedSource struct {
	products []catalog.Product
}

func (s seedSource) Name() string { return "seed-test" }

func (s seedSource) Load(context.Context) ([]catalog.Product, error) {
	return s.products, nil
}

type testServer struct {
	engine  *stubEngine
	runner  *jobs.Runner
	health  *health.Manager
	handler http.Handler
}

func newTestServer(t *testing.T, mutate func(*config.AppConfig)) *testServer {
	t.Helper()

	cfg := config.AppConfig{
		ListenAddr: ":0",
		SalesLimit: 20,
		CacheTTL:   time.Minute,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	engine := &stubEngine{
		deals: testProducts,
		hits:  testProducts[:1],
		stats: search.IndexStats{Index: "products", Documents: 42},
	}

	runner := jobs.NewRunner(jobs.Deps{
		Source:  seedSource{products: testProducts},
		Indexer: engine,
		Replace: true,
	}, 0)

	hm := health.NewManager("test")

	var respCache cache.Cache
	if cfg.CacheTTL > 0 {
		respCache = cache.NewMemoryCache(0)
	} else {
		respCache = cache.NewNoOpCache()
	}

	srv := api.New(cfg, api.Deps{
		Searcher: engine,
		Runner:   runner,
		Health:   hm,
		Cache:    respCache,
	})

	return &testServer{
		engine:  engine,
		runner:  runner,
		health:  hm,
		handler: srv.Routes(),
	}
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) postJSON(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestSalesWireFormat(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.get(t, "/sales")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	// Decode loosely to pin the wire keys, not just the Go shape.
	var items []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "p2", first["id"])
	assert.Equal(t, "Mechanical Keyboard", first["title"])
	assert.Equal(t, float64(60), first["percentage_off"])
	assert.NotContains(t, first, "discountPercentage")

	assert.Equal(t, "p1", items[1]["id"])
}

func TestSalesDefaultLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.AppConfig) {
		cfg.SalesLimit = 7
		cfg.CacheTTL = 0
	})

	rr := ts.get(t, "/sales")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 7, ts.engine.lastLimit)

	rr = ts.get(t, "/sales?limit=3")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3, ts.engine.lastLimit)
}

func TestSalesLimitValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"not a number", "/sales?limit=abc", http.StatusBadRequest},
		{"zero", "/sales?limit=0", http.StatusBadRequest},
		{"negative", "/sales?limit=-5", http.StatusBadRequest},
		{"too large", "/sales?limit=101", http.StatusBadRequest},
		{"max allowed", "/sales?limit=100", http.StatusOK},
		{"min allowed", "/sales?limit=1", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := ts.get(t, tc.path)
			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantStatus == http.StatusBadRequest {
				assert.Contains(t, rr.Body.String(), "bad_request")
			}
		})
	}
}

func TestSalesEngineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"engine down", search.ErrUnavailable, http.StatusServiceUnavailable, "unreachable"},
		{"engine timeout", search.ErrTimeout, http.StatusServiceUnavailable, "unreachable"},
		{"index missing", search.ErrIndexNotFound, http.StatusServiceUnavailable, "index not initialized"},
		{"engine 5xx", search.ErrUpstreamError, http.StatusServiceUnavailable, "unreachable"},
		{"bad request upstream", search.ErrBadRequest, http.StatusBadRequest, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, func(cfg *config.AppConfig) { cfg.CacheTTL = 0 })
			ts.engine.dealsErr = tc.err

			rr := ts.get(t, "/sales")
			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantDetail != "" {
				assert.Contains(t, rr.Body.String(), tc.wantDetail)
			}
		})
	}
}

func TestSalesCached(t *testing.T) {
	ts := newTestServer(t, nil)

	for i := 0; i < 3; i++ {
		rr := ts.get(t, "/sales")
		require.Equal(t, http.StatusOK, rr.Code)
	}

	assert.Equal(t, 1, ts.engine.dealsCount(), "repeat requests should hit the cache")

	// A different limit is a different cache key.
	rr := ts.get(t, "/sales?limit=5")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, ts.engine.dealsCount())
}

func TestQueryWireFormat(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.postJSON(t, "/query", `{"query":"keyboard"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "keyboard", ts.engine.lastQuery)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Len(t, items, 1)

	assert.Equal(t, "p2", items[0]["id"])
	assert.Equal(t, "Mechanical Keyboard", items[0]["title"])
	assert.NotContains(t, items[0], "percentage_off")
}

func TestQueryValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"query":`},
		{"empty query", `{"query":""}`},
		{"whitespace query", `{"query":"   "}`},
		{"missing field", `{}`},
		{"oversized body", `{"query":"` + strings.Repeat("a", 8192) + `"}`},
		{"query too long", `{"query":"` + strings.Repeat("b", 600) + `"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := ts.postJSON(t, "/query", tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), "bad_request")
		})
	}

	assert.Equal(t, 0, ts.engine.queryCount(), "invalid requests must not reach the engine")
}

func TestQueryCachedByContent(t *testing.T) {
	ts := newTestServer(t, nil)

	for i := 0; i < 2; i++ {
		rr := ts.postJSON(t, "/query", `{"query":"mouse"}`)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, 1, ts.engine.queryCount())

	rr := ts.postJSON(t, "/query", `{"query":"laptop"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, ts.engine.queryCount())
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.get(t, "/api/status")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp["version"])
	engine, ok := resp["engine"].(map[string]any)
	require.True(t, ok, "engine stats expected: %s", rr.Body.String())
	assert.Equal(t, "products", engine["index"])
	assert.Equal(t, float64(42), engine["documents"])
	assert.NotContains(t, resp, "last_sync", "no sync has run yet")
}

func TestStatusEngineUnavailable(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.engine.statsErr = search.ErrUnavailable

	rr := ts.get(t, "/api/status")
	require.Equal(t, http.StatusOK, rr.Code, "status must degrade, not fail")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["engine_error"])
	assert.NotContains(t, resp, "engine")
}

func TestOpenAPIDocument(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.get(t, "/api/openapi.yaml")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))

	body := rr.Body.String()
	assert.Contains(t, body, "openapi: 3.0.3")
	assert.Contains(t, body, "/sales")
	assert.Contains(t, body, "/query")
	assert.Contains(t, body, "percentage_off")
}

func TestProbesWired(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])

	rr = ts.get(t, "/readyz")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestReadyzFlipsAfterSync(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.health.RegisterChecker(health.NewLastSyncChecker(ts.runner.LastSyncInfo, true))

	rr := ts.get(t, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code, "strict readiness requires a completed sync")

	rr = ts.postJSON(t, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.postJSON(t, "/sales", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = ts.get(t, "/query")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
