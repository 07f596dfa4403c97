// SPDX-License-Identifier: MIT

// Package api implements the deal search HTTP service: the public
// sales/query endpoints, probe endpoints, and the operator surface.
package api

import (
	_ "embed"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/koski/dealsearch/internal/cache"
	"github.com/koski/dealsearch/internal/config"
	"github.com/koski/dealsearch/internal/health"
	"github.com/koski/dealsearch/internal/jobs"
	"github.com/koski/dealsearch/internal/search"
	"github.com/koski/dealsearch/internal/store"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Deps contains the collaborators the server needs.
type Deps struct {
	Searcher search.Searcher
	Runner   *jobs.Runner
	Health   *health.Manager
	Cache    cache.Cache
	Store    *store.Store // optional; enables sync history in /api/status
}

// Server handles HTTP requests for the deal search service.
type Server struct {
	mu  sync.RWMutex
	cfg config.AppConfig

	searcher search.Searcher
	runner   *jobs.Runner
	health   *health.Manager
	cache    cache.Cache
	store    *store.Store

	// collapses concurrent cache misses for the same key
	flight singleflight.Group
}

// New creates a Server. Cache may be a no-op implementation; Store and
// Runner may be nil in reduced setups (status reports what it has).
func New(cfg config.AppConfig, deps Deps) *Server {
	c := deps.Cache
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Server{
		cfg:      cfg,
		searcher: deps.Searcher,
		runner:   deps.Runner,
		health:   deps.Health,
		cache:    c,
		store:    deps.Store,
	}
}

// ApplyConfig swaps the active configuration. Called on hot reload;
// token, limits, and cache TTL take effect on the next request.
func (s *Server) ApplyConfig(cfg config.AppConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Server) config() config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}
