// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/koski/dealsearch/internal/jobs"
	"github.com/koski/dealsearch/internal/log"
	"github.com/koski/dealsearch/internal/metrics"
	"github.com/koski/dealsearch/internal/search"
	"github.com/koski/dealsearch/internal/store"
	"github.com/koski/dealsearch/internal/version"
)

const (
	maxSalesLimit     = 100
	maxQueryBodyBytes = 4096
	maxQueryLen       = 512
	statusHistorySize = 10
	refreshTimeout    = 5 * time.Minute
)

// SaleItem is one entry of the /sales response. The discount is
// exposed under the percentage_off wire key.
type SaleItem struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	PercentageOff float64 `json:"percentage_off"`
}

// QueryItem is one entry of the /query response.
type QueryItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type queryRequest struct {
	Query string `json:"query"`
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Version     string              `json:"version"`
	Engine      *search.IndexStats  `json:"engine,omitempty"`
	EngineError string              `json:"engine_error,omitempty"`
	LastSync    *jobs.Status        `json:"last_sync,omitempty"`
	History     []*store.SyncRecord `json:"history,omitempty"`
}

// handleSales serves the top discounted products, highest discount first.
func (s *Server) handleSales(w http.ResponseWriter, r *http.Request) {
	limit, err := s.salesLimit(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	key := fmt.Sprintf("sales:%d", limit)
	s.respondCached(w, r, key, func(ctx context.Context) ([]byte, error) {
		products, err := s.searcher.TopDeals(ctx, limit)
		if err != nil {
			return nil, err
		}
		items := make([]SaleItem, 0, len(products))
		for _, p := range products {
			items = append(items, SaleItem{
				ID:            p.ID,
				Title:         p.Title,
				PercentageOff: p.DiscountPercentage,
			})
		}
		metrics.ObserveSearchHits("sales", len(items))
		return json.Marshal(items)
	})
}

func (s *Server) salesLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return s.config().SalesLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	if n < 1 {
		return 0, fmt.Errorf("limit must be positive")
	}
	if n > maxSalesLimit {
		return 0, fmt.Errorf("limit must be at most %d", maxSalesLimit)
	}
	return n, nil
}

// handleQuery serves full-text product search.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeBadRequest(w, "request body too large")
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}

	q := strings.TrimSpace(req.Query)
	if q == "" {
		writeBadRequest(w, "query must not be empty")
		return
	}
	if len(q) > maxQueryLen {
		writeBadRequest(w, fmt.Sprintf("query must be at most %d bytes", maxQueryLen))
		return
	}

	key := fmt.Sprintf("query:%x", sha256.Sum256([]byte(q)))
	s.respondCached(w, r, key, func(ctx context.Context) ([]byte, error) {
		products, err := s.searcher.Query(ctx, q, 0)
		if err != nil {
			return nil, err
		}
		items := make([]QueryItem, 0, len(products))
		for _, p := range products {
			items = append(items, QueryItem{ID: p.ID, Title: p.Title})
		}
		metrics.ObserveSearchHits("query", len(items))
		return json.Marshal(items)
	})
}

// respondCached serves key from the response cache, collapsing
// concurrent misses into one upstream call per key.
func (s *Server) respondCached(w http.ResponseWriter, r *http.Request, key string, build func(ctx context.Context) ([]byte, error)) {
	ttl := s.config().CacheTTL

	// The winning flight must not die with one caller's context.
	ctx := context.WithoutCancel(r.Context())

	v, err, _ := s.flight.Do(key, func() (any, error) {
		if body, ok := s.cache.Get(key); ok {
			metrics.IncCacheHit()
			return body, nil
		}
		metrics.IncCacheMiss()

		body, err := build(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, body, ttl)
		return body, nil
	})
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}

	body, ok := v.([]byte)
	if !ok {
		writeInternalError(w)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

// writeSearchError maps upstream failures to caller-safe responses.
// Details stay in the log.
func (s *Server) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Error().
		Err(err).
		Str("event", "api.search_failed").
		Str("path", r.URL.Path).
		Msg("search request failed")

	switch {
	case errors.Is(err, search.ErrBadRequest):
		writeBadRequest(w, "invalid search request")
	case errors.Is(err, search.ErrIndexNotFound):
		writeServiceUnavailable(w, "index not initialized; trigger a sync")
	case errors.Is(err, search.ErrUnavailable),
		errors.Is(err, search.ErrTimeout),
		errors.Is(err, search.ErrUpstreamError):
		writeServiceUnavailable(w, "search engine unreachable")
	default:
		writeInternalError(w)
	}
}

// handleStatus reports version, engine stats, and sync state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Version: version.Version}

	statsCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if stats, err := s.searcher.Stats(statsCtx); err != nil {
		resp.EngineError = "engine stats unavailable"
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().
			Err(err).
			Str("event", "api.stats_failed").
			Msg("engine stats unavailable")
	} else {
		resp.Engine = &stats
	}

	if s.runner != nil {
		resp.LastSync = s.runner.Last()
	}
	if s.store != nil {
		if history, err := s.store.RecentRuns(r.Context(), statusHistorySize); err == nil {
			resp.History = history
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh triggers a catalog sync. Concurrent refreshes fail
// fast with 409; the job itself runs on a detached bounded context so
// a client disconnect cannot abort indexing halfway.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	if s.runner == nil {
		writeServiceUnavailable(w, "sync not configured")
		return
	}

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), refreshTimeout)
	defer cancel()

	start := time.Now()
	st, err := s.runner.TryRun(jobCtx, jobs.TriggerAPI)
	if err != nil {
		if errors.Is(err, jobs.ErrSyncInProgress) {
			logger.Warn().
				Str("event", "refresh.conflict").
				Msg("refresh already in progress")
			writeConflict(w, "A sync operation is already in progress")
			return
		}

		logger.Error().
			Err(err).
			Str("event", "refresh.failed").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("refresh failed")
		writeInternalError(w)
		return
	}

	// Drop cached responses so callers see the new catalog immediately.
	s.cache.Clear()

	logger.Info().
		Str("event", "refresh.success").
		Int("documents", st.Documents).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("refresh completed")
	writeJSON(w, http.StatusOK, st)
}

// handleOpenAPI serves the embedded API description.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPISpec)
}
