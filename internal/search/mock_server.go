// SPDX-License-Identifier: MIT
package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koski/dealsearch/internal/catalog"
)

// MockEngine is a configurable in-memory MeiliSearch stand-in for tests.
// It speaks the REST subset the client uses: health, index management,
// settings, documents, search, tasks and stats.
type MockEngine struct {
	*httptest.Server

	mu        sync.Mutex
	apiKey    string
	health    string
	indexes   map[string]string            // uid -> primary key
	documents map[string][]catalog.Product // uid -> documents
	sortable  map[string][]string          // uid -> sortable attributes
	tasks     map[int64]string             // task uid -> final status
	nextTask  int64
	failures  map[string]int // route -> remaining 500 responses
	failTasks int            // next n tasks finish failed
	delay     time.Duration
}

// NewMockEngine starts a mock engine with no indexes and an available
// health status.
func NewMockEngine() *MockEngine {
	m := &MockEngine{
		health:    "available",
		indexes:   make(map[string]string),
		documents: make(map[string][]catalog.Product),
		sortable:  make(map[string][]string),
		tasks:     make(map[int64]string),
		failures:  make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/health", m.handleHealth)
	r.Post("/indexes", m.handleCreateIndex)
	r.Get("/indexes/{uid}", m.handleGetIndex)
	r.Put("/indexes/{uid}/settings/sortable-attributes", m.handleSortable)
	r.Post("/indexes/{uid}/search", m.handleSearch)
	r.Post("/indexes/{uid}/documents", m.handleAddDocuments)
	r.Delete("/indexes/{uid}/documents", m.handleDeleteDocuments)
	r.Get("/indexes/{uid}/stats", m.handleStats)
	r.Get("/tasks/{uid}", m.handleGetTask)

	m.Server = httptest.NewServer(r)
	return m
}

// SetAPIKey makes the engine require the given bearer key.
func (m *MockEngine) SetAPIKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = key
}

// SetHealth overrides the health status reported by /health.
func (m *MockEngine) SetHealth(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health = status
}

// SetDelay makes every handler sleep before responding.
func (m *MockEngine) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetFailures makes the given route respond 500 for the next count calls.
// Routes use the engine paths, e.g. "/indexes/products/search".
func (m *MockEngine) SetFailures(route string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[route] = count
}

// FailNextTasks makes the next count enqueued tasks finish failed.
func (m *MockEngine) FailNextTasks(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTasks = count
}

// SeedIndex creates an index and fills it with documents directly,
// bypassing the task machinery.
func (m *MockEngine) SeedIndex(uid string, products []catalog.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[uid] = "id"
	m.documents[uid] = append([]catalog.Product(nil), products...)
}

// Documents returns a copy of the stored documents for assertions.
func (m *MockEngine) Documents(uid string) []catalog.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]catalog.Product(nil), m.documents[uid]...)
}

// SortableAttributes returns the last sortable attribute update for uid.
func (m *MockEngine) SortableAttributes(uid string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sortable[uid]...)
}

// HasIndex reports whether uid exists.
func (m *MockEngine) HasIndex(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.indexes[uid]
	return ok
}

// gate applies delay, auth and failure injection. It reports whether the
// handler should continue.
func (m *MockEngine) gate(w http.ResponseWriter, r *http.Request) bool {
	m.mu.Lock()
	delay := m.delay
	key := m.apiKey
	fail := false
	if n, ok := m.failures[r.URL.Path]; ok && n > 0 {
		m.failures[r.URL.Path]--
		fail = true
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if key != "" && r.Header.Get("Authorization") != "Bearer "+key {
		writeEngineError(w, http.StatusUnauthorized, "invalid_api_key", "The provided API key is invalid.")
		return false
	}
	if fail {
		writeEngineError(w, http.StatusInternalServerError, "internal", "Internal Error")
		return false
	}
	return true
}

func (m *MockEngine) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	m.mu.Lock()
	status := m.health
	m.mu.Unlock()
	writeEngineJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (m *MockEngine) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	var body struct {
		UID        string `json:"uid"`
		PrimaryKey string `json:"primaryKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UID == "" {
		writeEngineError(w, http.StatusBadRequest, "bad_request", "invalid index payload")
		return
	}

	m.mu.Lock()
	m.indexes[body.UID] = body.PrimaryKey
	if _, ok := m.documents[body.UID]; !ok {
		m.documents[body.UID] = nil
	}
	task := m.newTaskLocked()
	m.mu.Unlock()

	writeTaskInfo(w, task, body.UID, "indexCreation")
}

func (m *MockEngine) handleGetIndex(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	uid := chi.URLParam(r, "uid")

	m.mu.Lock()
	pk, ok := m.indexes[uid]
	m.mu.Unlock()

	if !ok {
		writeEngineError(w, http.StatusNotFound, "index_not_found", "Index `"+uid+"` not found.")
		return
	}
	writeEngineJSON(w, http.StatusOK, map[string]interface{}{
		"uid":        uid,
		"primaryKey": pk,
		"createdAt":  time.Now().UTC().Format(time.RFC3339),
		"updatedAt":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (m *MockEngine) handleSortable(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	uid := chi.URLParam(r, "uid")

	var attrs []string
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		writeEngineError(w, http.StatusBadRequest, "bad_request", "invalid settings payload")
		return
	}

	m.mu.Lock()
	m.sortable[uid] = attrs
	task := m.newTaskLocked()
	m.mu.Unlock()

	writeTaskInfo(w, task, uid, "settingsUpdate")
}

func (m *MockEngine) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	uid := chi.URLParam(r, "uid")

	var req struct {
		Q     string   `json:"q"`
		Limit int64    `json:"limit"`
		Sort  []string `json:"sort"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEngineError(w, http.StatusBadRequest, "bad_request", "invalid search payload")
		return
	}

	m.mu.Lock()
	_, ok := m.indexes[uid]
	docs := append([]catalog.Product(nil), m.documents[uid]...)
	m.mu.Unlock()

	if !ok {
		writeEngineError(w, http.StatusNotFound, "index_not_found", "Index `"+uid+"` not found.")
		return
	}

	hits := make([]catalog.Product, 0, len(docs))
	q := strings.ToLower(strings.TrimSpace(req.Q))
	for _, d := range docs {
		if q == "" || strings.Contains(strings.ToLower(d.Title), q) {
			hits = append(hits, d)
		}
	}

	for _, s := range req.Sort {
		if s == "discountPercentage:desc" {
			sort.SliceStable(hits, func(i, j int) bool {
				return hits[i].DiscountPercentage > hits[j].DiscountPercentage
			})
		}
	}

	total := len(hits)
	if req.Limit > 0 && int64(len(hits)) > req.Limit {
		hits = hits[:req.Limit]
	}

	writeEngineJSON(w, http.StatusOK, map[string]interface{}{
		"hits":               hits,
		"query":              req.Q,
		"processingTimeMs":   1,
		"limit":              req.Limit,
		"offset":             0,
		"estimatedTotalHits": total,
	})
}

func (m *MockEngine) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	uid := chi.URLParam(r, "uid")

	var docs []catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		writeEngineError(w, http.StatusBadRequest, "bad_request", "invalid documents payload")
		return
	}

	m.mu.Lock()
	if _, ok := m.indexes[uid]; !ok {
		m.indexes[uid] = "id"
	}
	merged := m.documents[uid]
	for _, d := range docs {
		replaced := false
		for i := range merged {
			if merged[i].ID == d.ID {
				merged[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, d)
		}
	}
	m.documents[uid] = merged
	task := m.newTaskLocked()
	m.mu.Unlock()

	writeTaskInfo(w, task, uid, "documentAdditionOrUpdate")
}

func (m *MockEngine) handleDeleteDocuments(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	uid := chi.URLParam(r, "uid")

	m.mu.Lock()
	m.documents[uid] = nil
	task := m.newTaskLocked()
	m.mu.Unlock()

	writeTaskInfo(w, task, uid, "documentDeletion")
}

func (m *MockEngine) handleStats(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	uid := chi.URLParam(r, "uid")

	m.mu.Lock()
	_, ok := m.indexes[uid]
	n := len(m.documents[uid])
	m.mu.Unlock()

	if !ok {
		writeEngineError(w, http.StatusNotFound, "index_not_found", "Index `"+uid+"` not found.")
		return
	}
	writeEngineJSON(w, http.StatusOK, map[string]interface{}{
		"numberOfDocuments": n,
		"isIndexing":        false,
		"fieldDistribution": map[string]int{},
	})
}

func (m *MockEngine) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r) {
		return
	}
	uid, err := strconv.ParseInt(chi.URLParam(r, "uid"), 10, 64)
	if err != nil {
		writeEngineError(w, http.StatusBadRequest, "bad_request", "invalid task uid")
		return
	}

	m.mu.Lock()
	status, ok := m.tasks[uid]
	m.mu.Unlock()

	if !ok {
		writeEngineError(w, http.StatusNotFound, "task_not_found", "Task not found.")
		return
	}
	writeEngineJSON(w, http.StatusOK, map[string]interface{}{
		"uid":        uid,
		"status":     status,
		"type":       "documentAdditionOrUpdate",
		"enqueuedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// newTaskLocked registers a new settled task. Caller holds m.mu.
func (m *MockEngine) newTaskLocked() int64 {
	m.nextTask++
	status := "succeeded"
	if m.failTasks > 0 {
		m.failTasks--
		status = "failed"
	}
	m.tasks[m.nextTask] = status
	return m.nextTask
}

func writeTaskInfo(w http.ResponseWriter, taskUID int64, indexUID, taskType string) {
	writeEngineJSON(w, http.StatusAccepted, map[string]interface{}{
		"taskUid":    taskUID,
		"indexUid":   indexUID,
		"status":     "enqueued",
		"type":       taskType,
		"enqueuedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeEngineJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEngineError(w http.ResponseWriter, status int, code, message string) {
	writeEngineJSON(w, status, map[string]string{
		"message": message,
		"code":    code,
		"type":    "invalid_request",
		"link":    "https://docs.meilisearch.com/errors#" + code,
	})
}
