// SPDX-License-Identifier: MIT

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/koski/dealsearch/internal/catalog"
	"github.com/koski/dealsearch/internal/metrics"
	"github.com/koski/dealsearch/internal/telemetry"
)

// Client talks to a MeiliSearch instance. All calls are rate limited and
// retried with jittered exponential backoff.
type Client struct {
	sm            meilisearch.ServiceManager
	limiter       *rate.Limiter
	maxRetries    int
	backoff       time.Duration
	maxBackoff    time.Duration
	productsIndex string
	queryIndex    string

	mu  sync.Mutex
	rnd *rand.Rand
}

var _ Searcher = (*Client)(nil)

// Options configures the search client.
type Options struct {
	URL            string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	Backoff        time.Duration
	MaxBackoff     time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	ProductsIndex  string
	QueryIndex     string
}

const (
	defaultTimeout        = 10 * time.Second
	defaultRetries        = 3
	defaultBackoff        = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultRateLimit      = 50
	defaultRateLimitBurst = 100

	primaryKey    = "id"
	sortableField = "discountPercentage"
	sortDesc      = sortableField + ":desc"

	indexBatchSize   = 1000
	taskPollInterval = 250 * time.Millisecond
)

// Operation labels for metrics and spans.
const (
	opHealth         = "health"
	opGetIndex       = "get_index"
	opCreateIndex    = "create_index"
	opUpdateSettings = "update_settings"
	opSearch         = "search"
	opAddDocuments   = "add_documents"
	opDeleteDocs     = "delete_documents"
	opGetStats       = "get_stats"
	opWaitTask       = "wait_task"
)

// New creates a search client for the engine at opts.URL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("search: empty engine URL")
	}
	o := normalizeOptions(opts)

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	httpClient := &http.Client{
		Timeout:   o.Timeout,
		Transport: transport,
	}

	msOpts := []meilisearch.Option{meilisearch.WithCustomClient(httpClient)}
	if o.APIKey != "" {
		msOpts = append(msOpts, meilisearch.WithAPIKey(o.APIKey))
	}

	return &Client{
		sm:            meilisearch.New(base, msOpts...),
		limiter:       rate.NewLimiter(o.RateLimit, o.RateLimitBurst),
		maxRetries:    o.MaxRetries,
		backoff:       o.Backoff,
		maxBackoff:    o.MaxBackoff,
		productsIndex: o.ProductsIndex,
		queryIndex:    o.QueryIndex,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}, nil
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if opts.ProductsIndex == "" {
		opts.ProductsIndex = "products"
	}
	if opts.QueryIndex == "" {
		opts.QueryIndex = opts.ProductsIndex
	}
	return opts
}

// Health implements Searcher.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, opHealth, "", func(ctx context.Context) error {
		h, err := c.sm.HealthWithContext(ctx)
		if err != nil {
			return err
		}
		if h.Status != "available" {
			return &UpstreamError{
				Sentinel:  ErrUnavailable,
				Operation: opHealth,
				Err:       fmt.Errorf("engine status %q", h.Status),
			}
		}
		return nil
	})
}

// EnsureIndexes implements Searcher.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	if err := c.ensureIndex(ctx, c.productsIndex); err != nil {
		return err
	}
	if err := c.ensureSortable(ctx); err != nil {
		return err
	}
	if c.queryIndex != c.productsIndex {
		if err := c.ensureIndex(ctx, c.queryIndex); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ensureIndex(ctx context.Context, uid string) error {
	err := c.do(ctx, opGetIndex, uid, func(ctx context.Context) error {
		_, err := c.sm.GetIndexWithContext(ctx, uid)
		return err
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrIndexNotFound) {
		return err
	}

	return c.do(ctx, opCreateIndex, uid, func(ctx context.Context) error {
		info, err := c.sm.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{
			Uid:        uid,
			PrimaryKey: primaryKey,
		})
		if err != nil {
			return err
		}
		return c.awaitTask(ctx, info.TaskUID)
	})
}

func (c *Client) ensureSortable(ctx context.Context) error {
	return c.do(ctx, opUpdateSettings, c.productsIndex, func(ctx context.Context) error {
		info, err := c.sm.Index(c.productsIndex).UpdateSortableAttributesWithContext(ctx, &[]string{sortableField})
		if err != nil {
			return err
		}
		return c.awaitTask(ctx, info.TaskUID)
	})
}

// TopDeals implements Searcher.
func (c *Client) TopDeals(ctx context.Context, limit int) ([]catalog.Product, error) {
	if limit <= 0 {
		return nil, &UpstreamError{Sentinel: ErrBadRequest, Operation: opSearch, Index: c.productsIndex,
			Err: fmt.Errorf("limit %d must be positive", limit)}
	}

	var products []catalog.Product
	err := c.do(ctx, opSearch, c.productsIndex, func(ctx context.Context) error {
		// Placeholder search: empty query matches everything, sorted by
		// discount so the best deals come first.
		resp, err := c.sm.Index(c.productsIndex).SearchWithContext(ctx, "", &meilisearch.SearchRequest{
			Limit: int64(limit),
			Sort:  []string{sortDesc},
		})
		if err != nil {
			return err
		}
		products, err = decodeHits(resp.Hits)
		return err
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Query implements Searcher.
func (c *Client) Query(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
	if limit <= 0 {
		limit = 20
	}

	var products []catalog.Product
	err := c.do(ctx, opSearch, c.queryIndex, func(ctx context.Context) error {
		resp, err := c.sm.Index(c.queryIndex).SearchWithContext(ctx, query, &meilisearch.SearchRequest{
			Limit: int64(limit),
		})
		if err != nil {
			return err
		}
		products, err = decodeHits(resp.Hits)
		return err
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// IndexProducts implements Searcher.
func (c *Client) IndexProducts(ctx context.Context, products []catalog.Product, replace bool) (int, error) {
	if replace {
		err := c.do(ctx, opDeleteDocs, c.productsIndex, func(ctx context.Context) error {
			info, err := c.sm.Index(c.productsIndex).DeleteAllDocumentsWithContext(ctx)
			if err != nil {
				return err
			}
			return c.awaitTask(ctx, info.TaskUID)
		})
		if err != nil {
			return 0, err
		}
	}

	for start := 0; start < len(products); start += indexBatchSize {
		end := min(start+indexBatchSize, len(products))
		batch := products[start:end]

		err := c.do(ctx, opAddDocuments, c.productsIndex, func(ctx context.Context) error {
			info, err := c.sm.Index(c.productsIndex).AddDocumentsWithContext(ctx, batch, primaryKey)
			if err != nil {
				return err
			}
			return c.awaitTask(ctx, info.TaskUID)
		})
		if err != nil {
			return 0, err
		}
	}
	return len(products), nil
}

// Stats implements Searcher.
func (c *Client) Stats(ctx context.Context) (IndexStats, error) {
	var stats IndexStats
	err := c.do(ctx, opGetStats, c.productsIndex, func(ctx context.Context) error {
		s, err := c.sm.Index(c.productsIndex).GetStatsWithContext(ctx)
		if err != nil {
			return err
		}
		stats = IndexStats{
			Index:     c.productsIndex,
			Documents: s.NumberOfDocuments,
			Indexing:  s.IsIndexing,
		}
		return nil
	})
	if err != nil {
		return IndexStats{}, err
	}
	metrics.RecordIndexDocuments(c.productsIndex, stats.Documents)
	return stats, nil
}

// awaitTask blocks until the async task settles and fails unless it
// succeeded.
func (c *Client) awaitTask(ctx context.Context, taskUID int64) error {
	task, err := c.sm.WaitForTaskWithContext(ctx, taskUID, taskPollInterval)
	if err != nil {
		return err
	}
	if task.Status != meilisearch.TaskStatusSucceeded {
		return &UpstreamError{
			Sentinel:  ErrTaskFailed,
			Operation: opWaitTask,
			Err:       fmt.Errorf("task %d finished %s", taskUID, task.Status),
		}
	}
	return nil
}

// do runs fn under the rate limiter with retries. Every attempt is
// recorded in metrics; the whole operation gets one client span.
func (c *Client) do(ctx context.Context, op, index string, fn func(context.Context) error) error {
	tracer := telemetry.Tracer("dealsearch.search")
	ctx, span := tracer.Start(ctx, "dealsearch.search."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(telemetry.SearchAttributes(op, index)...)
	defer span.End()

	maxAttempts := c.maxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		start := time.Now()
		err := fn(ctx)
		duration := time.Since(start)

		if err == nil {
			metrics.RecordUpstreamRequest(op, "success", duration)
			span.SetAttributes(attribute.Int(telemetry.SearchAttemptKey, attempt))
			span.SetStatus(codes.Ok, "")
			return nil
		}

		// Caller cancellation is not an upstream fault.
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			span.RecordError(ctxErr)
			span.SetStatus(codes.Error, ctxErr.Error())
			return ctxErr
		}

		werr := c.wrap(op, index, err)
		metrics.RecordUpstreamRequest(op, outcomeLabel(werr), duration)
		lastErr = werr

		if attempt == maxAttempts || !retryable(werr) {
			break
		}
		metrics.IncUpstreamRetry(op)

		if err := sleepWithContext(ctx, c.backoffFor(attempt-1)); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return lastErr
}

// wrap classifies err under a package sentinel unless it is already an
// UpstreamError.
func (c *Client) wrap(op, index string, err error) error {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	sentinel, status := classify(err)
	return &UpstreamError{
		Sentinel:  sentinel,
		Operation: op,
		Index:     index,
		Status:    status,
		Err:       err,
	}
}

func classify(err error) (error, int) {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout, 0
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrTimeout, 0
	}

	var merr *meilisearch.Error
	if errors.As(err, &merr) {
		switch {
		case merr.StatusCode == http.StatusUnauthorized || merr.StatusCode == http.StatusForbidden:
			return ErrUnauthorized, merr.StatusCode
		case merr.StatusCode == http.StatusNotFound:
			return ErrIndexNotFound, merr.StatusCode
		case merr.StatusCode >= http.StatusInternalServerError:
			return ErrUpstreamError, merr.StatusCode
		case merr.StatusCode >= http.StatusBadRequest:
			return ErrBadRequest, merr.StatusCode
		}
		return ErrUnavailable, merr.StatusCode
	}

	var jerr *json.UnmarshalTypeError
	if errors.As(err, &jerr) {
		return ErrBadResponse, 0
	}

	return ErrUnavailable, 0
}

func retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUpstreamError)
}

func outcomeLabel(err error) string {
	if errors.Is(err, ErrTimeout) {
		return "timeout"
	}
	return "error"
}

// decodeHits converts raw engine hits into products via a JSON roundtrip.
func decodeHits(hits []interface{}) ([]catalog.Product, error) {
	raw, err := json.Marshal(hits)
	if err != nil {
		return nil, &UpstreamError{Sentinel: ErrBadResponse, Operation: opSearch, Err: err}
	}
	var products []catalog.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, &UpstreamError{Sentinel: ErrBadResponse, Operation: opSearch, Err: err}
	}
	return products, nil
}

func (c *Client) backoffFor(attempt int) time.Duration {
	wait := c.backoff * time.Duration(1<<attempt)
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	jitter := time.Duration(c.randInt63n(int64(wait/5 + 1)))
	return wait + jitter
}

func (c *Client) randInt63n(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Int63n(n)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
