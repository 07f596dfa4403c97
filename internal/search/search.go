// SPDX-License-Identifier: MIT

// Package search wraps the MeiliSearch engine behind a small interface.
// All upstream failures surface as *UpstreamError wrapping one of the
// package sentinels.
package search

import (
	"context"

	"github.com/koski/dealsearch/internal/catalog"
)

// Searcher is the upstream search engine as the rest of the daemon sees it.
type Searcher interface {
	// Health reports whether the engine is reachable and available.
	Health(ctx context.Context) error

	// EnsureIndexes creates the configured indexes if missing and makes
	// discountPercentage sortable on the products index. Idempotent.
	EnsureIndexes(ctx context.Context) error

	// TopDeals returns up to limit products ordered by discount, highest
	// first.
	TopDeals(ctx context.Context, limit int) ([]catalog.Product, error)

	// Query runs a full-text search against the query index.
	Query(ctx context.Context, query string, limit int) ([]catalog.Product, error)

	// IndexProducts upserts products into the products index and waits for
	// the indexing task. With replace set, existing documents are removed
	// first. Returns the number of documents submitted.
	IndexProducts(ctx context.Context, products []catalog.Product, replace bool) (int, error)

	// Stats returns document counts for the products index.
	Stats(ctx context.Context) (IndexStats, error)
}

// IndexStats describes the products index.
type IndexStats struct {
	Index     string `json:"index"`
	Documents int64  `json:"documents"`
	Indexing  bool   `json:"indexing"`
}
