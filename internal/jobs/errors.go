// SPDX-License-Identifier: MIT

package jobs

import "errors"

var (
	// ErrMissingSource is returned when no catalog source is provided
	ErrMissingSource = errors.New("catalog source is required")

	// ErrMissingIndexer is returned when no indexer is provided
	ErrMissingIndexer = errors.New("indexer is required")

	// ErrEmptyCatalog is returned when a replace sync would wipe the
	// index because the source yielded no products
	ErrEmptyCatalog = errors.New("catalog source returned no products")

	// ErrSyncInProgress is returned when a sync is already running
	ErrSyncInProgress = errors.New("a sync is already in progress")
)
