// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"time"

	"github.com/koski/dealsearch/internal/catalog"
	"github.com/koski/dealsearch/internal/store"
)

// Sync triggers.
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerAPI      = "api"
)

// Status represents the outcome of the most recent sync job
type Status struct {
	LastRun    time.Time `json:"last_run"`
	Documents  int       `json:"documents"`
	DurationMS int64     `json:"duration_ms"`
	Source     string    `json:"source"`
	Trigger    string    `json:"trigger"`
	Error      string    `json:"error,omitempty"`
}

// Indexer defines the slice of the search client sync operations need
type Indexer interface {
	EnsureIndexes(ctx context.Context) error
	IndexProducts(ctx context.Context, products []catalog.Product, replace bool) (int, error)
}

// Recorder persists sync outcomes across restarts
type Recorder interface {
	PutSyncRecord(ctx context.Context, rec *store.SyncRecord) error
}

// Deps holds all dependencies for the sync operation
type Deps struct {
	Source  catalog.Source
	Indexer Indexer
	Records Recorder // optional; nil disables persistence

	// Replace clears the index before writing instead of upserting.
	Replace bool

	Clock func() time.Time
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Source == nil {
		return ErrMissingSource
	}
	if d.Indexer == nil {
		return ErrMissingIndexer
	}
	return nil
}

func (d *Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}
