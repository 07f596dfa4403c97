// SPDX-License-Identifier: MIT

// Package store persists sync state across daemon restarts.
// Layout:
//   - "sync:last" (JSON) holds the most recent run
//   - "sync:run:<seq>" (JSON, TTL) holds the bounded run history
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	lastKey    = "sync:last"
	runPrefix  = "sync:run:"
	historyTTL = 30 * 24 * time.Hour
)

// SyncRecord describes one catalog sync run.
type SyncRecord struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Documents  int       `json:"documents"`
	Source     string    `json:"source"`
	Replace    bool      `json:"replace"`
	Trigger    string    `json:"trigger"` // startup|interval|api
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns the run duration.
func (r *SyncRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store is a badger-backed sync state store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// PutSyncRecord stores rec as the latest run and appends it to the
// history. History entries expire after thirty days.
func (s *Store) PutSyncRecord(ctx context.Context, rec *SyncRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	// Zero-padded nanos keep history keys in chronological byte order.
	runKey := []byte(fmt.Sprintf("%s%020d", runPrefix, rec.FinishedAt.UnixNano()))

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(lastKey), buf); err != nil {
			return err
		}
		entry := badger.NewEntry(runKey, buf).WithTTL(historyTTL)
		return txn.SetEntry(entry)
	})
}

// LastSync returns the most recent run, or nil when no sync has happened.
func (s *Store) LastSync() (*SyncRecord, error) {
	var out SyncRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil // no sync yet
		}
		return nil, err
	}
	return &out, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*SyncRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	prefix := []byte(runPrefix)
	var list []*SyncRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the prefix range.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(list) < limit; it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var rec SyncRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			list = append(list, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}
