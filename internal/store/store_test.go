// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func record(finished time.Time, docs int, ok bool) *SyncRecord {
	return &SyncRecord{
		StartedAt:  finished.Add(-2 * time.Second),
		FinishedAt: finished,
		Documents:  docs,
		Source:     "json:/data/seed.json",
		Replace:    true,
		Trigger:    "interval",
		Success:    ok,
	}
}

func TestLastSyncEmpty(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.LastSync()
	if err != nil {
		t.Fatalf("LastSync: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for empty store, got %+v", rec)
	}
}

func TestPutAndLastSync(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := record(time.Now().UTC().Truncate(time.Millisecond), 42, true)
	if err := s.PutSyncRecord(ctx, want); err != nil {
		t.Fatalf("PutSyncRecord: %v", err)
	}

	got, err := s.LastSync()
	if err != nil {
		t.Fatalf("LastSync: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	if got.Documents != 42 || !got.Success || got.Trigger != "interval" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.FinishedAt.Equal(want.FinishedAt) {
		t.Fatalf("FinishedAt = %v, want %v", got.FinishedAt, want.FinishedAt)
	}
}

func TestLastSyncOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	if err := s.PutSyncRecord(ctx, record(base, 10, true)); err != nil {
		t.Fatalf("PutSyncRecord: %v", err)
	}
	if err := s.PutSyncRecord(ctx, record(base.Add(time.Minute), 99, false)); err != nil {
		t.Fatalf("PutSyncRecord: %v", err)
	}

	got, err := s.LastSync()
	if err != nil {
		t.Fatalf("LastSync: %v", err)
	}
	if got.Documents != 99 || got.Success {
		t.Fatalf("expected latest record to win, got %+v", got)
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		rec := record(base.Add(time.Duration(i)*time.Minute), i, true)
		if err := s.PutSyncRecord(ctx, rec); err != nil {
			t.Fatalf("PutSyncRecord %d: %v", i, err)
		}
	}

	runs, err := s.RecentRuns(ctx, 3)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i, want := range []int{4, 3, 2} {
		if runs[i].Documents != want {
			t.Fatalf("run %d: Documents = %d, want %d", i, runs[i].Documents, want)
		}
	}
}

func TestRecentRunsLimitZero(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutSyncRecord(ctx, record(time.Now(), 1, true)); err != nil {
		t.Fatalf("PutSyncRecord: %v", err)
	}
	runs, err := s.RecentRuns(ctx, 0)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs != nil {
		t.Fatalf("expected nil for limit 0, got %v", runs)
	}
}

func TestRecentRunsCancelled(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := record(time.Now().Add(time.Duration(i)*time.Second), i, true)
		if err := s.PutSyncRecord(ctx, rec); err != nil {
			t.Fatalf("PutSyncRecord: %v", err)
		}
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.RecentRuns(cancelled, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPutSyncRecordCancelled(t *testing.T) {
	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.PutSyncRecord(ctx, record(time.Now(), 1, true))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDuration(t *testing.T) {
	rec := record(time.Now(), 1, true)
	if got := rec.Duration(); got != 2*time.Second {
		t.Fatalf("Duration = %v, want 2s", got)
	}
}
