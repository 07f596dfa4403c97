// SPDX-License-Identifier: MIT

package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("sales:20", []byte(`[{"id":"p1"}]`), time.Minute)

	val, found := c.Get("sales:20")
	if !found {
		t.Fatal("expected value to be found")
	}
	if !bytes.Equal(val, []byte(`[{"id":"p1"}]`)) {
		t.Errorf("Get() = %s", val)
	}

	stats := c.Stats()
	if stats.Sets != 1 || stats.Hits != 1 {
		t.Errorf("stats = %+v, want 1 set 1 hit", stats)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, found := c.Get("k"); found {
		t.Error("expected entry to be expired")
	}
	if stats := c.Stats(); stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)

	c.Delete("a")
	if _, found := c.Get("a"); found {
		t.Error("deleted key still present")
	}

	c.Clear()
	if _, found := c.Get("b"); found {
		t.Error("cleared key still present")
	}
	if stats := c.Stats(); stats.CurrentSize != 0 {
		t.Errorf("CurrentSize = %d after Clear", stats.CurrentSize)
	}
}

func TestMemoryCacheJanitorEvicts(t *testing.T) {
	c := NewMemoryCache(20 * time.Millisecond)
	defer c.(*memoryCache).Stop()

	c.Set("short", []byte("v"), 5*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for {
		if stats := c.Stats(); stats.Evictions >= 1 && stats.CurrentSize == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("janitor did not evict expired entry: %+v", c.Stats())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNoOpCacheNeverStores(t *testing.T) {
	c := NewNoOpCache()

	c.Set("k", []byte("v"), time.Minute)
	if _, found := c.Get("k"); found {
		t.Error("noop cache returned a value")
	}
	if stats := c.Stats(); stats != (CacheStats{}) {
		t.Errorf("noop stats = %+v, want zero", stats)
	}
}
