// SPDX-License-Identifier: MIT

package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := &RedisCache{
		client: client,
		logger: zerolog.Nop(),
	}

	return mr, cache
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	payload := []byte(`[{"id":"p1","title":"Mouse","percentage_off":25}]`)
	cache.Set("sales:20", payload, 5*time.Minute)

	val, found := cache.Get("sales:20")
	if !found {
		t.Fatal("expected value to be found")
	}
	if !bytes.Equal(val, payload) {
		t.Errorf("Get() = %s, want original payload", val)
	}

	stats := cache.Stats()
	if stats.Sets != 1 {
		t.Errorf("expected 1 set, got %d", stats.Sets)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
}

func TestRedisCache_GetMissing(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	val, found := cache.Get("nonexistent")
	if found {
		t.Error("expected value to not be found")
	}
	if val != nil {
		t.Errorf("expected nil value, got %v", val)
	}

	if stats := cache.Stats(); stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestRedisCache_TTL(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	cache.Set("ttl-key", []byte("ttl-value"), 100*time.Millisecond)

	if _, found := cache.Get("ttl-key"); !found {
		t.Fatal("expected value to be found immediately")
	}

	// Fast-forward time in miniredis
	mr.FastForward(200 * time.Millisecond)

	if _, found := cache.Get("ttl-key"); found {
		t.Error("expected value to be expired")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	cache.Set("delete-key", []byte("v"), 5*time.Minute)
	cache.Delete("delete-key")

	if _, found := cache.Get("delete-key"); found {
		t.Error("expected deleted key to be gone")
	}
}

func TestRedisCache_Clear(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer mr.Close()

	cache.Set("a", []byte("1"), 5*time.Minute)
	cache.Set("b", []byte("2"), 5*time.Minute)

	cache.Clear()

	if _, found := cache.Get("a"); found {
		t.Error("expected cache to be empty after Clear")
	}
	if stats := cache.Stats(); stats.CurrentSize != 0 {
		t.Errorf("CurrentSize = %d after Clear", stats.CurrentSize)
	}
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, cache := setupMiniRedis(t)

	if err := cache.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	mr.Close()

	if err := cache.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() succeeded against closed server")
	}
}

func TestNewRedisCacheConnectionFailure(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	if err == nil {
		t.Fatal("NewRedisCache() succeeded against unreachable address")
	}
}
