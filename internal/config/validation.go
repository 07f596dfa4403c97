// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks cfg for values the daemon cannot start with.
func Validate(cfg *AppConfig) error {
	if cfg.MeiliURL == "" {
		return fmt.Errorf("config: DEALSEARCH_MEILI_URL is required")
	}
	u, err := url.Parse(cfg.MeiliURL)
	if err != nil {
		return fmt.Errorf("config: invalid MeiliSearch URL %q: %w", cfg.MeiliURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: MeiliSearch URL %q must use http or https", cfg.MeiliURL)
	}
	if u.Host == "" {
		return fmt.Errorf("config: MeiliSearch URL %q has no host", cfg.MeiliURL)
	}

	if cfg.ListenAddr == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("config: data directory must not be empty")
	}

	if cfg.ProductsIndex == "" {
		return fmt.Errorf("config: products index must not be empty")
	}
	if cfg.QueryIndex == "" {
		return fmt.Errorf("config: query index must not be empty")
	}

	if cfg.SalesLimit < 1 || cfg.SalesLimit > 100 {
		return fmt.Errorf("config: sales limit %d out of range [1,100]", cfg.SalesLimit)
	}
	if cfg.MeiliRetries < 0 || cfg.MeiliRetries > 10 {
		return fmt.Errorf("config: retries %d out of range [0,10]", cfg.MeiliRetries)
	}
	if cfg.MeiliTimeout <= 0 {
		return fmt.Errorf("config: upstream timeout must be positive")
	}
	if cfg.MeiliRate <= 0 {
		return fmt.Errorf("config: upstream rate must be positive")
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("config: rate limit must not be negative")
	}
	if cfg.SyncInterval < 0 {
		return fmt.Errorf("config: sync interval must not be negative")
	}
	if cfg.CacheTTL < 0 {
		return fmt.Errorf("config: cache ttl must not be negative")
	}

	switch strings.ToLower(cfg.TracingExporter) {
	case "", "grpc", "http", "noop":
	default:
		return fmt.Errorf("config: unknown tracing exporter %q (want grpc, http or noop)", cfg.TracingExporter)
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("config: unknown log level %q", cfg.LogLevel)
	}

	return nil
}
