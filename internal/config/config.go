// SPDX-License-Identifier: MIT

// Package config provides configuration management for dealsearch.
// Precedence is ENV > file > defaults.
package config

import (
	"time"
)

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version  string
	DataDir  string
	LogLevel string

	// API server
	ListenAddr     string
	APIToken       string
	RateLimit      int // requests per minute per client IP
	AllowedOrigins []string

	// MeiliSearch upstream
	MeiliURL     string
	MeiliKey     string
	MeiliTimeout time.Duration
	MeiliRetries int
	MeiliBackoff time.Duration
	MeiliRate    float64 // upstream requests per second

	// Index layout
	ProductsIndex string
	QueryIndex    string
	SalesLimit    int

	// Catalog sync
	SeedPath     string
	SyncInterval time.Duration
	InitialSync  bool

	// Response cache
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Metrics
	MetricsListen string

	// Readiness
	ReadyStrict bool

	// Tracing
	TracingEnabled  bool
	TracingExporter string // "grpc", "http" or "noop"
	TracingEndpoint string
}

// FileConfig is the YAML configuration structure. All fields are optional;
// unset fields keep their default (or env-supplied) values. Pointers
// distinguish "not set" from explicit zero values.
type FileConfig struct {
	Version  string `yaml:"version,omitempty"`
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	API         APIFileConfig     `yaml:"api,omitempty"`
	MeiliSearch MeiliFileConfig   `yaml:"meilisearch,omitempty"`
	Search      SearchFileConfig  `yaml:"search,omitempty"`
	Sync        SyncFileConfig    `yaml:"sync,omitempty"`
	Cache       CacheFileConfig   `yaml:"cache,omitempty"`
	Metrics     MetricsFileConfig `yaml:"metrics,omitempty"`
	Tracing     TracingFileConfig `yaml:"tracing,omitempty"`

	ReadyStrict *bool `yaml:"readyStrict,omitempty"`
}

// APIFileConfig holds API server settings.
type APIFileConfig struct {
	ListenAddr     string   `yaml:"listenAddr,omitempty"`
	Token          string   `yaml:"token,omitempty"`
	RateLimit      *int     `yaml:"rateLimit,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// MeiliFileConfig holds MeiliSearch client settings.
type MeiliFileConfig struct {
	URL       string   `yaml:"url,omitempty"`
	APIKey    string   `yaml:"apiKey,omitempty"`
	Timeout   string   `yaml:"timeout,omitempty"` // e.g. "10s"
	Retries   *int     `yaml:"retries,omitempty"`
	Backoff   string   `yaml:"backoff,omitempty"` // e.g. "500ms"
	RateLimit *float64 `yaml:"rateLimit,omitempty"`
}

// SearchFileConfig holds index layout settings.
type SearchFileConfig struct {
	ProductsIndex string `yaml:"productsIndex,omitempty"`
	QueryIndex    string `yaml:"queryIndex,omitempty"`
	SalesLimit    *int   `yaml:"salesLimit,omitempty"`
}

// SyncFileConfig holds catalog sync settings.
type SyncFileConfig struct {
	SeedPath string `yaml:"seedPath,omitempty"`
	Interval string `yaml:"interval,omitempty"` // e.g. "15m", "0s" disables
	Initial  *bool  `yaml:"initial,omitempty"`
}

// CacheFileConfig holds response cache settings.
type CacheFileConfig struct {
	TTL   string          `yaml:"ttl,omitempty"` // e.g. "30s"
	Redis RedisFileConfig `yaml:"redis,omitempty"`
}

// RedisFileConfig holds Redis connection settings for the response cache.
type RedisFileConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       *int   `yaml:"db,omitempty"`
}

// MetricsFileConfig holds the Prometheus listener settings.
type MetricsFileConfig struct {
	ListenAddr *string `yaml:"listenAddr,omitempty"` // empty string disables
}

// TracingFileConfig holds OpenTelemetry settings.
type TracingFileConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Exporter string `yaml:"exporter,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}
