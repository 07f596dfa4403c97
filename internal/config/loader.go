// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	xglog "github.com/koski/dealsearch/internal/log"
	"github.com/koski/dealsearch/internal/version"
)

// Defaults for the resolved configuration. Values chosen for a small
// single-instance deployment fronting one MeiliSearch node.
const (
	DefaultListenAddr    = ":8080"
	DefaultDataDir       = "/data"
	DefaultLogLevel      = "info"
	DefaultMeiliTimeout  = 10 * time.Second
	DefaultMeiliRetries  = 3
	DefaultMeiliBackoff  = 500 * time.Millisecond
	DefaultMeiliRate     = 50.0
	DefaultProductsIndex = "products"
	DefaultSalesLimit    = 20
	DefaultCacheTTL      = 30 * time.Second
	DefaultMetricsListen = ":9090"
	DefaultRateLimit     = 600
)

// Loader resolves the application configuration from defaults, an optional
// YAML file and DEALSEARCH_* environment variables, in ascending precedence.
type Loader struct {
	// FilePath overrides the config file location. When empty the loader
	// looks for config.yaml in the data directory.
	FilePath string
}

// Load resolves and validates the configuration.
func (l *Loader) Load() (*AppConfig, error) {
	cfg := defaults()

	path := l.resolvePath()
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePath returns the config file to read, or "" when none exists.
// Explicit paths must exist; the implicit data-dir location is optional.
func (l *Loader) resolvePath() string {
	if l.FilePath != "" {
		return l.FilePath
	}
	dataDir := ParseString("DEALSEARCH_DATA", DefaultDataDir)
	implicit := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(implicit); err == nil {
		return implicit
	}
	return ""
}

func defaults() *AppConfig {
	return &AppConfig{
		Version:         version.Version,
		DataDir:         DefaultDataDir,
		LogLevel:        DefaultLogLevel,
		ListenAddr:      DefaultListenAddr,
		RateLimit:       DefaultRateLimit,
		MeiliTimeout:    DefaultMeiliTimeout,
		MeiliRetries:    DefaultMeiliRetries,
		MeiliBackoff:    DefaultMeiliBackoff,
		MeiliRate:       DefaultMeiliRate,
		ProductsIndex:   DefaultProductsIndex,
		QueryIndex:      DefaultProductsIndex,
		SalesLimit:      DefaultSalesLimit,
		InitialSync:     true,
		CacheTTL:        DefaultCacheTTL,
		MetricsListen:   DefaultMetricsListen,
		TracingExporter: "grpc",
	}
}

// applyFile layers a YAML config file over cfg. Unknown keys are rejected
// so typos surface at startup instead of silently keeping defaults.
func applyFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	mergeFile(cfg, &fc)

	logger := xglog.WithComponent("config")
	logger.Info().
		Str("event", "config.file.loaded").
		Str("path", path).
		Msg("loaded configuration file")
	return nil
}

// mergeFile applies the set fields of fc onto cfg.
func mergeFile(cfg *AppConfig, fc *FileConfig) {
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.LogLevel, fc.LogLevel)

	setString(&cfg.ListenAddr, fc.API.ListenAddr)
	setString(&cfg.APIToken, fc.API.Token)
	if fc.API.RateLimit != nil {
		cfg.RateLimit = *fc.API.RateLimit
	}
	if len(fc.API.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.API.AllowedOrigins
	}

	setString(&cfg.MeiliURL, fc.MeiliSearch.URL)
	setString(&cfg.MeiliKey, fc.MeiliSearch.APIKey)
	setDuration(&cfg.MeiliTimeout, fc.MeiliSearch.Timeout)
	if fc.MeiliSearch.Retries != nil {
		cfg.MeiliRetries = *fc.MeiliSearch.Retries
	}
	setDuration(&cfg.MeiliBackoff, fc.MeiliSearch.Backoff)
	if fc.MeiliSearch.RateLimit != nil {
		cfg.MeiliRate = *fc.MeiliSearch.RateLimit
	}

	setString(&cfg.ProductsIndex, fc.Search.ProductsIndex)
	setString(&cfg.QueryIndex, fc.Search.QueryIndex)
	if fc.Search.SalesLimit != nil {
		cfg.SalesLimit = *fc.Search.SalesLimit
	}

	setString(&cfg.SeedPath, fc.Sync.SeedPath)
	setDuration(&cfg.SyncInterval, fc.Sync.Interval)
	if fc.Sync.Initial != nil {
		cfg.InitialSync = *fc.Sync.Initial
	}

	setDuration(&cfg.CacheTTL, fc.Cache.TTL)
	setString(&cfg.RedisAddr, fc.Cache.Redis.Addr)
	setString(&cfg.RedisPassword, fc.Cache.Redis.Password)
	if fc.Cache.Redis.DB != nil {
		cfg.RedisDB = *fc.Cache.Redis.DB
	}

	if fc.Metrics.ListenAddr != nil {
		cfg.MetricsListen = *fc.Metrics.ListenAddr
	}

	if fc.Tracing.Enabled != nil {
		cfg.TracingEnabled = *fc.Tracing.Enabled
	}
	setString(&cfg.TracingExporter, fc.Tracing.Exporter)
	setString(&cfg.TracingEndpoint, fc.Tracing.Endpoint)

	if fc.ReadyStrict != nil {
		cfg.ReadyStrict = *fc.ReadyStrict
	}
}

// applyEnv layers DEALSEARCH_* environment variables over cfg.
func applyEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString("DEALSEARCH_DATA", cfg.DataDir)
	cfg.LogLevel = ParseString("DEALSEARCH_LOG_LEVEL", cfg.LogLevel)

	cfg.ListenAddr = ParseString("DEALSEARCH_LISTEN", cfg.ListenAddr)
	cfg.APIToken = ParseString("DEALSEARCH_API_TOKEN", cfg.APIToken)
	cfg.RateLimit = ParseInt("DEALSEARCH_RATE_LIMIT", cfg.RateLimit)
	cfg.AllowedOrigins = ParseStringSlice("DEALSEARCH_ALLOWED_ORIGINS", cfg.AllowedOrigins)

	cfg.MeiliURL = ParseString("DEALSEARCH_MEILI_URL", cfg.MeiliURL)
	cfg.MeiliKey = ParseString("DEALSEARCH_MEILI_KEY", cfg.MeiliKey)
	cfg.MeiliTimeout = ParseDuration("DEALSEARCH_MEILI_TIMEOUT", cfg.MeiliTimeout)
	cfg.MeiliRetries = ParseInt("DEALSEARCH_MEILI_RETRIES", cfg.MeiliRetries)
	cfg.MeiliBackoff = ParseDuration("DEALSEARCH_MEILI_BACKOFF", cfg.MeiliBackoff)
	cfg.MeiliRate = ParseFloat("DEALSEARCH_MEILI_RATE", cfg.MeiliRate)

	cfg.ProductsIndex = ParseString("DEALSEARCH_PRODUCTS_INDEX", cfg.ProductsIndex)
	cfg.QueryIndex = ParseString("DEALSEARCH_QUERY_INDEX", cfg.QueryIndex)
	cfg.SalesLimit = ParseInt("DEALSEARCH_SALES_LIMIT", cfg.SalesLimit)

	cfg.SeedPath = ParseString("DEALSEARCH_SEED_PATH", cfg.SeedPath)
	cfg.SyncInterval = ParseDuration("DEALSEARCH_SYNC_INTERVAL", cfg.SyncInterval)
	cfg.InitialSync = ParseBool("DEALSEARCH_INITIAL_SYNC", cfg.InitialSync)

	cfg.CacheTTL = ParseDuration("DEALSEARCH_CACHE_TTL", cfg.CacheTTL)
	cfg.RedisAddr = ParseString("DEALSEARCH_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("DEALSEARCH_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("DEALSEARCH_REDIS_DB", cfg.RedisDB)

	cfg.MetricsListen = ParseString("DEALSEARCH_METRICS_LISTEN", cfg.MetricsListen)

	cfg.ReadyStrict = ParseBool("DEALSEARCH_READY_STRICT", cfg.ReadyStrict)

	cfg.TracingEnabled = ParseBool("DEALSEARCH_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.TracingExporter = ParseString("DEALSEARCH_TRACING_EXPORTER", cfg.TracingExporter)
	cfg.TracingEndpoint = ParseString("DEALSEARCH_TRACING_ENDPOINT", cfg.TracingEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger := xglog.WithComponent("config")
		logger.Warn().
			Str("value", v).
			Msg("invalid duration in config file, keeping previous value")
		return
	}
	*dst = d
}
