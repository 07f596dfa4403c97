// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/koski/dealsearch/internal/api"
	"github.com/koski/dealsearch/internal/cache"
	"github.com/koski/dealsearch/internal/catalog"
	"github.com/koski/dealsearch/internal/config"
	"github.com/koski/dealsearch/internal/daemon"
	"github.com/koski/dealsearch/internal/health"
	"github.com/koski/dealsearch/internal/jobs"
	xglog "github.com/koski/dealsearch/internal/log"
	"github.com/koski/dealsearch/internal/metrics"
	"github.com/koski/dealsearch/internal/search"
	"github.com/koski/dealsearch/internal/store"
	"github.com/koski/dealsearch/internal/telemetry"
	"github.com/koski/dealsearch/internal/version"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "dealsearch",
		Version: version.Version,
	})

	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration with precedence: ENV > File > Defaults
	loader := &config.Loader{FilePath: strings.TrimSpace(*configPath)}
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", loader.FilePath).
			Msg("failed to load configuration")
	}

	// Re-configure logger with loaded configuration
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "dealsearch",
		Version: cfg.Version,
	})

	// Determine the file the watcher and SIGHUP reloads re-read. Explicit
	// via --config, otherwise the implicit data-dir location if it exists.
	watchPath := loader.FilePath
	if watchPath == "" {
		implicit := filepath.Join(cfg.DataDir, "config.yaml")
		if _, err := os.Stat(implicit); err == nil {
			watchPath = implicit
		}
	}

	if watchPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", watchPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	// -------------------------------------------------------------------------
	// Pre-flight Checks (Fail Fast)
	// -------------------------------------------------------------------------
	if err := health.PerformStartupChecks(ctx, *cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}

	serverCfg := config.NewServerConfig()

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.ListenAddr).
		Msg("starting dealsearch")

	// Log key configuration
	logger.Info().Msgf("→ Engine: %s (auth: %v)", maskURL(cfg.MeiliURL), cfg.MeiliKey != "")
	logger.Info().Msgf("→ Indexes: products=%s query=%s", cfg.ProductsIndex, cfg.QueryIndex)
	if cfg.SeedPath != "" {
		logger.Info().Msgf("→ Catalog: %s (sync every %s)", cfg.SeedPath, cfg.SyncInterval)
	} else {
		logger.Warn().Msg("→ Catalog: no seed source configured, sync disabled")
	}
	if cfg.APIToken != "" {
		logger.Info().Msg("→ API token: configured")
	} else {
		logger.Warn().
			Str("security", "weak").
			Msg("→ API token: NOT configured (refresh endpoint open). Set DEALSEARCH_API_TOKEN.")
	}
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)

	metrics.SetBuildInfo(version.Version, version.Commit)

	// Tracing is optional; a noop provider is installed when disabled.
	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "dealsearch",
		ServiceVersion: version.Version,
		ExporterType:   cfg.TracingExporter,
		Endpoint:       cfg.TracingEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize tracing")
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "store.open_failed").
			Msg("failed to open state store")
	}

	respCache, cacheBackend := buildCache(cfg, logger)
	logger.Info().Msgf("→ Cache: %s (TTL %s)", cacheBackend, cfg.CacheTTL)

	engine, err := search.New(search.Options{
		URL:           cfg.MeiliURL,
		APIKey:        cfg.MeiliKey,
		Timeout:       cfg.MeiliTimeout,
		MaxRetries:    cfg.MeiliRetries,
		Backoff:       cfg.MeiliBackoff,
		RateLimit:     rate.Limit(cfg.MeiliRate),
		ProductsIndex: cfg.ProductsIndex,
		QueryIndex:    cfg.QueryIndex,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "engine.init_failed").
			Msg("failed to create search client")
	}

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewEngineChecker(engine, 2*time.Second))
	hm.RegisterChecker(health.NewWritableDirChecker("data_dir", cfg.DataDir))

	var runner *jobs.Runner
	if cfg.SeedPath != "" {
		src, err := newCatalogSource(cfg.SeedPath)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "catalog.source_invalid").
				Str("path", cfg.SeedPath).
				Msg("failed to configure catalog source")
		}

		runner = jobs.NewRunner(jobs.Deps{
			Source:  src,
			Indexer: engine,
			Records: st,
			Replace: true,
		}, cfg.SyncInterval)

		// Readiness reflects syncs from before the last restart.
		if rec, err := st.LastSync(); err != nil {
			logger.Warn().Err(err).Msg("could not read last sync record")
		} else {
			runner.Seed(rec)
		}
		hm.RegisterChecker(health.NewLastSyncChecker(runner.LastSyncInfo, cfg.ReadyStrict))
	} else {
		// No catalog source; the operator populates the engine externally.
		// Create the indexes up front so queries do not 503 on first use.
		if err := engine.EnsureIndexes(ctx); err != nil {
			logger.Warn().
				Err(err).
				Str("event", "engine.ensure_failed").
				Msg("could not ensure indexes exist")
		}
	}

	// Initial sync before serving traffic. Failure is not fatal: the
	// engine may still hold documents from a previous run.
	if runner != nil && cfg.InitialSync {
		logger.Info().Msg("performing initial catalog sync on startup")
		if _, err := runner.TryRun(ctx, jobs.TriggerStartup); err != nil {
			logger.Error().Err(err).Msg("initial catalog sync failed")
			logger.Warn().Msg("→ Index may be empty until sync succeeds via POST /api/refresh")
		} else {
			logger.Info().Msg("initial catalog sync completed")
		}
	} else if runner != nil {
		logger.Warn().Msg("Initial sync is disabled (DEALSEARCH_INITIAL_SYNC=false)")
		logger.Warn().Msg("→ No documents loaded. Trigger manual sync via: POST /api/refresh")
	}

	srv := api.New(*cfg, api.Deps{
		Searcher: engine,
		Runner:   runner,
		Health:   hm,
		Cache:    respCache,
		Store:    st,
	})

	deps := daemon.Deps{
		Logger:         logger,
		Config:         *cfg,
		APIHandler:     srv.Routes(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    cfg.MetricsListen,
	}

	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	mgr.RegisterShutdownHook("telemetry", tracer.Shutdown)
	mgr.RegisterShutdownHook("store", func(context.Context) error {
		return st.Close()
	})

	holder := config.NewHolder(cfg)

	app := daemon.NewApp(logger, mgr, daemon.AppDeps{
		Holder:     holder,
		Loader:     loader,
		ConfigPath: watchPath,
		Server:     srv,
		Runner:     runner,
	})
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}

// buildCache selects the response cache backend from configuration.
// Redis wins when an address is set; an unreachable Redis is fatal so
// misconfiguration surfaces at startup instead of as silent misses.
func buildCache(cfg *config.AppConfig, logger zerolog.Logger) (cache.Cache, string) {
	if cfg.RedisAddr != "" {
		c, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, xglog.WithComponent("cache"))
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "cache.redis_failed").
				Str("addr", cfg.RedisAddr).
				Msg("failed to connect to redis")
		}
		return c, "redis"
	}
	if cfg.CacheTTL > 0 {
		return cache.NewMemoryCache(time.Minute), "memory"
	}
	return cache.NewNoOpCache(), "disabled"
}

// newCatalogSource picks a source implementation from the seed file
// extension.
func newCatalogSource(path string) (catalog.Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return catalog.NewJSONSource(path), nil
	case ".db", ".sqlite", ".sqlite3":
		return catalog.NewSQLiteSource(path), nil
	default:
		return nil, fmt.Errorf("unsupported seed catalog format %q (want .json or .sqlite)", filepath.Ext(path))
	}
}
