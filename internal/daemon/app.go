// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/koski/dealsearch/internal/api"
	"github.com/koski/dealsearch/internal/config"
	"github.com/koski/dealsearch/internal/jobs"
)

// AppDeps wires the optional runtime subsystems an App coordinates.
// Nil fields disable the corresponding subsystem.
type AppDeps struct {
	Holder     *config.Holder
	Loader     *config.Loader
	ConfigPath string       // empty disables the file watcher
	Server     *api.Server  // receives config swaps on reload
	Runner     *jobs.Runner // periodic sync schedule
}

// App owns the long-lived runtime lifecycle (config watcher, reload
// wiring, sync schedule) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	deps         AppDeps
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, deps AppDeps) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		deps:         deps,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Reload wiring: push every accepted config swap into the server.
	if a.deps.Holder != nil && a.deps.Server != nil {
		server := a.deps.Server
		a.deps.Holder.OnChange(func(_, cfg *config.AppConfig) {
			if cfg != nil {
				server.ApplyConfig(*cfg)
			}
		})
	}

	// Config watcher is best-effort: a watcher failure must not take
	// the daemon down.
	if a.deps.Holder != nil && a.deps.Loader != nil && a.deps.ConfigPath != "" {
		g.Go(func() error {
			err := config.Watch(ctx, a.deps.ConfigPath, a.deps.Holder, a.deps.Loader)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().
					Err(err).
					Str("event", "config.watcher_failed").
					Msg("config watcher stopped")
			}
			return nil
		})
	}

	// SIGHUP trigger for manual reload.
	if a.deps.Holder != nil && a.deps.Loader != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					// Reload keeps the previous config on failure and
					// logs the outcome itself.
					_ = a.deps.Holder.Reload(a.deps.Loader)
				}
			}
		})
	}

	// Periodic sync schedule (stops via ctx).
	if a.deps.Runner != nil {
		g.Go(func() error {
			return a.deps.Runner.Run(ctx)
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
