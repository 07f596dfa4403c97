// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	xglog "github.com/koski/dealsearch/internal/log"
)

// Holder provides concurrent access to the current configuration and
// notifies listeners when it is swapped.
type Holder struct {
	mu        sync.RWMutex
	cfg       *AppConfig
	listeners []func(old, new *AppConfig)
}

// NewHolder returns a Holder seeded with cfg.
func NewHolder(cfg *AppConfig) *Holder {
	return &Holder{cfg: cfg}
}

// Get returns the current configuration. The returned value must be
// treated as read-only.
func (h *Holder) Get() *AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Set swaps the configuration and notifies listeners synchronously.
func (h *Holder) Set(cfg *AppConfig) {
	h.mu.Lock()
	old := h.cfg
	h.cfg = cfg
	listeners := make([]func(old, new *AppConfig), len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(old, cfg)
	}
}

// OnChange registers fn to run after every successful reload.
func (h *Holder) OnChange(fn func(old, new *AppConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload re-runs the loader and swaps the configuration on success.
// On failure the previous configuration stays active.
func (h *Holder) Reload(loader *Loader) error {
	cfg, err := loader.Load()
	if err != nil {
		logger := xglog.WithComponent("config")
		logger.Error().
			Err(err).
			Str("event", "config.reload.failed").
			Msg("reload failed, keeping previous configuration")
		return err
	}
	h.Set(cfg)
	logger := xglog.WithComponent("config")
	logger.Info().
		Str("event", "config.reload.applied").
		Msg("configuration reloaded")
	return nil
}

// Watch reloads the configuration when the file at path changes. Events
// are debounced because editors produce bursts of writes. Watch blocks
// until ctx is cancelled.
func Watch(ctx context.Context, path string, holder *Holder, loader *Loader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(path); err != nil {
		return err
	}

	logger := xglog.WithComponent("config")
	logger.Info().
		Str("event", "config.watch.started").
		Str("path", path).
		Msg("watching configuration file")

	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
			// Atomic replaces remove the watched inode. Re-add so
			// subsequent writes keep arriving.
			if ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create) {
				_ = watcher.Add(path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("config watcher error")
		case <-fire:
			_ = holder.Reload(loader)
		}
	}
}
