package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/czkultura/dataserve/internal/cache"
	"github.com/czkultura/dataserve/internal/config"
	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/logger"
	"github.com/czkultura/dataserve/internal/probe"
	"github.com/czkultura/dataserve/internal/refresh"
	"github.com/czkultura/dataserve/internal/resolver"
	"github.com/czkultura/dataserve/internal/snapshot"
)

// App is the application container (immutable dependencies + lifecycle
// context). It is not a request context; handlers should still use gin's
// request context.
type App struct {
	Config   *config.Config
	Registry *dataset.Registry
	Store    *snapshot.Store
	Prober   probe.Prober
	Cache    *cache.Cache
	Service  *resolver.Service
	Watcher  *snapshot.Watcher
	Refresh  *refresh.Loop

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

// New wires the acquisition pipeline around the given leaf dependencies:
// prober and snapshot store feed the resolver, the resolver feeds the
// cache-backed accessor service, and the same pair drives the refresh loop.
func New(cfg *config.Config, registry *dataset.Registry, store *snapshot.Store, prober probe.Prober) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	if store == nil {
		return nil, errors.New("snapshot store is nil")
	}
	if prober == nil {
		return nil, errors.New("prober is nil")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	hour, minute, err := cfg.Refresh.TriggerTime()
	if err != nil {
		return nil, err
	}

	ttlCache := cache.New()
	res := resolver.NewResolver(prober, store, cfg.Probe.RequestTimeout)
	svc := resolver.NewService(registry, ttlCache, res, loc)

	loop := refresh.New(refresh.Options{
		Datasets:     registry.All(),
		Prober:       prober,
		Store:        store,
		Poll:         cfg.Refresh.Poll,
		Hour:         hour,
		Minute:       minute,
		Location:     loc,
		ProbeTimeout: cfg.Probe.RefreshTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:   cfg,
		Registry: registry,
		Store:    store,
		Prober:   prober,
		Cache:    ttlCache,
		Service:  svc,
		Watcher:  snapshot.NewWatcher(registry.All()),
		Refresh:  loop,
		BaseCtx:  ctx,
		Cancel:   cancel,
	}, nil
}

// Shutdown cancels the lifecycle context, which stops the snapshot watcher
// and deregisters the refresh loop.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
}

// StartBackground starts the snapshot freshness watcher and, when enabled,
// the daily refresh loop. Both run until the lifecycle context is cancelled.
func (a *App) StartBackground() error {
	if err := a.Watcher.Start(a.BaseCtx); err != nil {
		return fmt.Errorf("cannot start snapshot watcher: %w", err)
	}

	if !a.Config.Refresh.Enabled {
		logger.WithComponent("app").Info("scheduled refresh disabled")
		return nil
	}
	if err := a.Refresh.Start(a.BaseCtx); err != nil {
		return fmt.Errorf("cannot start refresh loop: %w", err)
	}
	logger.WithComponent("app").Infof("daily refresh scheduled at %s (%s)", a.Config.Refresh.At, a.Config.Misc.Timezone)
	return nil
}
