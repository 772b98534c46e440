// SPDX-License-Identifier: AGPL-3.0-only
package cli

import (
	"context"
	"errors"
	"log"

	"github.com/fluffyriot/crossfeed/internal/cache"
	"github.com/fluffyriot/crossfeed/internal/config"
	"github.com/fluffyriot/crossfeed/internal/fetcher"
	"github.com/fluffyriot/crossfeed/internal/timeline"
	"github.com/fluffyriot/crossfeed/internal/worker"
)

// App holds the components every command needs, built from one config.
type App struct {
	Config   *config.AppConfig
	Registry *fetcher.Registry
	Timeline *timeline.Timeline
	Cache    cache.Store
	Worker   *worker.Worker
}

func NewApp(cfg *config.AppConfig) *App {
	registry := fetcher.NewRegistry(fetcher.NewClient(cfg.HTTP.Timeout))
	hydrator := timeline.NewHydrator(registry, cfg.Hydration.TTL)
	tl := timeline.New(registry, hydrator, cfg.Worker.Concurrency)

	store := cache.Open(cache.Options{
		Driver: cfg.Cache.Driver,
		Path:   cfg.Cache.Path,
		DSN:    cfg.Cache.DSN,
		Limit:  cfg.Cache.Limit,
	})

	return &App{
		Config:   cfg,
		Registry: registry,
		Timeline: tl,
		Cache:    store,
		Worker:   worker.NewWorker(tl, store, cfg),
	}
}

// RestoreSnapshot shows the offline snapshot until the first refresh lands.
func (a *App) RestoreSnapshot(ctx context.Context) int {
	posts, err := a.Cache.Load(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrNoSnapshot) {
			log.Printf("CLI: cached snapshot unavailable: %v", err)
		}
		return 0
	}
	a.Timeline.Restore(posts)
	return len(posts)
}

func (a *App) Close() {
	if err := a.Cache.Close(); err != nil {
		log.Printf("CLI: closing cache: %v", err)
	}
}
