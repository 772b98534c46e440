// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/fluffyriot/crossfeed/internal/cache"
	"github.com/fluffyriot/crossfeed/internal/config"
	"github.com/fluffyriot/crossfeed/internal/middleware"
	"github.com/fluffyriot/crossfeed/internal/timeline"
	"github.com/fluffyriot/crossfeed/internal/updater"
	"github.com/fluffyriot/crossfeed/internal/worker"
)

type Handler struct {
	Timeline *timeline.Timeline
	Cache    cache.Store
	Config   *config.AppConfig
	Worker   *worker.Worker
	Updater  *updater.Updater
}

func NewHandler(tl *timeline.Timeline, store cache.Store, cfg *config.AppConfig, w *worker.Worker) *Handler {
	return &Handler{
		Timeline: tl,
		Cache:    store,
		Config:   cfg,
		Worker:   w,
	}
}

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.AuthMiddleware(h.Config.HTTP.APIToken))

	r.GET("/health", h.HealthCheckHandler)
	r.GET("/api/version", h.UpdatesHandler)

	api := r.Group("/api/timeline")
	api.GET("", h.TimelineHandler)
	api.POST("/refresh", h.RefreshHandler)
	api.POST("/next", h.NextPageHandler)
	api.GET("/cached", h.CachedHandler)
	api.GET("/stats", h.StatsHandler)
	api.GET("/post", h.PostHandler)
	api.GET("/stream", h.StreamHandler)
	api.POST("/select", h.SelectHandler)

	return r
}
