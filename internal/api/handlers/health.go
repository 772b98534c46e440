// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluffyriot/crossfeed/internal/cache"
)

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	if h.Timeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "failure", "details": "timeline not initialized"})
		return
	}

	store := "sql"
	if _, ok := h.Cache.(*cache.MemoryStore); ok || h.Cache == nil {
		store = "memory"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"generation":    h.Timeline.Generation(),
		"cache":         store,
		"worker_active": h.Worker != nil && h.Worker.IsActive(),
	})
}
