// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluffyriot/crossfeed/internal/stats"
)

func (h *Handler) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"generation": h.Timeline.Generation(),
		"accounts":   stats.GetStats(h.Timeline.Posts()),
	})
}
