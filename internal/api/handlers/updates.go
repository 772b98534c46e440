// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluffyriot/crossfeed/internal/config"
)

func (h *Handler) UpdatesHandler(c *gin.Context) {
	if h.Updater == nil {
		c.JSON(http.StatusOK, gin.H{"version": config.AppVersion, "update_available": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version":          config.AppVersion,
		"latest":           h.Updater.GetUpdateInfo().Latest,
		"update_available": h.Updater.IsUpdateAvailable(),
	})
}
