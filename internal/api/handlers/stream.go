// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluffyriot/crossfeed/internal/models"
	"github.com/fluffyriot/crossfeed/internal/timeline"
)

// PostHandler returns the current version of one timeline entry.
func (h *Handler) PostHandler(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "id is required"})
		return
	}

	post, version, ok := h.Timeline.Lookup(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "post not on the timeline"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"version": version, "post": toViews([]*models.Post{post})[0]})
}

// StreamHandler sends timeline updates as server-sent events: "ready" once,
// "reset" when the whole timeline changed and "post" when one entry got a
// newer version.
func (h *Handler) StreamHandler(c *gin.Context) {
	updates, cancel := h.Timeline.Subscribe()
	defer cancel()

	c.SSEvent("ready", gin.H{"generation": h.Timeline.Generation()})
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			switch u.Kind {
			case timeline.UpdatePost:
				c.SSEvent("post", gin.H{
					"generation": u.Generation,
					"id":         u.ID,
					"version":    u.Version,
					"post":       toViews([]*models.Post{u.Post})[0],
				})
			default:
				c.SSEvent("reset", gin.H{"generation": u.Generation, "version": u.Version})
			}
			c.Writer.Flush()
		}
	}
}
