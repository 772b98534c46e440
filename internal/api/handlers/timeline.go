// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fluffyriot/crossfeed/internal/cache"
	"github.com/fluffyriot/crossfeed/internal/helpers"
	"github.com/fluffyriot/crossfeed/internal/models"
	"github.com/fluffyriot/crossfeed/internal/timeline"
	"github.com/fluffyriot/crossfeed/internal/worker"
)

type PostView struct {
	*models.Post
	Network    string `json:"network"`
	ProfileURL string `json:"profile_url,omitempty"`
}

type TimelineResponse struct {
	Generation  uint64               `json:"generation"`
	HasNextPage bool                 `json:"has_next_page"`
	Posts       []PostView           `json:"posts"`
	Events      []models.SocialEvent `json:"events,omitempty"`
}

func toViews(posts []*models.Post) []PostView {
	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		profile, _ := helpers.ConvNetworkToURL(p.Platform, p.Author.Username)
		views = append(views, PostView{
			Post:       p,
			Network:    helpers.NetworkName(p.Platform),
			ProfileURL: profile,
		})
	}
	return views
}

func limitPosts(c *gin.Context, posts []*models.Post) ([]*models.Post, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return posts, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "limit must be a non-negative integer"})
		return nil, false
	}
	if n < len(posts) {
		posts = posts[:n]
	}
	return posts, true
}

func (h *Handler) timelineResponse(posts []*models.Post) TimelineResponse {
	return TimelineResponse{
		Generation:  h.Timeline.Generation(),
		HasNextPage: h.Timeline.HasNextPage(),
		Posts:       toViews(posts),
		Events:      h.Timeline.Events(),
	}
}

func (h *Handler) TimelineHandler(c *gin.Context) {
	posts, ok := limitPosts(c, h.Timeline.Posts())
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.timelineResponse(posts))
}

func (h *Handler) RefreshHandler(c *gin.Context) {
	err := h.Worker.RefreshNow(c.Request.Context())
	switch {
	case errors.Is(err, worker.ErrRefreshRunning):
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": err.Error()})
		return
	case errors.Is(err, timeline.ErrAllAccountsFailed):
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": err.Error()})
		return
	case err != nil:
		log.Printf("Handlers: refresh failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.timelineResponse(h.Timeline.Posts()))
}

func (h *Handler) NextPageHandler(c *gin.Context) {
	added, err := h.Timeline.FetchNextPage(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generation":    h.Timeline.Generation(),
		"has_next_page": h.Timeline.HasNextPage(),
		"added":         toViews(added),
	})
}

func (h *Handler) CachedHandler(c *gin.Context) {
	if h.Cache == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": cache.ErrNoSnapshot.Error()})
		return
	}

	posts, err := h.Cache.Load(c.Request.Context())
	if errors.Is(err, cache.ErrNoSnapshot) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if err != nil {
		log.Printf("Handlers: cache load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "cached timeline unavailable"})
		return
	}

	posts, ok := limitPosts(c, posts)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": toViews(posts)})
}
