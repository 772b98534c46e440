// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type SelectRequest struct {
	Accounts []string `json:"accounts"`
}

// SelectHandler narrows the timeline to some of the configured accounts. Next
// pages stop at once for deselected accounts; later refreshes skip them. An
// empty list selects every configured account again.
func (h *Handler) SelectHandler(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	if unknown := h.Config.UnknownAccounts(req.Accounts); len(unknown) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "unknown accounts: " + strings.Join(unknown, ", "),
		})
		return
	}

	h.Worker.Select(req.Accounts)

	ids := req.Accounts
	if len(ids) == 0 {
		for _, acc := range h.Worker.Accounts() {
			ids = append(ids, acc.ID)
		}
	}
	h.Timeline.Select(ids)

	c.JSON(http.StatusOK, gin.H{
		"selected":      ids,
		"has_next_page": h.Timeline.HasNextPage(),
	})
}
