// SPDX-License-Identifier: AGPL-3.0-only
package timeline

import (
	"sort"

	"github.com/fluffyriot/crossfeed/internal/identity"
	"github.com/fluffyriot/crossfeed/internal/models"
)

// batch is one account's contribution to a merge pass.
type batch struct {
	account    models.Account
	posts      []*models.Post
	pagination models.PaginationInfo
	err        error
}

// mergeBatches walks the batches in order and keeps the first post for every
// stable id not already in seen. seen is updated in place. Retained posts get
// their StableID set and, for colliding boost wrappers, a synthesized ID.
func mergeBatches(batches []batch, seen map[string]struct{}) ([]*models.Post, []models.SocialEvent) {
	var (
		out    []*models.Post
		events []models.SocialEvent
	)

	for _, b := range batches {
		if b.err != nil {
			continue
		}

		for _, post := range b.posts {
			if post == nil {
				continue
			}

			if post.IsBoost() {
				post.ID = identity.BoostID(post)
			}

			stableID := identity.StableID(post, b.account)
			if _, exists := seen[stableID]; exists {
				continue
			}
			seen[stableID] = struct{}{}

			post.StableID = stableID
			if post.AccountID == "" {
				post.AccountID = b.account.ID
			}
			out = append(out, post)

			if post.IsBoost() {
				events = append(events, identity.Resolve(post, b.account).SocialEvents...)
			}
		}
	}

	return out, events
}

// sortPosts orders newest first. Posts with equal timestamps keep their
// relative order.
func sortPosts(posts []*models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
