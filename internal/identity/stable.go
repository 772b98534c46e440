// SPDX-License-Identifier: AGPL-3.0-only
package identity

import "github.com/fluffyriot/crossfeed/internal/models"

// BoostID returns the id a boost wrapper should carry. A wrapper whose id equals
// its original's id gets "boost-<authorUsername>-<originalId>" instead.
func BoostID(post *models.Post) string {
	if !post.IsBoost() || post.ID != post.OriginalPost.ID {
		return post.ID
	}
	return "boost-" + post.Author.Username + "-" + post.OriginalPost.ID
}

// StableID is the per-pass dedup key. Plain posts collapse on their canonical id,
// so one post fetched through two accounts is kept once. Boost wrappers are keyed
// by their own id, keeping them apart from the original they wrap.
func StableID(post *models.Post, account models.Account) string {
	if post.IsBoost() {
		platform := post.Platform
		if platform == "" {
			platform = account.Platform
		}
		return "boost:" + string(platform) + ":" + BoostID(post)
	}
	return Resolve(post, account).CanonicalID
}
