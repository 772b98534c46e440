// SPDX-License-Identifier: AGPL-3.0-only
package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluffyriot/crossfeed/internal/models"
	"github.com/fluffyriot/crossfeed/internal/wire"
)

var (
	mastoAccount = models.Account{ID: "acct-m", Platform: models.PlatformMastodon, Server: "https://example.social"}
	otherMasto   = models.Account{ID: "acct-o", Platform: models.PlatformMastodon, Server: "other.host"}
	bskyAccount  = models.Account{ID: "acct-b", Platform: models.PlatformBluesky, Server: "https://bsky.social"}
)

func mastoPost(id, url string) *models.Post {
	return &models.Post{
		ID:                 id,
		PlatformSpecificID: id,
		Platform:           models.PlatformMastodon,
		URL:                url,
		Author:             models.Author{Username: "alice"},
		CreatedAt:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestResolve_MastodonUsesURLHost(t *testing.T) {
	res := Resolve(mastoPost("42", "https://example.social/@alice/42"), otherMasto)

	assert.Equal(t, "canonical:activitypub:example.social:42", res.CanonicalID)
	assert.Equal(t, models.NetworkActivityPub, res.Network)
	require.Len(t, res.NativeKeys, 2)
	assert.Equal(t, "activitypub:url:https://example.social/@alice/42", res.NativeKeys[1].String())
	assert.Empty(t, res.SocialEvents)
}

func TestResolve_MastodonFallsBackToAccountHost(t *testing.T) {
	res := Resolve(mastoPost("42", ""), mastoAccount)

	assert.Equal(t, "canonical:activitypub:example.social:42", res.CanonicalID)
	assert.Len(t, res.NativeKeys, 1)
}

func TestResolve_MastodonHostIsCaseInsensitive(t *testing.T) {
	a := Resolve(mastoPost("7", "https://Example.Social/@alice/7"), mastoAccount)
	b := Resolve(mastoPost("7", "https://example.social/@alice/7"), mastoAccount)

	assert.Equal(t, a.CanonicalID, b.CanonicalID)
}

func TestResolve_MissingMetadataNarrowsKey(t *testing.T) {
	res := Resolve(mastoPost("42", ""), models.Account{Platform: models.PlatformMastodon})
	assert.Equal(t, "canonical:activitypub:42", res.CanonicalID)

	res = Resolve(&models.Post{Platform: models.PlatformMastodon}, models.Account{})
	assert.Equal(t, "canonical:activitypub:unknown", res.CanonicalID)

	res = Resolve(nil, models.Account{})
	assert.NotEmpty(t, res.CanonicalID)
}

func TestResolve_Bluesky(t *testing.T) {
	uri := "at://did:plc:x/app.bsky.feed.post/1"
	post := &models.Post{
		ID:                 uri,
		PlatformSpecificID: uri,
		Platform:           models.PlatformBluesky,
		ContentHash:        "bafyabc",
	}

	res := Resolve(post, bskyAccount)

	assert.Equal(t, "canonical:atproto:at://did:plc:x/app.bsky.feed.post/1", res.CanonicalID)
	require.Len(t, res.NativeKeys, 2)
	assert.Equal(t, "atproto:hash:bafyabc", res.NativeKeys[1].String())
}

func TestResolve_BlueskyEditKeepsCanonicalID(t *testing.T) {
	uri := "at://did:plc:x/app.bsky.feed.post/1"
	before := &models.Post{ID: uri, Platform: models.PlatformBluesky, ContentHash: "cid-1"}
	after := &models.Post{ID: uri, Platform: models.PlatformBluesky, ContentHash: "cid-2"}

	assert.Equal(t, Resolve(before, bskyAccount).CanonicalID, Resolve(after, bskyAccount).CanonicalID)
}

func TestResolve_Deterministic(t *testing.T) {
	post := mastoPost("99", "https://example.social/@alice/99")

	first := Resolve(post, mastoAccount)
	_ = Resolve(&models.Post{ID: "at://did:plc:y/app.bsky.feed.post/2", Platform: models.PlatformBluesky}, bskyAccount)
	second := Resolve(post, otherMasto)

	assert.Equal(t, first.CanonicalID, second.CanonicalID)
	assert.Equal(t, first.NativeKeys, second.NativeKeys)
}

func TestResolve_BoostUnwrapsAndEmitsRepost(t *testing.T) {
	original := mastoPost("42", "https://example.social/@alice/42")
	wrapper := &models.Post{
		ID:                 "1001",
		PlatformSpecificID: "1001",
		Platform:           models.PlatformMastodon,
		Author:             models.Author{Username: "bob", Name: "Bob"},
		CreatedAt:          time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
		OriginalPost:       original,
	}

	res := Resolve(wrapper, mastoAccount)

	assert.Equal(t, "canonical:activitypub:example.social:42", res.CanonicalID)
	assert.Same(t, original, res.CanonicalPost)
	require.Len(t, res.SocialEvents, 1)

	ev := res.SocialEvents[0]
	assert.Equal(t, models.EventRepost, ev.Type)
	assert.Equal(t, "bob", ev.Actor.Username)
	assert.Equal(t, "1001", ev.NativeEventKey)
	assert.Equal(t, res.CanonicalID, ev.CanonicalPostID)
	assert.Equal(t, wrapper.CreatedAt, ev.OccurredAt)

	again := Resolve(wrapper, mastoAccount)
	assert.Equal(t, ev.ID, again.SocialEvents[0].ID)
}

func TestResolve_BoostEventKeyFallsBackToID(t *testing.T) {
	wrapper := &models.Post{
		ID:           "local-7",
		Platform:     models.PlatformMastodon,
		OriginalPost: mastoPost("42", "https://example.social/@alice/42"),
	}

	res := Resolve(wrapper, mastoAccount)

	require.Len(t, res.SocialEvents, 1)
	assert.Equal(t, "local-7", res.SocialEvents[0].NativeEventKey)
}

func TestResolveMastodonStatus_MatchesNormalized(t *testing.T) {
	status := wire.MastodonStatus{
		ID:      "1001",
		Account: wire.MastodonAccount{ID: "9", Acct: "bob"},
		Reblog: &wire.MastodonStatus{
			ID:  "42",
			URL: "https://example.social/@alice/42",
		},
	}

	raw := ResolveMastodonStatus(status, mastoAccount)

	wrapper := &models.Post{
		ID:                 "1001",
		PlatformSpecificID: "1001",
		Platform:           models.PlatformMastodon,
		Author:             models.Author{Username: "bob"},
		OriginalPost:       mastoPost("42", "https://example.social/@alice/42"),
	}
	normalized := Resolve(wrapper, mastoAccount)

	assert.Equal(t, normalized.CanonicalID, raw.CanonicalID)
	require.Len(t, raw.SocialEvents, 1)
	assert.Equal(t, normalized.SocialEvents[0].ID, raw.SocialEvents[0].ID)
}

func TestResolveBlueskyFeedItem(t *testing.T) {
	item := wire.BlueskyFeedViewPost{
		Post: wire.BlueskyPostView{URI: "at://did:plc:x/app.bsky.feed.post/1", CID: "bafy1"},
		Reason: &wire.BlueskyReason{
			Type: wire.BlueskyReasonRepost,
			By:   wire.BlueskyProfile{DID: "did:plc:z", Handle: "carol.bsky.social"},
		},
	}

	res := ResolveBlueskyFeedItem(item)

	assert.Equal(t, "canonical:atproto:at://did:plc:x/app.bsky.feed.post/1", res.CanonicalID)
	require.Len(t, res.SocialEvents, 1)
	assert.Equal(t, "repost:did:plc:z:at://did:plc:x/app.bsky.feed.post/1", res.SocialEvents[0].NativeEventKey)
	assert.Equal(t, "carol.bsky.social", res.SocialEvents[0].Actor.Username)
}

func TestBoostID(t *testing.T) {
	original := mastoPost("42", "")
	collide := &models.Post{ID: "42", Author: models.Author{Username: "bob"}, OriginalPost: original}
	distinct := &models.Post{ID: "1001", Author: models.Author{Username: "bob"}, OriginalPost: original}

	assert.Equal(t, "boost-bob-42", BoostID(collide))
	assert.Equal(t, "1001", BoostID(distinct))
	assert.Equal(t, "42", BoostID(original))
}

func TestStableID_SeparatesWrapperFromOriginal(t *testing.T) {
	original := mastoPost("42", "https://example.social/@alice/42")
	wrapper := &models.Post{ID: "42", Platform: models.PlatformMastodon, Author: models.Author{Username: "bob"}, OriginalPost: original}

	assert.NotEqual(t, StableID(original, mastoAccount), StableID(wrapper, mastoAccount))
	assert.Equal(t, "boost:mastodon:boost-bob-42", StableID(wrapper, mastoAccount))
}
