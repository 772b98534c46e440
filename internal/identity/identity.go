// SPDX-License-Identifier: AGPL-3.0-only

// Package identity assigns every native post a stable cross-platform identity.
//
// Resolution is a pure function of a post's native identifiers: it does no I/O,
// never fails, and narrows the key set when metadata is missing.
package identity

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/fluffyriot/crossfeed/internal/models"
	"github.com/fluffyriot/crossfeed/internal/wire"
)

const canonicalPrefix = "canonical:"

// eventNamespace scopes the v5 UUIDs minted for social events.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://crossfeed.invalid/social-event"))

type Resolution struct {
	CanonicalID   string
	Network       models.Network
	NativeKeys    []models.NativeKey
	CanonicalPost *models.Post
	SocialEvents  []models.SocialEvent
}

// PrimaryKey is the key the canonical id was derived from.
func (r Resolution) PrimaryKey() models.NativeKey {
	if len(r.NativeKeys) == 0 {
		return models.NativeKey{Network: r.Network}
	}
	return r.NativeKeys[0]
}

// Resolve maps a normalized post to its canonical identity. Boosts are unwrapped
// first and yield one repost event attributed to the wrapper's author. account is
// the account the post was fetched through; its server host stands in when the
// post carries no URL.
func Resolve(post *models.Post, account models.Account) Resolution {
	if post == nil {
		return fromKeys(models.NetworkActivityPub, nil)
	}

	source := post.Source()
	network := source.Platform.Network()
	if source.Platform == "" {
		network = account.Platform.Network()
	}

	var keys []models.NativeKey
	switch network {
	case models.NetworkATProto:
		keys = atprotoKeys(source.NativeID(), source.ContentHash)
	default:
		keys = activityPubKeys(source.URL, source.NativeID(), account.ServerHost())
	}

	res := fromKeys(network, keys)
	res.CanonicalPost = source

	if post.IsBoost() {
		res.SocialEvents = []models.SocialEvent{
			repostEvent(network, res.CanonicalID, post.Author, post.NativeID(), post),
		}
	}

	return res
}

// ResolveMastodonStatus applies the same rules to a raw status before it is
// normalized.
func ResolveMastodonStatus(status wire.MastodonStatus, account models.Account) Resolution {
	source := status
	if status.Reblog != nil {
		source = *status.Reblog
	}

	res := fromKeys(models.NetworkActivityPub, activityPubKeys(source.Link(), source.ID, account.ServerHost()))

	if status.Reblog != nil {
		actor := models.Author{
			ID:        status.Account.ID,
			Name:      status.Account.DisplayName,
			Username:  status.Account.Acct,
			AvatarURL: status.Account.Avatar,
		}
		ev := repostEvent(models.NetworkActivityPub, res.CanonicalID, actor, status.ID, nil)
		ev.OccurredAt = status.CreatedAt
		res.SocialEvents = []models.SocialEvent{ev}
	}

	return res
}

// ResolveBlueskyFeedItem applies the same rules to a raw timeline item.
func ResolveBlueskyFeedItem(item wire.BlueskyFeedViewPost) Resolution {
	res := fromKeys(models.NetworkATProto, atprotoKeys(item.Post.URI, item.Post.CID))

	if item.IsRepost() {
		actor := models.Author{
			ID:        item.Reason.By.DID,
			Name:      item.Reason.By.DisplayName,
			Username:  item.Reason.By.Handle,
			AvatarURL: item.Reason.By.Avatar,
		}
		ev := repostEvent(models.NetworkATProto, res.CanonicalID, actor, BlueskyRepostID(item), nil)
		ev.OccurredAt = item.Reason.IndexedAt
		res.SocialEvents = []models.SocialEvent{ev}
	}

	return res
}

// BlueskyRepostID is the native id of a repost wrapper: the repost record URI
// when the reason carries one, otherwise a key built from the reposter and the post.
func BlueskyRepostID(item wire.BlueskyFeedViewPost) string {
	if item.Reason == nil {
		return ""
	}
	if item.Reason.URI != "" {
		return item.Reason.URI
	}
	return "repost:" + item.Reason.By.DID + ":" + item.Post.URI
}

func fromKeys(network models.Network, keys []models.NativeKey) Resolution {
	if len(keys) == 0 {
		keys = []models.NativeKey{{Network: network, Key: "unknown"}}
	}
	return Resolution{
		CanonicalID: canonicalPrefix + keys[0].String(),
		Network:     network,
		NativeKeys:  keys,
	}
}

// activityPubKeys builds host:id as the primary key and the raw URL as a
// secondary one. Without an id the URL key is promoted to primary.
func activityPubKeys(rawURL, id, fallbackHost string) []models.NativeKey {
	rawURL = clean(rawURL)
	id = clean(id)

	host := hostOf(rawURL)
	if host == "" {
		host = normalizeHost(fallbackHost)
	}

	var keys []models.NativeKey
	switch {
	case id != "" && host != "":
		keys = append(keys, models.NativeKey{Network: models.NetworkActivityPub, Key: host + ":" + id})
	case id != "":
		keys = append(keys, models.NativeKey{Network: models.NetworkActivityPub, Key: id})
	}
	if rawURL != "" {
		keys = append(keys, models.NativeKey{Network: models.NetworkActivityPub, Key: "url:" + rawURL})
	}
	return keys
}

// atprotoKeys uses the record URI as primary identity. The CID changes on edit,
// so it is only ever a secondary key.
func atprotoKeys(uri, cid string) []models.NativeKey {
	uri = clean(uri)
	cid = clean(cid)

	var keys []models.NativeKey
	if uri != "" {
		keys = append(keys, models.NativeKey{Network: models.NetworkATProto, Key: uri})
	}
	if cid != "" {
		keys = append(keys, models.NativeKey{Network: models.NetworkATProto, Key: "hash:" + cid})
	}
	return keys
}

func repostEvent(network models.Network, canonicalID string, actor models.Author, nativeKey string, wrapper *models.Post) models.SocialEvent {
	ev := models.SocialEvent{
		ID:              uuid.NewSHA1(eventNamespace, []byte(string(network)+":"+nativeKey)).String(),
		Type:            models.EventRepost,
		CanonicalPostID: canonicalID,
		Actor:           actor,
		NativeEventKey:  nativeKey,
	}
	if wrapper != nil {
		ev.OccurredAt = wrapper.CreatedAt
	}
	return ev
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return normalizeHost(u.Hostname())
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return strings.ToLower(host)
	}
	return ascii
}
