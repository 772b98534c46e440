// SPDX-License-Identifier: AGPL-3.0-only
package wire

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	BlueskyReasonRepost = "app.bsky.feed.defs#reasonRepost"
	BlueskyNotFoundPost = "app.bsky.feed.defs#notFoundPost"
	BlueskyBlockedPost  = "app.bsky.feed.defs#blockedPost"

	BlueskyFacetMention = "app.bsky.richtext.facet#mention"
	BlueskyFacetLink    = "app.bsky.richtext.facet#link"
	BlueskyFacetTag     = "app.bsky.richtext.facet#tag"

	BlueskyEmbedImages   = "app.bsky.embed.images#view"
	BlueskyEmbedExternal = "app.bsky.embed.external#view"
	BlueskyEmbedVideo    = "app.bsky.embed.video#view"
)

type BlueskyProfile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type BlueskyStrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type BlueskyReplyRef struct {
	Root   BlueskyStrongRef `json:"root"`
	Parent BlueskyStrongRef `json:"parent"`
}

type BlueskyFacetFeature struct {
	Type string `json:"$type"`
	DID  string `json:"did,omitempty"`
	URI  string `json:"uri,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

type BlueskyFacet struct {
	Index struct {
		ByteStart int `json:"byteStart"`
		ByteEnd   int `json:"byteEnd"`
	} `json:"index"`
	Features []BlueskyFacetFeature `json:"features"`
}

// BlueskyPostRecord keeps CreatedAt as the raw string: client-written timestamps
// are not always RFC 3339 and a bad one must not reject the whole page.
type BlueskyPostRecord struct {
	Type      string           `json:"$type"`
	Text      string           `json:"text"`
	CreatedAt string           `json:"createdAt"`
	Reply     *BlueskyReplyRef `json:"reply,omitempty"`
	Facets    []BlueskyFacet   `json:"facets,omitempty"`
	Langs     []string         `json:"langs,omitempty"`
}

type BlueskyImageView struct {
	Thumb    string `json:"thumb"`
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt"`
}

type BlueskyExternalView struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumb       string `json:"thumb"`
}

type BlueskyEmbedView struct {
	Type      string               `json:"$type"`
	Images    []BlueskyImageView   `json:"images,omitempty"`
	External  *BlueskyExternalView `json:"external,omitempty"`
	Playlist  string               `json:"playlist,omitempty"`
	Thumbnail string               `json:"thumbnail,omitempty"`
	Alt       string               `json:"alt,omitempty"`
}

// BlueskyPostView also covers the notFoundPost and blockedPost variants that
// can appear in reply context.
type BlueskyPostView struct {
	Type        string            `json:"$type,omitempty"`
	URI         string            `json:"uri"`
	CID         string            `json:"cid"`
	Author      BlueskyProfile    `json:"author"`
	Record      BlueskyPostRecord `json:"record"`
	Embed       *BlueskyEmbedView `json:"embed,omitempty"`
	ReplyCount  int               `json:"replyCount"`
	RepostCount int               `json:"repostCount"`
	LikeCount   int               `json:"likeCount"`
	QuoteCount  int               `json:"quoteCount"`
	IndexedAt   time.Time         `json:"indexedAt"`
	NotFound    bool              `json:"notFound,omitempty"`
	Blocked     bool              `json:"blocked,omitempty"`
}

// Available reports whether the view carries a real post.
func (p *BlueskyPostView) Available() bool {
	if p == nil || p.NotFound || p.Blocked {
		return false
	}
	return p.Type != BlueskyNotFoundPost && p.Type != BlueskyBlockedPost && p.URI != ""
}

// RecordKey is the last path segment of the post's at:// URI.
func (p *BlueskyPostView) RecordKey() string {
	return RecordKey(p.URI)
}

// CreatedTime parses the record timestamp, falling back to the index time.
func (p *BlueskyPostView) CreatedTime() time.Time {
	if t, err := time.Parse(time.RFC3339Nano, p.Record.CreatedAt); err == nil {
		return t
	}
	return p.IndexedAt
}

type BlueskyReason struct {
	Type      string         `json:"$type"`
	By        BlueskyProfile `json:"by"`
	IndexedAt time.Time      `json:"indexedAt"`
	URI       string         `json:"uri,omitempty"`
	CID       string         `json:"cid,omitempty"`
}

type BlueskyReplyContext struct {
	Root   *BlueskyPostView `json:"root,omitempty"`
	Parent *BlueskyPostView `json:"parent,omitempty"`
}

type BlueskyFeedViewPost struct {
	Post   BlueskyPostView      `json:"post"`
	Reply  *BlueskyReplyContext `json:"reply,omitempty"`
	Reason *BlueskyReason       `json:"reason,omitempty"`
}

func (f BlueskyFeedViewPost) IsRepost() bool {
	return f.Reason != nil && f.Reason.Type == BlueskyReasonRepost
}

type BlueskyTimeline struct {
	Feed   []BlueskyFeedViewPost `json:"feed"`
	Cursor string                `json:"cursor,omitempty"`
}

var errMissingPostURI = errors.New("post without uri")

func (t BlueskyTimeline) Validate() error {
	if t.Feed == nil {
		return errors.New("missing feed array")
	}
	for i, item := range t.Feed {
		if item.Post.URI == "" {
			return fmt.Errorf("item %d: %w", i, errMissingPostURI)
		}
	}
	return nil
}

type BlueskyPosts struct {
	Posts []BlueskyPostView `json:"posts"`
}

func (p BlueskyPosts) Validate() error {
	if p.Posts == nil {
		return errors.New("missing posts array")
	}
	return nil
}

// RecordKey returns the record key of an at:// URI.
func RecordKey(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
