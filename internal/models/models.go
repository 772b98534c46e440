// SPDX-License-Identifier: AGPL-3.0-only
package models

import (
	"net/url"
	"strings"
	"time"
)

type Platform string

const (
	PlatformMastodon Platform = "mastodon"
	PlatformBluesky  Platform = "bluesky"
)

// Network is the protocol family a platform speaks. Native keys are scoped by network,
// not by platform, so any ActivityPub server shares one key space.
type Network string

const (
	NetworkActivityPub Network = "activitypub"
	NetworkATProto     Network = "atproto"
)

func (p Platform) Network() Network {
	switch p {
	case PlatformBluesky:
		return NetworkATProto
	default:
		return NetworkActivityPub
	}
}

func (p Platform) Valid() bool {
	return p == PlatformMastodon || p == PlatformBluesky
}

type Author struct {
	ID        string `json:"id" cbor:"1,keyasint,omitempty"`
	Name      string `json:"name" cbor:"2,keyasint,omitempty"`
	Username  string `json:"username" cbor:"3,keyasint,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty" cbor:"4,keyasint,omitempty"`
}

type Attachment struct {
	URL         string `json:"url" cbor:"1,keyasint,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty" cbor:"2,keyasint,omitempty"`
	Type        string `json:"type" cbor:"3,keyasint,omitempty"`
	Description string `json:"description,omitempty" cbor:"4,keyasint,omitempty"`
}

type Mention struct {
	ID       string `json:"id,omitempty" cbor:"1,keyasint,omitempty"`
	Username string `json:"username" cbor:"2,keyasint,omitempty"`
	URL      string `json:"url,omitempty" cbor:"3,keyasint,omitempty"`
}

type Tag struct {
	Name string `json:"name" cbor:"1,keyasint,omitempty"`
	URL  string `json:"url,omitempty" cbor:"2,keyasint,omitempty"`
}

type Counts struct {
	Likes   int `json:"likes" cbor:"1,keyasint,omitempty"`
	Reposts int `json:"reposts" cbor:"2,keyasint,omitempty"`
	Replies int `json:"replies" cbor:"3,keyasint,omitempty"`
	Quotes  int `json:"quotes" cbor:"4,keyasint,omitempty"`
}

// Post is a normalized content unit from any platform.
//
// OriginalPost is non-nil only when the post is a boost wrapper. Parent moves
// one way: nil, then a placeholder whose Content is ParentPlaceholder, then hydrated.
type Post struct {
	ID                 string       `json:"id" cbor:"1,keyasint"`
	StableID           string       `json:"stable_id,omitempty" cbor:"2,keyasint,omitempty"`
	Content            string       `json:"content" cbor:"3,keyasint,omitempty"`
	Author             Author       `json:"author" cbor:"4,keyasint"`
	CreatedAt          time.Time    `json:"created_at" cbor:"5,keyasint"`
	Platform           Platform     `json:"platform" cbor:"6,keyasint"`
	URL                string       `json:"url,omitempty" cbor:"7,keyasint,omitempty"`
	Attachments        []Attachment `json:"attachments,omitempty" cbor:"8,keyasint,omitempty"`
	Mentions           []Mention    `json:"mentions,omitempty" cbor:"9,keyasint,omitempty"`
	Tags               []Tag        `json:"tags,omitempty" cbor:"10,keyasint,omitempty"`
	Counts             Counts       `json:"counts" cbor:"11,keyasint"`
	OriginalPost       *Post        `json:"original_post,omitempty" cbor:"12,keyasint,omitempty"`
	Parent             *Post        `json:"parent,omitempty" cbor:"13,keyasint,omitempty"`
	InReplyToID        string       `json:"in_reply_to_id,omitempty" cbor:"14,keyasint,omitempty"`
	InReplyToUsername  string       `json:"in_reply_to_username,omitempty" cbor:"15,keyasint,omitempty"`
	PlatformSpecificID string       `json:"platform_specific_id,omitempty" cbor:"16,keyasint,omitempty"`
	ContentHash        string       `json:"content_hash,omitempty" cbor:"17,keyasint,omitempty"`
	AccountID          string       `json:"account_id,omitempty" cbor:"18,keyasint,omitempty"`
}

func (p *Post) IsBoost() bool {
	return p != nil && p.OriginalPost != nil
}

// Source returns the post whose content is displayed: the wrapped original for a
// boost, the post itself otherwise.
func (p *Post) Source() *Post {
	if p.OriginalPost != nil {
		return p.OriginalPost
	}
	return p
}

// NativeID is the platform id, or the local id when the platform id is missing.
func (p *Post) NativeID() string {
	if p.PlatformSpecificID != "" {
		return p.PlatformSpecificID
	}
	return p.ID
}

// Clone copies the post and everything it links to, so the copy can be changed
// without other holders of the original observing it.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	if p.Attachments != nil {
		c.Attachments = append([]Attachment(nil), p.Attachments...)
	}
	if p.Mentions != nil {
		c.Mentions = append([]Mention(nil), p.Mentions...)
	}
	if p.Tags != nil {
		c.Tags = append([]Tag(nil), p.Tags...)
	}
	c.OriginalPost = p.OriginalPost.Clone()
	c.Parent = p.Parent.Clone()
	return &c
}

type Account struct {
	ID       string   `json:"id" yaml:"id"`
	Platform Platform `json:"platform" yaml:"platform"`
	Server   string   `json:"server" yaml:"server"`
	Handle   string   `json:"handle" yaml:"handle"`
	Token    string   `json:"-" yaml:"token,omitempty"`
}

// ServerHost returns the host part of Server, accepting both bare hosts and URLs.
func (a Account) ServerHost() string {
	s := strings.TrimSpace(a.Server)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// BaseURL returns Server as an absolute URL without a trailing slash.
func (a Account) BaseURL() string {
	s := strings.TrimRight(strings.TrimSpace(a.Server), "/")
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return s
}

type PaginationInfo struct {
	HasNextPage   bool   `json:"has_next_page"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

type FetchResult struct {
	Posts      []*Post
	Pagination PaginationInfo
}
