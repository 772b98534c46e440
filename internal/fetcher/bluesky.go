// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fluffyriot/crossfeed/internal/helpers"
	"github.com/fluffyriot/crossfeed/internal/identity"
	"github.com/fluffyriot/crossfeed/internal/models"
	"github.com/fluffyriot/crossfeed/internal/wire"
)

const (
	bskyPageLimit      = 50
	bskyDefaultService = "https://bsky.social"
)

type Bluesky struct {
	c *Client
}

func NewBluesky(c *Client) *Bluesky {
	return &Bluesky{c: c}
}

func bskyService(account models.Account) string {
	if base := account.BaseURL(); base != "" {
		return base
	}
	return bskyDefaultService
}

func getBskyApiString(account models.Account, cursor string) string {
	apiString := fmt.Sprintf(
		"%s/xrpc/app.bsky.feed.getTimeline?limit=%d",
		bskyService(account),
		bskyPageLimit,
	)

	if cursor != "" {
		apiString += "&cursor=" + url.QueryEscape(cursor)
	}

	return apiString
}

func (b *Bluesky) FetchTimeline(ctx context.Context, account models.Account) (models.FetchResult, error) {
	return b.fetchPage(ctx, account, "")
}

func (b *Bluesky) FetchNextPage(ctx context.Context, account models.Account, token string) (models.FetchResult, error) {
	return b.fetchPage(ctx, account, token)
}

func (b *Bluesky) fetchPage(ctx context.Context, account models.Account, cursor string) (models.FetchResult, error) {
	var feed wire.BlueskyTimeline
	if err := b.c.getJSON(ctx, account, "app.bsky.feed.getTimeline", getBskyApiString(account, cursor), &feed); err != nil {
		return models.FetchResult{}, err
	}

	result := models.FetchResult{
		Posts: make([]*models.Post, 0, len(feed.Feed)),
		Pagination: models.PaginationInfo{
			HasNextPage:   feed.Cursor != "",
			NextPageToken: feed.Cursor,
		},
	}

	for _, item := range feed.Feed {
		result.Posts = append(result.Posts, normalizeBlueskyItem(item, account))
	}

	return result, nil
}

func (b *Bluesky) FetchPost(ctx context.Context, postID string, account models.Account) (*models.Post, error) {
	apiString := fmt.Sprintf(
		"%s/xrpc/app.bsky.feed.getPosts?uris=%s",
		bskyService(account),
		url.QueryEscape(postID),
	)

	var resp wire.BlueskyPosts
	if err := b.c.getJSON(ctx, account, "app.bsky.feed.getPosts", apiString, &resp); err != nil {
		return nil, err
	}

	for i := range resp.Posts {
		if resp.Posts[i].Available() {
			return normalizeBlueskyPost(&resp.Posts[i], account), nil
		}
	}

	return nil, fmt.Errorf("bluesky: %s: %w", postID, ErrNotFound)
}

func normalizeBlueskyItem(item wire.BlueskyFeedViewPost, account models.Account) *models.Post {
	post := normalizeBlueskyPost(&item.Post, account)

	if item.Reply != nil && item.Reply.Parent.Available() && item.Reply.Parent.URI == post.InReplyToID {
		post.Parent = normalizeBlueskyPost(item.Reply.Parent, account)
		post.InReplyToUsername = post.Parent.Author.Username
	}

	if !item.IsRepost() {
		return post
	}

	repostID := identity.BlueskyRepostID(item)
	return &models.Post{
		ID:                 repostID,
		PlatformSpecificID: repostID,
		Platform:           models.PlatformBluesky,
		Author:             bskyAuthor(item.Reason.By),
		CreatedAt:          item.Reason.IndexedAt,
		URL:                post.URL,
		AccountID:          account.ID,
		OriginalPost:       post,
	}
}

func normalizeBlueskyPost(view *wire.BlueskyPostView, account models.Account) *models.Post {
	post := &models.Post{
		ID:                 view.URI,
		PlatformSpecificID: view.URI,
		ContentHash:        view.CID,
		Platform:           models.PlatformBluesky,
		Content:            view.Record.Text,
		Author:             bskyAuthor(view.Author),
		CreatedAt:          view.CreatedTime(),
		AccountID:          account.ID,
		Counts: models.Counts{
			Likes:   view.LikeCount,
			Reposts: view.RepostCount,
			Replies: view.ReplyCount,
			Quotes:  view.QuoteCount,
		},
	}

	if u, err := helpers.ConvPostToURL(models.PlatformBluesky, view.Author.Handle, view.RecordKey()); err == nil {
		post.URL = u
	}

	post.Attachments = bskyAttachments(view.Embed)
	post.Mentions, post.Tags = bskyFacets(view.Record.Facets)

	if view.Record.Reply != nil && view.Record.Reply.Parent.URI != "" {
		post.InReplyToID = view.Record.Reply.Parent.URI
		post.Parent = models.NewPlaceholderParent(models.PlatformBluesky, post.InReplyToID, "")
		post.Parent.ContentHash = view.Record.Reply.Parent.CID
	}

	return post
}

func bskyAuthor(p wire.BlueskyProfile) models.Author {
	return models.Author{
		ID:        p.DID,
		Name:      p.DisplayName,
		Username:  p.Handle,
		AvatarURL: p.Avatar,
	}
}

func bskyAttachments(embed *wire.BlueskyEmbedView) []models.Attachment {
	if embed == nil {
		return nil
	}

	var out []models.Attachment
	switch embed.Type {
	case wire.BlueskyEmbedImages:
		for _, img := range embed.Images {
			out = append(out, models.Attachment{
				URL:         img.Fullsize,
				PreviewURL:  img.Thumb,
				Type:        "image",
				Description: img.Alt,
			})
		}
	case wire.BlueskyEmbedVideo:
		out = append(out, models.Attachment{
			URL:         embed.Playlist,
			PreviewURL:  embed.Thumbnail,
			Type:        "video",
			Description: embed.Alt,
		})
	case wire.BlueskyEmbedExternal:
		if embed.External != nil {
			out = append(out, models.Attachment{
				URL:         embed.External.URI,
				PreviewURL:  embed.External.Thumb,
				Type:        "link",
				Description: embed.External.Title,
			})
		}
	}
	return out
}

func bskyFacets(facets []wire.BlueskyFacet) ([]models.Mention, []models.Tag) {
	var mentions []models.Mention
	var tags []models.Tag

	for _, facet := range facets {
		for _, feature := range facet.Features {
			switch feature.Type {
			case wire.BlueskyFacetMention:
				mentions = append(mentions, models.Mention{ID: feature.DID, Username: feature.DID})
			case wire.BlueskyFacetTag:
				tags = append(tags, models.Tag{Name: feature.Tag})
			}
		}
	}

	return mentions, tags
}
