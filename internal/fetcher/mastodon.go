// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fluffyriot/crossfeed/internal/models"
	"github.com/fluffyriot/crossfeed/internal/wire"
)

const mastodonPageLimit = 40

type Mastodon struct {
	c *Client
}

func NewMastodon(c *Client) *Mastodon {
	return &Mastodon{c: c}
}

func getMastodonApiString(account models.Account, maxID string) string {
	apiString := fmt.Sprintf(
		"%s/api/v1/timelines/home?limit=%d",
		account.BaseURL(),
		mastodonPageLimit,
	)

	if maxID != "" {
		apiString += "&max_id=" + url.QueryEscape(maxID)
	}

	return apiString
}

func (m *Mastodon) FetchTimeline(ctx context.Context, account models.Account) (models.FetchResult, error) {
	return m.fetchPage(ctx, account, "")
}

func (m *Mastodon) FetchNextPage(ctx context.Context, account models.Account, token string) (models.FetchResult, error) {
	return m.fetchPage(ctx, account, token)
}

func (m *Mastodon) fetchPage(ctx context.Context, account models.Account, maxID string) (models.FetchResult, error) {
	var feed wire.MastodonStatuses
	if err := m.c.getJSON(ctx, account, "timelines/home", getMastodonApiString(account, maxID), &feed); err != nil {
		return models.FetchResult{}, err
	}

	result := models.FetchResult{Posts: make([]*models.Post, 0, len(feed))}
	for _, item := range feed {
		result.Posts = append(result.Posts, normalizeMastodonStatus(item, account))
	}

	if len(feed) > 0 {
		result.Pagination = models.PaginationInfo{
			HasNextPage:   true,
			NextPageToken: feed[len(feed)-1].ID,
		}
	}

	return result, nil
}

func (m *Mastodon) FetchPost(ctx context.Context, postID string, account models.Account) (*models.Post, error) {
	apiString := fmt.Sprintf("%s/api/v1/statuses/%s", account.BaseURL(), url.PathEscape(postID))

	var status wire.MastodonStatus
	if err := m.c.getJSON(ctx, account, "statuses", apiString, &status); err != nil {
		return nil, err
	}

	return normalizeMastodonStatus(status, account), nil
}

func normalizeMastodonStatus(item wire.MastodonStatus, account models.Account) *models.Post {
	if item.Reblog != nil {
		return &models.Post{
			ID:                 item.ID,
			PlatformSpecificID: item.ID,
			Platform:           models.PlatformMastodon,
			Author:             mastodonAuthor(item.Account),
			CreatedAt:          item.CreatedAt,
			URL:                item.Link(),
			AccountID:          account.ID,
			OriginalPost:       normalizeMastodonStatus(*item.Reblog, account),
		}
	}

	post := &models.Post{
		ID:                 item.ID,
		PlatformSpecificID: item.ID,
		Platform:           models.PlatformMastodon,
		Content:            stripHTMLToText(item.Content),
		Author:             mastodonAuthor(item.Account),
		CreatedAt:          item.CreatedAt,
		URL:                item.Link(),
		AccountID:          account.ID,
		InReplyToID:        item.InReplyToID,
		Counts: models.Counts{
			Likes:   item.FavouritesCount,
			Reposts: item.ReblogsCount,
			Replies: item.RepliesCount,
			Quotes:  item.QuotesCount,
		},
	}

	if item.SpoilerText != "" {
		post.Content = strings.TrimSpace(item.SpoilerText + "\n" + post.Content)
	}

	for _, media := range item.MediaAttachments {
		post.Attachments = append(post.Attachments, models.Attachment{
			URL:         media.URL,
			PreviewURL:  media.PreviewURL,
			Type:        media.Type,
			Description: media.Description,
		})
	}

	for _, mention := range item.Mentions {
		post.Mentions = append(post.Mentions, models.Mention{
			ID:       mention.ID,
			Username: mention.Acct,
			URL:      mention.URL,
		})
	}

	for _, tag := range item.Tags {
		post.Tags = append(post.Tags, models.Tag{Name: tag.Name, URL: tag.URL})
	}
	if len(post.Tags) == 0 && item.Content != "" {
		post.Tags = extractHashtags(item.Content)
	}

	if item.InReplyToID != "" {
		post.InReplyToUsername = mastodonReplyUsername(item)
		post.Parent = models.NewPlaceholderParent(models.PlatformMastodon, item.InReplyToID, post.InReplyToUsername)
	}

	return post
}

func mastodonAuthor(a wire.MastodonAccount) models.Author {
	username := a.Acct
	if username == "" {
		username = a.Username
	}
	return models.Author{
		ID:        a.ID,
		Name:      a.DisplayName,
		Username:  username,
		AvatarURL: a.Avatar,
	}
}

// mastodonReplyUsername picks the replied-to account among the mentions. When
// the account is not mentioned it falls back to the first mention, which can
// misattribute replies in threads that drop the parent author.
func mastodonReplyUsername(item wire.MastodonStatus) string {
	if item.InReplyToAccountID != "" {
		if item.InReplyToAccountID == item.Account.ID {
			return mastodonAuthor(item.Account).Username
		}
		for _, mention := range item.Mentions {
			if mention.ID == item.InReplyToAccountID {
				return mention.Acct
			}
		}
	}
	if len(item.Mentions) > 0 {
		return item.Mentions[0].Acct
	}
	return ""
}
