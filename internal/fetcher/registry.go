// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"
	"fmt"

	"github.com/fluffyriot/crossfeed/internal/models"
)

// Source is everything the timeline needs from one platform.
type Source interface {
	FetchTimeline(ctx context.Context, account models.Account) (models.FetchResult, error)
	FetchNextPage(ctx context.Context, account models.Account, token string) (models.FetchResult, error)
	FetchPost(ctx context.Context, postID string, account models.Account) (*models.Post, error)
}

// Registry routes each call to the source registered for the account's platform.
type Registry struct {
	sources map[models.Platform]Source
}

func NewRegistry(c *Client) *Registry {
	r := &Registry{sources: make(map[models.Platform]Source)}
	r.Register(models.PlatformMastodon, NewMastodon(c))
	r.Register(models.PlatformBluesky, NewBluesky(c))
	return r
}

func (r *Registry) Register(platform models.Platform, s Source) {
	r.sources[platform] = s
}

func (r *Registry) source(platform models.Platform) (Source, error) {
	s, ok := r.sources[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}
	return s, nil
}

func (r *Registry) FetchTimeline(ctx context.Context, account models.Account) (models.FetchResult, error) {
	s, err := r.source(account.Platform)
	if err != nil {
		return models.FetchResult{}, err
	}
	return s.FetchTimeline(ctx, account)
}

func (r *Registry) FetchNextPage(ctx context.Context, account models.Account, token string) (models.FetchResult, error) {
	s, err := r.source(account.Platform)
	if err != nil {
		return models.FetchResult{}, err
	}
	return s.FetchNextPage(ctx, account, token)
}

func (r *Registry) FetchPost(ctx context.Context, postID string, account models.Account) (*models.Post, error) {
	s, err := r.source(account.Platform)
	if err != nil {
		return nil, err
	}
	return s.FetchPost(ctx, postID, account)
}
