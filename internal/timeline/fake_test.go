// SPDX-License-Identifier: AGPL-3.0-only
package timeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fluffyriot/crossfeed/internal/models"
)

var (
	mastoAccount = models.Account{ID: "m1", Platform: models.PlatformMastodon, Server: "example.social"}
	bskyAccount  = models.Account{ID: "b1", Platform: models.PlatformBluesky}

	errBoom = errors.New("boom")
	base    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

// fakeFetcher serves canned pages and parents and counts every call. Posts are
// cloned on the way out so each call returns fresh values, like a real client.
type fakeFetcher struct {
	mu sync.Mutex

	pages   map[string]models.FetchResult
	next    map[string]models.FetchResult
	errs    map[string]error
	parents map[string]*models.Post

	timelineCalls map[string]int
	nextCalls     map[string]int
	postCalls     map[string]int

	// gate, when set, blocks FetchPost until closed. started receives the post
	// id once a blocked fetch has begun.
	gate    chan struct{}
	started chan string

	// pageGates blocks FetchTimeline (keyed by account id) or FetchNextPage
	// (keyed "id|next") until closed. pageStarted receives the key first.
	pageGates   map[string]chan struct{}
	pageStarted chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:         make(map[string]models.FetchResult),
		next:          make(map[string]models.FetchResult),
		errs:          make(map[string]error),
		parents:       make(map[string]*models.Post),
		timelineCalls: make(map[string]int),
		nextCalls:     make(map[string]int),
		postCalls:     make(map[string]int),
		pageGates:     make(map[string]chan struct{}),
	}
}

func (f *fakeFetcher) waitGate(key string) {
	f.mu.Lock()
	gate, started := f.pageGates[key], f.pageStarted
	f.mu.Unlock()

	if gate == nil {
		return
	}
	if started != nil {
		started <- key
	}
	<-gate
}

func (f *fakeFetcher) FetchTimeline(_ context.Context, account models.Account) (models.FetchResult, error) {
	f.waitGate(account.ID)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.timelineCalls[account.ID]++
	if err := f.errs[account.ID]; err != nil {
		return models.FetchResult{}, err
	}
	return cloneResult(f.pages[account.ID]), nil
}

func (f *fakeFetcher) FetchNextPage(_ context.Context, account models.Account, token string) (models.FetchResult, error) {
	f.waitGate(account.ID + "|next")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextCalls[account.ID]++
	if err := f.errs[account.ID+"|next"]; err != nil {
		return models.FetchResult{}, err
	}
	return cloneResult(f.next[account.ID+"|"+token]), nil
}

// FetchPost serves parents keyed "host/id" for the account's server before
// falling back to plain ids.
func (f *fakeFetcher) FetchPost(_ context.Context, postID string, account models.Account) (*models.Post, error) {
	f.mu.Lock()
	f.postCalls[postID]++
	gate, started := f.gate, f.started
	parent, ok := f.parents[account.ServerHost()+"/"+postID]
	if !ok {
		parent, ok = f.parents[postID]
	}
	f.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- postID
		}
		<-gate
	}

	if !ok {
		return nil, errBoom
	}
	return parent.Clone(), nil
}

func (f *fakeFetcher) calls(m map[string]int, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[key]
}

func cloneResult(r models.FetchResult) models.FetchResult {
	out := models.FetchResult{Pagination: r.Pagination}
	for _, p := range r.Posts {
		out.Posts = append(out.Posts, p.Clone())
	}
	return out
}

func page(token string, posts ...*models.Post) models.FetchResult {
	return models.FetchResult{
		Posts:      posts,
		Pagination: models.PaginationInfo{HasNextPage: token != "", NextPageToken: token},
	}
}

func mastoPost(id string, at time.Time) *models.Post {
	return &models.Post{
		ID:                 id,
		PlatformSpecificID: id,
		Platform:           models.PlatformMastodon,
		Content:            "post " + id,
		Author:             models.Author{Username: "alice"},
		URL:                "https://example.social/@alice/" + id,
		CreatedAt:          at,
	}
}

func bskyPost(uri string, at time.Time) *models.Post {
	return &models.Post{
		ID:                 uri,
		PlatformSpecificID: uri,
		Platform:           models.PlatformBluesky,
		Content:            "record " + uri,
		Author:             models.Author{Username: "alice.bsky.social"},
		CreatedAt:          at,
		ContentHash:        "bafy-" + uri,
	}
}

func boostOf(id, booster string, original *models.Post, at time.Time) *models.Post {
	return &models.Post{
		ID:                 id,
		PlatformSpecificID: id,
		Platform:           original.Platform,
		Author:             models.Author{Username: booster},
		CreatedAt:          at,
		OriginalPost:       original,
	}
}

func replyTo(p *models.Post, parentID string) *models.Post {
	p.InReplyToID = parentID
	p.Parent = models.NewPlaceholderParent(p.Platform, parentID, "")
	return p
}

func parentPost(id, author string) *models.Post {
	p := mastoPost(id, base.Add(-time.Hour))
	p.Author.Username = author
	p.Content = "parent " + id
	return p
}
