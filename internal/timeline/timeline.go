// SPDX-License-Identifier: AGPL-3.0-only

// Package timeline merges the timelines of several accounts into one feed.
//
// Every full refresh starts a new generation. Results and hydrated parents that
// belong to an older generation are dropped instead of overwriting newer state.
// Next pages are also tied to the installed page set they were read from, so a
// page fetched with tokens that a refresh has since replaced is dropped.
// Posts held by the timeline are never mutated; a change installs a new copy in
// the index under a higher version and is announced to subscribers.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fluffyriot/crossfeed/internal/models"
)

var ErrAllAccountsFailed = errors.New("every account failed to fetch")

// Fetcher loads timeline pages for one account.
type Fetcher interface {
	FetchTimeline(ctx context.Context, account models.Account) (models.FetchResult, error)
	FetchNextPage(ctx context.Context, account models.Account, token string) (models.FetchResult, error)
}

// PostFetcher loads a single post by its native id.
type PostFetcher interface {
	FetchPost(ctx context.Context, postID string, account models.Account) (*models.Post, error)
}

type UpdateKind int

const (
	// UpdateReset means the whole timeline changed; re-read Posts.
	UpdateReset UpdateKind = iota
	// UpdatePost means one entry was replaced by a newer version.
	UpdatePost
)

type Update struct {
	Kind       UpdateKind
	Generation uint64
	ID         string
	Version    uint64
	Post       *models.Post
}

type entry struct {
	pos     int
	version uint64
}

type Timeline struct {
	fetcher     Fetcher
	hydrator    *Hydrator
	concurrency int
	cursors     *CursorStore

	mu         sync.Mutex
	accounts   map[string]models.Account
	order      []string
	selected   map[string]bool
	posts      []*models.Post
	index      map[string]*entry
	events     []models.SocialEvent
	generation uint64
	installed  uint64
	version    uint64
	subs       map[int]chan Update
	nextSub    int
}

// New builds a timeline. hydrator may be nil to leave reply parents as
// placeholders. concurrency caps parallel account fetches; zero means no cap.
func New(f Fetcher, hydrator *Hydrator, concurrency int) *Timeline {
	return &Timeline{
		fetcher:     f,
		hydrator:    hydrator,
		concurrency: concurrency,
		cursors:     NewCursorStore(),
		accounts:    make(map[string]models.Account),
		selected:    make(map[string]bool),
		index:       make(map[string]*entry),
		subs:        make(map[int]chan Update),
	}
}

// Refresh fetches the first page of every account, merges and sorts the result
// and installs it as a new generation. A failing account contributes nothing.
// ErrAllAccountsFailed is returned only when every account failed, and the
// previous timeline is kept in that case.
func (t *Timeline) Refresh(ctx context.Context, accounts []models.Account) ([]*models.Post, error) {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.accounts = make(map[string]models.Account, len(accounts))
	t.order = nil
	t.selected = make(map[string]bool, len(accounts))
	for _, acc := range accounts {
		if _, dup := t.accounts[acc.ID]; dup {
			continue
		}
		t.accounts[acc.ID] = acc
		t.order = append(t.order, acc.ID)
		t.selected[acc.ID] = true
	}
	t.mu.Unlock()

	pass := uuid.NewString()[:8]
	log.Printf("Timeline: refresh %s (generation %d) over %d accounts", pass, gen, len(accounts))

	batches := t.fanOut(ctx, accounts, func(ctx context.Context, acc models.Account) (models.FetchResult, error) {
		return t.fetcher.FetchTimeline(ctx, acc)
	})

	var errs []error
	for _, b := range batches {
		if b.err != nil {
			log.Printf("Timeline: refresh %s: account %s (%s) failed: %v", pass, b.account.ID, b.account.Platform, b.err)
			errs = append(errs, fmt.Errorf("%s: %w", b.account.ID, b.err))
		}
	}
	if len(accounts) > 0 && len(errs) == len(batches) {
		return nil, fmt.Errorf("%w: %w", ErrAllAccountsFailed, errors.Join(errs...))
	}

	posts, events := mergeBatches(batches, make(map[string]struct{}))
	sortPosts(posts)

	t.mu.Lock()
	if current := t.generation; gen != current {
		t.mu.Unlock()
		log.Printf("Timeline: refresh %s superseded by generation %d, result dropped", pass, current)
		return snapshot(posts), nil
	}

	t.installed++
	t.cursors.Reset()
	for _, b := range batches {
		if b.err == nil && t.selected[b.account.ID] {
			t.cursors.Record(b.account.ID, b.pagination)
		}
	}

	t.posts = posts
	t.events = events
	t.index = make(map[string]*entry, len(posts))
	for i, p := range posts {
		t.version++
		t.index[p.StableID] = &entry{pos: i, version: t.version}
	}
	out := snapshot(t.posts)
	reqs := t.hydrationRequests(posts)
	t.notify(Update{Kind: UpdateReset, Generation: gen, Version: t.version})
	t.mu.Unlock()

	log.Printf("Timeline: refresh %s kept %d posts from %d accounts (%d failed)", pass, len(posts), len(accounts), len(errs))

	t.hydrate(ctx, gen, reqs)
	return out, nil
}

// FetchNextPage fetches one more page for every selected account that holds a
// token and appends the posts not already on the timeline. Failing accounts keep
// their token and are skipped. It returns the appended posts.
func (t *Timeline) FetchNextPage(ctx context.Context) ([]*models.Post, error) {
	t.mu.Lock()
	gen, epoch := t.generation, t.installed
	var targets []models.Account
	tokens := make(map[string]string)
	for _, id := range t.order {
		if !t.selected[id] {
			continue
		}
		token, ok := t.cursors.Token(id)
		if !ok {
			continue
		}
		targets = append(targets, t.accounts[id])
		tokens[id] = token
	}
	t.mu.Unlock()

	if len(targets) == 0 {
		return nil, nil
	}

	batches := t.fanOut(ctx, targets, func(ctx context.Context, acc models.Account) (models.FetchResult, error) {
		return t.fetcher.FetchNextPage(ctx, acc, tokens[acc.ID])
	})

	t.mu.Lock()
	if current := t.generation; gen != current || epoch != t.installed {
		t.mu.Unlock()
		log.Printf("Timeline: next page for generation %d dropped, timeline moved to %d", gen, current)
		return nil, nil
	}

	for i := range batches {
		b := &batches[i]
		switch {
		case b.err != nil:
			log.Printf("Timeline: next page for account %s (%s) failed: %v", b.account.ID, b.account.Platform, b.err)
		case !t.selected[b.account.ID]:
			t.cursors.Discard(b.account.ID)
			b.err = errDeselected
		default:
			t.cursors.Record(b.account.ID, b.pagination)
		}
	}

	seen := make(map[string]struct{}, len(t.index))
	for id := range t.index {
		seen[id] = struct{}{}
	}
	added, events := mergeBatches(batches, seen)
	sortPosts(added)

	for _, p := range added {
		t.version++
		t.index[p.StableID] = &entry{pos: len(t.posts), version: t.version}
		t.posts = append(t.posts, p)
	}
	t.events = append(t.events, events...)
	reqs := t.hydrationRequests(added)
	if len(added) > 0 {
		t.notify(Update{Kind: UpdateReset, Generation: gen, Version: t.version})
	}
	t.mu.Unlock()

	t.hydrate(ctx, gen, reqs)
	return snapshot(added), nil
}

var errDeselected = errors.New("account deselected")

func (t *Timeline) fanOut(ctx context.Context, accounts []models.Account, fetch func(context.Context, models.Account) (models.FetchResult, error)) []batch {
	batches := make([]batch, len(accounts))

	var g errgroup.Group
	if t.concurrency > 0 {
		g.SetLimit(t.concurrency)
	}

	for i, acc := range accounts {
		g.Go(func() error {
			batches[i].account = acc
			defer func() {
				if r := recover(); r != nil {
					batches[i].err = fmt.Errorf("panic: %v", r)
				}
			}()

			res, err := fetch(ctx, acc)
			batches[i].posts = res.Posts
			batches[i].pagination = res.Pagination
			batches[i].err = err
			return nil
		})
	}
	_ = g.Wait()

	return batches
}

// Restore installs posts loaded from an offline snapshot. It does not start a
// generation or touch pagination.
func (t *Timeline) Restore(posts []*models.Post) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.installed++
	t.posts = make([]*models.Post, 0, len(posts))
	t.index = make(map[string]*entry, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		id := p.StableID
		if id == "" {
			id = p.ID
		}
		if _, dup := t.index[id]; dup {
			continue
		}
		t.version++
		t.index[id] = &entry{pos: len(t.posts), version: t.version}
		t.posts = append(t.posts, p)
	}
	t.notify(Update{Kind: UpdateReset, Generation: t.generation, Version: t.version})
}

// Select limits next-page fetches to the given accounts and returns the ids
// the timeline does not know. Tokens of deselected accounts are dropped when
// their next page would be fetched or on the next refresh.
func (t *Timeline) Select(accountIDs []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var unknown []string
	t.selected = make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		if _, ok := t.accounts[id]; ok {
			t.selected[id] = true
		} else {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// Selected returns the selected account ids in configuration order.
func (t *Timeline) Selected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []string
	for _, id := range t.order {
		if t.selected[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Posts returns the current timeline. The posts are shared and must not be modified.
func (t *Timeline) Posts() []*models.Post {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshot(t.posts)
}

// Lookup returns the current version of one entry by stable id.
func (t *Timeline) Lookup(stableID string) (*models.Post, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.index[stableID]
	if !ok {
		return nil, 0, false
	}
	return t.posts[e.pos], e.version, true
}

func (t *Timeline) Events() []models.SocialEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.SocialEvent(nil), t.events...)
}

func (t *Timeline) HasNextPage() bool {
	t.mu.Lock()
	selected := t.selected
	t.mu.Unlock()

	return t.cursors.HasNextPage(func(id string) bool { return selected[id] })
}

func (t *Timeline) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Subscribe returns a channel of timeline updates and a function that ends the
// subscription. Slow subscribers miss updates rather than block the timeline.
func (t *Timeline) Subscribe() (<-chan Update, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	ch := make(chan Update, 64)
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			close(ch)
		})
	}
}

// notify must be called with t.mu held.
func (t *Timeline) notify(u Update) {
	for id, ch := range t.subs {
		select {
		case ch <- u:
		default:
			log.Printf("Timeline: subscriber %d is full, update %d dropped", id, u.Version)
		}
	}
}

// WaitHydration blocks until every started parent fetch has been applied or dropped.
func (t *Timeline) WaitHydration() {
	if t.hydrator != nil {
		t.hydrator.Wait()
	}
}

// hydrationRequests must be called with t.mu held.
func (t *Timeline) hydrationRequests(posts []*models.Post) []HydrationRequest {
	if t.hydrator == nil {
		return nil
	}

	var reqs []HydrationRequest
	for _, p := range posts {
		target := p
		if !target.NeedsHydration() && p.IsBoost() {
			target = p.OriginalPost
		}
		if !target.NeedsHydration() {
			continue
		}

		account, ok := t.accounts[p.AccountID]
		if !ok {
			continue
		}
		reqs = append(reqs, HydrationRequest{
			ChildID:  p.StableID,
			ParentID: target.ReplyTargetID(),
			Account:  account,
		})
	}
	return reqs
}

func (t *Timeline) hydrate(ctx context.Context, gen uint64, reqs []HydrationRequest) {
	if len(reqs) == 0 {
		return
	}
	t.hydrator.Hydrate(context.WithoutCancel(ctx), reqs, func(childID string, parent *models.Post) {
		t.applyParent(gen, childID, parent)
	})
}

func (t *Timeline) applyParent(gen uint64, childID string, parent *models.Post) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation {
		log.Printf("Timeline: parent for %s belongs to generation %d, now %d; dropped", childID, gen, t.generation)
		return
	}

	e, ok := t.index[childID]
	if !ok {
		return
	}

	updated, ok := withHydratedParent(t.posts[e.pos], parent)
	if !ok {
		return
	}

	t.version++
	e.version = t.version
	t.posts[e.pos] = updated
	t.notify(Update{Kind: UpdatePost, Generation: gen, ID: childID, Version: e.version, Post: updated})
}

// withHydratedParent hydrates the post itself or, for a boost, the original it wraps.
func withHydratedParent(p *models.Post, parent *models.Post) (*models.Post, bool) {
	if p.ParentState() == models.ParentPending {
		return p.WithParent(parent)
	}
	if !p.IsBoost() {
		return p, false
	}
	original, ok := p.OriginalPost.WithParent(parent)
	if !ok {
		return p, false
	}
	c := *p
	c.OriginalPost = original
	return &c, true
}

func snapshot(posts []*models.Post) []*models.Post {
	return append([]*models.Post(nil), posts...)
}
