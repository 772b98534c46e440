// SPDX-License-Identifier: AGPL-3.0-only
package timeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fluffyriot/crossfeed/internal/models"
)

const DefaultHydrationTTL = 5 * time.Minute

var errEmptyParent = errors.New("fetch returned no post")

// HydrationRequest asks for the parent of one timeline entry.
type HydrationRequest struct {
	ChildID  string
	ParentID string
	Account  models.Account
}

type cachedParent struct {
	post      *models.Post
	fetchedAt time.Time
}

// Hydrator resolves placeholder reply parents. Fetched parents are cached per
// platform for ttl, and concurrent requests for the same parent share one fetch.
// Mastodon status ids are local to a server, so they are scoped by server host.
type Hydrator struct {
	fetcher PostFetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	cache   map[models.Platform]map[string]cachedParent
	pending int
	idle    *sync.Cond

	inflight singleflight.Group
}

func NewHydrator(f PostFetcher, ttl time.Duration) *Hydrator {
	if ttl <= 0 {
		ttl = DefaultHydrationTTL
	}
	h := &Hydrator{
		fetcher: f,
		ttl:     ttl,
		now:     time.Now,
		cache:   make(map[models.Platform]map[string]cachedParent),
	}
	h.idle = sync.NewCond(&h.mu)
	return h
}

// scopedID is the cache and single-flight key of a parent within its platform.
func scopedID(account models.Account, id string) string {
	if account.Platform == models.PlatformMastodon {
		return account.ServerHost() + "/" + id
	}
	return id
}

// Cached returns a fresh cached parent as seen from account. Expired entries
// are evicted.
func (h *Hydrator) Cached(account models.Account, id string) (*models.Post, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.cache[account.Platform]
	if !ok {
		return nil, false
	}
	key := scopedID(account, id)
	entry, ok := byID[key]
	if !ok {
		return nil, false
	}
	if h.now().Sub(entry.fetchedAt) >= h.ttl {
		delete(byID, key)
		return nil, false
	}
	return entry.post, true
}

func (h *Hydrator) store(account models.Account, id string, post *models.Post) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.cache[account.Platform]
	if !ok {
		byID = make(map[string]cachedParent)
		h.cache[account.Platform] = byID
	}
	byID[scopedID(account, id)] = cachedParent{post: post, fetchedAt: h.now()}
}

func (h *Hydrator) begin() {
	h.mu.Lock()
	h.pending++
	h.mu.Unlock()
}

func (h *Hydrator) done() {
	h.mu.Lock()
	h.pending--
	if h.pending == 0 {
		h.idle.Broadcast()
	}
	h.mu.Unlock()
}

// Hydrate resolves a batch. Requests are grouped by parent so each unique parent
// is looked up once. Cache hits call apply before Hydrate returns; misses are
// fetched in the background and apply runs when they complete. Failures are
// logged and leave the placeholder in place.
func (h *Hydrator) Hydrate(ctx context.Context, reqs []HydrationRequest, apply func(childID string, parent *models.Post)) {
	type group struct {
		parentID string
		account  models.Account
		children []string
	}

	var order []string
	groups := make(map[string]*group)

	for _, req := range reqs {
		if req.ParentID == "" {
			continue
		}
		key := string(req.Account.Platform) + "\x00" + scopedID(req.Account, req.ParentID)
		g, ok := groups[key]
		if !ok {
			g = &group{parentID: req.ParentID, account: req.Account}
			groups[key] = g
			order = append(order, key)
		}
		g.children = append(g.children, req.ChildID)
	}

	for _, key := range order {
		g := groups[key]

		if parent, ok := h.Cached(g.account, g.parentID); ok {
			for _, child := range g.children {
				apply(child, parent)
			}
			continue
		}

		h.begin()
		go func(key string, g *group) {
			defer h.done()

			parent, err := h.resolve(ctx, key, g.parentID, g.account)
			if err != nil {
				log.Printf("Hydrator: parent %s on %s not resolved: %v", g.parentID, g.account.Platform, err)
				return
			}
			for _, child := range g.children {
				apply(child, parent)
			}
		}(key, g)
	}
}

func (h *Hydrator) resolve(ctx context.Context, key string, id string, account models.Account) (*models.Post, error) {
	v, err, _ := h.inflight.Do(key, func() (any, error) {
		if parent, ok := h.Cached(account, id); ok {
			return parent, nil
		}

		parent, err := h.fetcher.FetchPost(ctx, id, account)
		if err != nil {
			return nil, err
		}
		if parent == nil || models.IsPlaceholder(parent) {
			return nil, errEmptyParent
		}

		h.store(account, id, parent)
		return parent, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Post), nil
}

// Wait blocks until no background fetch is outstanding. Fetches started while
// waiting are waited for too.
func (h *Hydrator) Wait() {
	h.mu.Lock()
	for h.pending > 0 {
		h.idle.Wait()
	}
	h.mu.Unlock()
}
