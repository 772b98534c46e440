// SPDX-License-Identifier: AGPL-3.0-only
package timeline

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluffyriot/crossfeed/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestHydrator(f PostFetcher) (*Hydrator, *fakeClock) {
	clock := &fakeClock{now: base}
	h := NewHydrator(f, DefaultHydrationTTL)
	h.now = clock.Now
	return h, clock
}

func TestHydrationSingleFlightPerParent(t *testing.T) {
	f := newFakeFetcher()
	f.pages["m1"] = page("",
		replyTo(mastoPost("10", base), "1"),
		replyTo(mastoPost("11", base.Add(time.Second)), "1"),
		replyTo(mastoPost("12", base.Add(2*time.Second)), "1"),
	)
	f.parents["1"] = parentPost("1", "dave@other.host")

	h, _ := newTestHydrator(f)
	tl := New(f, h, 0)

	placeholders, err := tl.Refresh(context.Background(), []models.Account{mastoAccount})
	require.NoError(t, err)
	tl.WaitHydration()

	assert.Equal(t, 1, f.calls(f.postCalls, "1"))

	posts := tl.Posts()
	require.Len(t, posts, 3)
	for _, p := range posts {
		assert.Equal(t, models.ParentHydrated, p.ParentState())
		assert.Equal(t, "parent 1", p.Parent.Content)
		assert.Equal(t, "dave@other.host", p.InReplyToUsername)
	}

	for _, p := range placeholders {
		assert.Equal(t, models.ParentPending, p.ParentState(), "returned snapshot is not mutated")
	}
}

func TestHydrationCacheHitResolvesSynchronously(t *testing.T) {
	f := newFakeFetcher()
	f.pages["m1"] = page("", replyTo(mastoPost("10", base), "1"))
	f.parents["1"] = parentPost("1", "dave")

	h, _ := newTestHydrator(f)
	tl := New(f, h, 0)

	_, err := tl.Refresh(context.Background(), []models.Account{mastoAccount})
	require.NoError(t, err)
	tl.WaitHydration()

	_, err = tl.Refresh(context.Background(), []models.Account{mastoAccount})
	require.NoError(t, err)

	posts := tl.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, models.ParentHydrated, posts[0].ParentState())
	assert.Equal(t, 1, f.calls(f.postCalls, "1"))
}

func TestHydrationCacheExpires(t *testing.T) {
	f := newFakeFetcher()
	f.parents["1"] = parentPost("1", "dave")

	h, clock := newTestHydrator(f)
	reqs := []HydrationRequest{{ChildID: "c", ParentID: "1", Account: mastoAccount}}
	noop := func(string, *models.Post) {}

	h.Hydrate(context.Background(), reqs, noop)
	h.Wait()
	_, ok := h.Cached(mastoAccount, "1")
	require.True(t, ok)

	clock.Advance(4 * time.Minute)
	h.Hydrate(context.Background(), reqs, noop)
	h.Wait()
	assert.Equal(t, 1, f.calls(f.postCalls, "1"))

	clock.Advance(2 * time.Minute)
	_, ok = h.Cached(mastoAccount, "1")
	assert.False(t, ok)

	h.Hydrate(context.Background(), reqs, noop)
	h.Wait()
	assert.Equal(t, 2, f.calls(f.postCalls, "1"))
}

func TestHydrationCacheIsPerPlatform(t *testing.T) {
	f := newFakeFetcher()
	f.parents["1"] = parentPost("1", "dave")

	h, _ := newTestHydrator(f)
	h.Hydrate(context.Background(), []HydrationRequest{{ChildID: "c", ParentID: "1", Account: mastoAccount}}, func(string, *models.Post) {})
	h.Wait()

	_, ok := h.Cached(bskyAccount, "1")
	assert.False(t, ok)
}

func TestHydrationFailureKeepsPlaceholder(t *testing.T) {
	f := newFakeFetcher()
	f.pages["m1"] = page("", replyTo(mastoPost("10", base), "missing"))

	h, _ := newTestHydrator(f)
	tl := New(f, h, 0)

	_, err := tl.Refresh(context.Background(), []models.Account{mastoAccount})
	require.NoError(t, err)
	tl.WaitHydration()

	posts := tl.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, models.ParentPending, posts[0].ParentState())
	assert.Equal(t, models.ParentPlaceholder, posts[0].Parent.Content)
	assert.Equal(t, 1, f.calls(f.postCalls, "missing"))
}

func TestHydrationOfBoostedReply(t *testing.T) {
	f := newFakeFetcher()
	original := replyTo(mastoPost("10", base), "1")
	f.pages["m1"] = page("", boostOf("99", "bob", original, base.Add(time.Hour)))
	f.parents["1"] = parentPost("1", "dave")

	h, _ := newTestHydrator(f)
	tl := New(f, h, 0)

	_, err := tl.Refresh(context.Background(), []models.Account{mastoAccount})
	require.NoError(t, err)
	tl.WaitHydration()

	posts := tl.Posts()
	require.Len(t, posts, 1)
	require.True(t, posts[0].IsBoost())
	assert.Equal(t, models.ParentHydrated, posts[0].OriginalPost.ParentState())
	assert.Equal(t, "dave", posts[0].OriginalPost.InReplyToUsername)
}

func TestHydrationFromOlderGenerationIsDropped(t *testing.T) {
	f := newFakeFetcher()
	f.pages["m1"] = page("", replyTo(mastoPost("10", base), "1"))
	f.parents["1"] = parentPost("1", "dave")
	f.gate = make(chan struct{})
	f.started = make(chan string, 4)

	h, _ := newTestHydrator(f)
	tl := New(f, h, 0)
	updates, cancel := tl.Subscribe()
	defer cancel()

	_, err := tl.Refresh(context.Background(), []models.Account{mastoAccount})
	require.NoError(t, err)
	assert.Equal(t, "1", <-f.started)

	_, err = tl.Refresh(context.Background(), []models.Account{mastoAccount})
	require.NoError(t, err)
	require.Equal(t, uint64(2), tl.Generation())

	close(f.gate)
	tl.WaitHydration()
	cancel()

	var applied []Update
	for u := range updates {
		if u.Kind == UpdatePost {
			applied = append(applied, u)
		}
	}

	require.Len(t, applied, 1)
	assert.Equal(t, uint64(2), applied[0].Generation)
	assert.Equal(t, 1, f.calls(f.postCalls, "1"))
	assert.Equal(t, models.ParentHydrated, tl.Posts()[0].ParentState())
}

func TestWithHydratedParentIsIdempotent(t *testing.T) {
	child := replyTo(mastoPost("10", base), "1")
	parent := parentPost("1", "dave")

	hydrated, ok := withHydratedParent(child, parent)
	require.True(t, ok)

	again, ok := withHydratedParent(hydrated, parentPost("1", "someone-else"))
	assert.False(t, ok)
	assert.Same(t, hydrated, again)
	assert.Equal(t, "dave", again.InReplyToUsername)
}

func TestHydrationKeepsMastodonServersApart(t *testing.T) {
	f := newFakeFetcher()
	f.parents["example.social/1"] = parentPost("1", "dave@example.social")
	f.parents["other.town/1"] = parentPost("1", "erin@other.town")

	other := models.Account{ID: "m2", Platform: models.PlatformMastodon, Server: "https://other.town"}

	h, _ := newTestHydrator(f)
	var mu sync.Mutex
	got := make(map[string]string)
	apply := func(child string, parent *models.Post) {
		mu.Lock()
		defer mu.Unlock()
		got[child] = parent.Author.Username
	}

	h.Hydrate(context.Background(), []HydrationRequest{
		{ChildID: "a", ParentID: "1", Account: mastoAccount},
		{ChildID: "b", ParentID: "1", Account: other},
	}, apply)
	h.Wait()

	assert.Equal(t, map[string]string{"a": "dave@example.social", "b": "erin@other.town"}, got)
	assert.Equal(t, 2, f.calls(f.postCalls, "1"))

	fromOther, ok := h.Cached(other, "1")
	require.True(t, ok)
	assert.Equal(t, "erin@other.town", fromOther.Author.Username)
}

func TestHydrationWaitCoversLateFetches(t *testing.T) {
	f := newFakeFetcher()
	f.parents["1"] = parentPost("1", "dave")
	f.gate = make(chan struct{})
	f.started = make(chan string, 1)

	h, _ := newTestHydrator(f)
	h.Hydrate(context.Background(), []HydrationRequest{{ChildID: "c", ParentID: "1", Account: mastoAccount}}, func(string, *models.Post) {})
	<-f.started

	waited := make(chan struct{})
	go func() {
		h.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while a fetch was outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	close(f.gate)
	<-waited

	_, ok := h.Cached(mastoAccount, "1")
	assert.True(t, ok)
}

func TestHydrationWaitConcurrentWithHydrate(t *testing.T) {
	f := newFakeFetcher()
	f.parents["1"] = parentPost("1", "dave")
	h, _ := newTestHydrator(f)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Wait()
		}()
		go func() {
			defer wg.Done()
			req := HydrationRequest{ChildID: "c" + strconv.Itoa(i), ParentID: "1", Account: mastoAccount}
			h.Hydrate(context.Background(), []HydrationRequest{req}, func(string, *models.Post) {})
		}()
	}
	wg.Wait()
	h.Wait()

	_, ok := h.Cached(mastoAccount, "1")
	assert.True(t, ok)
}
