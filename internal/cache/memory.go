// SPDX-License-Identifier: AGPL-3.0-only
package cache

import (
	"context"
	"sync"

	"github.com/fluffyriot/crossfeed/internal/models"
)

type MemoryStore struct {
	mu    sync.RWMutex
	limit int
	posts []*models.Post
}

func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: Options{Limit: limit}.limit()}
}

func (m *MemoryStore) Save(_ context.Context, posts []*models.Post) error {
	kept := bounded(posts, m.limit)
	snapshot := make([]*models.Post, 0, len(kept))
	for _, p := range kept {
		snapshot = append(snapshot, p.Clone())
	}

	m.mu.Lock()
	m.posts = snapshot
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context) ([]*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.posts) == 0 {
		return nil, ErrNoSnapshot
	}

	out := make([]*models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
