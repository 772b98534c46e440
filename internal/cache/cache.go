// SPDX-License-Identifier: AGPL-3.0-only

// Package cache keeps a bounded offline snapshot of the merged timeline.
//
// Every save replaces the previous snapshot as a whole. Loading never fails on
// individual rows: entries without a readable full payload come back as reduced
// posts that lack boost and reply linkage.
package cache

import (
	"context"
	"errors"
	"log"

	"github.com/fluffyriot/crossfeed/internal/models"
)

const DefaultLimit = 100

var ErrNoSnapshot = errors.New("no cached snapshot")

type Store interface {
	Save(ctx context.Context, posts []*models.Post) error
	Load(ctx context.Context) ([]*models.Post, error)
	Close() error
}

type Options struct {
	Driver string
	Path   string
	DSN    string
	Limit  int
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// Open returns the configured SQL store, or an in-memory store when the
// database cannot be opened.
func Open(opts Options) Store {
	s, err := OpenSQL(opts)
	if err != nil {
		log.Printf("Cache: %s store unavailable, keeping snapshots in memory: %v", opts.Driver, err)
		return NewMemoryStore(opts.Limit)
	}
	return s
}

func bounded(posts []*models.Post, limit int) []*models.Post {
	out := make([]*models.Post, 0, min(len(posts), limit))
	for _, p := range posts {
		if len(out) == limit {
			break
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
