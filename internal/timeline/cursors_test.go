// SPDX-License-Identifier: AGPL-3.0-only
package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fluffyriot/crossfeed/internal/models"
)

func TestCursorStoreRecordAndReset(t *testing.T) {
	s := NewCursorStore()
	s.Record("a", models.PaginationInfo{HasNextPage: true, NextPageToken: "t1"})
	s.Record("b", models.PaginationInfo{})

	token, ok := s.Token("a")
	assert.True(t, ok)
	assert.Equal(t, "t1", token)

	_, ok = s.Token("b")
	assert.False(t, ok)
	assert.True(t, s.HasNextPage(nil))

	s.Reset()
	_, ok = s.Token("a")
	assert.False(t, ok)
	assert.False(t, s.HasNextPage(nil))
}

func TestCursorStoreMoreWithoutTokenIsExhausted(t *testing.T) {
	s := NewCursorStore()
	s.Record("a", models.PaginationInfo{HasNextPage: true})

	_, ok := s.Token("a")
	assert.False(t, ok)
	assert.False(t, s.HasNextPage(nil))
}

func TestCursorStoreHasNextPageFilter(t *testing.T) {
	s := NewCursorStore()
	s.Record("a", models.PaginationInfo{HasNextPage: true, NextPageToken: "t1"})
	s.Record("b", models.PaginationInfo{})

	assert.False(t, s.HasNextPage(func(id string) bool { return id == "b" }))
	assert.True(t, s.HasNextPage(func(id string) bool { return id == "a" }))

	s.Discard("a")
	assert.False(t, s.HasNextPage(nil))
}
