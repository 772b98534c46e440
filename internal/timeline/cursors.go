// SPDX-License-Identifier: AGPL-3.0-only
package timeline

import (
	"sync"

	"github.com/fluffyriot/crossfeed/internal/models"
)

// CursorStore keeps one opaque next-page token per account. Accounts page
// independently; there is no global cursor.
type CursorStore struct {
	mu     sync.Mutex
	tokens map[string]string
	more   map[string]bool
}

func NewCursorStore() *CursorStore {
	return &CursorStore{
		tokens: make(map[string]string),
		more:   make(map[string]bool),
	}
}

// Reset forgets every account. Called at the start of each full refresh.
func (s *CursorStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = make(map[string]string)
	s.more = make(map[string]bool)
}

// Record stores the pagination an account reported on its latest fetch. A page
// that claims more results but carries no token is treated as exhausted.
func (s *CursorStore) Record(accountID string, p models.PaginationInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.HasNextPage && p.NextPageToken != "" {
		s.tokens[accountID] = p.NextPageToken
		s.more[accountID] = true
		return
	}
	delete(s.tokens, accountID)
	s.more[accountID] = false
}

func (s *CursorStore) Token(accountID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[accountID]
	return token, ok
}

// Discard drops the token of an account that is no longer selected.
func (s *CursorStore) Discard(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, accountID)
	delete(s.more, accountID)
}

// HasNextPage is the OR of every account's latest flag. keep limits the accounts
// considered; nil considers all of them.
func (s *CursorStore) HasNextPage(keep func(accountID string) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, more := range s.more {
		if more && (keep == nil || keep(id)) {
			return true
		}
	}
	return false
}
