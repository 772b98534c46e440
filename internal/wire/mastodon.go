// SPDX-License-Identifier: AGPL-3.0-only
package wire

import (
	"errors"
	"fmt"
	"time"
)

type MastodonAccount struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	URI         string `json:"uri"`
	Avatar      string `json:"avatar"`
}

type MastodonMedia struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	Description string `json:"description"`
}

type MastodonMention struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url"`
}

type MastodonTag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type MastodonStatus struct {
	ID                 string            `json:"id"`
	URI                string            `json:"uri"`
	URL                string            `json:"url"`
	CreatedAt          time.Time         `json:"created_at"`
	Content            string            `json:"content"`
	SpoilerText        string            `json:"spoiler_text"`
	Account            MastodonAccount   `json:"account"`
	Reblog             *MastodonStatus   `json:"reblog"`
	InReplyToID        string            `json:"in_reply_to_id"`
	InReplyToAccountID string            `json:"in_reply_to_account_id"`
	FavouritesCount    int               `json:"favourites_count"`
	ReblogsCount       int               `json:"reblogs_count"`
	RepliesCount       int               `json:"replies_count"`
	QuotesCount        int               `json:"quotes_count"`
	MediaAttachments   []MastodonMedia   `json:"media_attachments"`
	Mentions           []MastodonMention `json:"mentions"`
	Tags               []MastodonTag     `json:"tags"`
}

var errMissingStatusID = errors.New("status without id")

func (s MastodonStatus) Validate() error {
	if s.ID == "" {
		return errMissingStatusID
	}
	if s.Reblog != nil {
		if err := s.Reblog.Validate(); err != nil {
			return fmt.Errorf("reblog of %s: %w", s.ID, err)
		}
	}
	return nil
}

// Link is the public URL of the status, falling back to its ActivityPub id.
func (s MastodonStatus) Link() string {
	if s.URL != "" {
		return s.URL
	}
	return s.URI
}

type MastodonStatuses []MastodonStatus

func (f MastodonStatuses) Validate() error {
	for i, s := range f {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
