// SPDX-License-Identifier: AGPL-3.0-only
package models

// ParentPlaceholder is the exact Content of a reply parent that has not been fetched yet.
const ParentPlaceholder = "..."

type ParentState int

const (
	ParentNone ParentState = iota
	ParentPending
	ParentHydrated
)

func (s ParentState) String() string {
	switch s {
	case ParentPending:
		return "placeholder"
	case ParentHydrated:
		return "hydrated"
	default:
		return "absent"
	}
}

func NewPlaceholderParent(platform Platform, id, username string) *Post {
	return &Post{
		ID:                 id,
		PlatformSpecificID: id,
		Platform:           platform,
		Content:            ParentPlaceholder,
		Author:             Author{Username: username},
	}
}

func IsPlaceholder(p *Post) bool {
	return p != nil && p.Content == ParentPlaceholder
}

func (p *Post) ParentState() ParentState {
	switch {
	case p.Parent == nil:
		return ParentNone
	case IsPlaceholder(p.Parent):
		return ParentPending
	default:
		return ParentHydrated
	}
}

// NeedsHydration reports whether the post has a placeholder parent and a concrete
// reply target to resolve it from.
func (p *Post) NeedsHydration() bool {
	return IsPlaceholder(p.Parent) && p.ReplyTargetID() != ""
}

// ReplyTargetID is the native id used to fetch the parent.
func (p *Post) ReplyTargetID() string {
	if p.InReplyToID != "" {
		return p.InReplyToID
	}
	if p.Parent != nil {
		return p.Parent.NativeID()
	}
	return ""
}

// WithParent returns a copy of p whose placeholder parent is replaced by parent.
// Only a placeholder can be hydrated; any other state returns p unchanged.
func (p *Post) WithParent(parent *Post) (*Post, bool) {
	if parent == nil || IsPlaceholder(parent) || p.ParentState() != ParentPending {
		return p, false
	}
	c := p.Clone()
	c.Parent = parent.Clone()
	if parent.Author.Username != "" {
		c.InReplyToUsername = parent.Author.Username
	}
	return c, true
}
