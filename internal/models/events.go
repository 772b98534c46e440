// SPDX-License-Identifier: AGPL-3.0-only
package models

import "time"

type EventType string

const EventRepost EventType = "repost"

// SocialEvent is a repost action decomposed from a boost wrapper. It is derived
// on every merge pass and never persisted.
type SocialEvent struct {
	ID              string    `json:"id"`
	Type            EventType `json:"type"`
	CanonicalPostID string    `json:"canonical_post_id"`
	Actor           Author    `json:"actor"`
	OccurredAt      time.Time `json:"occurred_at"`
	NativeEventKey  string    `json:"native_event_key"`
}

type NativeKey struct {
	Network Network
	Key     string
}

func (k NativeKey) String() string {
	return string(k.Network) + ":" + k.Key
}
