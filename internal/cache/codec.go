// SPDX-License-Identifier: AGPL-3.0-only
package cache

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/fluffyriot/crossfeed/internal/models"
)

var payloadEncoding = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func encodePayload(p *models.Post) ([]byte, string, error) {
	payload, err := payloadEncoding.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("encode post %s: %w", p.ID, err)
	}
	return payload, digest(payload), nil
}

// decodePayload returns the full post, or an error when the payload is missing,
// does not match its digest, or cannot be decoded.
func decodePayload(payload []byte, sum string) (*models.Post, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("no payload")
	}
	if sum != digest(payload) {
		return nil, fmt.Errorf("payload digest mismatch")
	}

	var p models.Post
	if err := cbor.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &p, nil
}

func digest(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// flatten lists the column values of a post in insert order. They are all a
// legacy entry has, so they must be enough to show the post on their own.
func flatten(p *models.Post) []any {
	return []any{
		p.ID,
		p.StableID,
		string(p.Platform),
		p.AccountID,
		p.Author.Name,
		p.Author.Username,
		p.Author.AvatarURL,
		p.Source().Content,
		p.URL,
		p.InReplyToID,
		p.CreatedAt.UTC(),
	}
}
