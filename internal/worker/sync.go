// SPDX-License-Identifier: AGPL-3.0-only
package worker

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/fluffyriot/crossfeed/internal/cache"
	"github.com/fluffyriot/crossfeed/internal/models"
	"github.com/fluffyriot/crossfeed/internal/timeline"
)

func backoffWithJitter(attempt int) time.Duration {
	const (
		baseDelay = 10 * time.Second
		maxDelay  = 15 * time.Minute
	)

	if attempt > 16 {
		attempt = 16
	}
	delay := baseDelay * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}

	var b [8]byte
	_, _ = rand.Read(b[:])
	jitter := time.Duration(binary.LittleEndian.Uint64(b[:]) % uint64(delay))

	return jitter
}

// RunRefresh refreshes the timeline from accounts, waits for reply
// parents to settle and stores the result as the offline snapshot. A failed
// save is logged; the in-memory timeline stays authoritative.
func RunRefresh(ctx context.Context, tl *timeline.Timeline, store cache.Store, accounts []models.Account) (err error) {
	log.Println("Worker: Starting refresh...")

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker Panic in refresh: %v", r)
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()

	posts, err := tl.Refresh(ctx, accounts)
	if err != nil {
		return err
	}

	tl.WaitHydration()

	if store != nil {
		if err := store.Save(ctx, tl.Posts()); err != nil {
			log.Printf("Worker: snapshot save failed: %v", err)
		}
	}

	log.Printf("Worker: Completed refresh with %d posts", len(posts))
	return nil
}
