// SPDX-License-Identifier: AGPL-3.0-only
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fluffyriot/crossfeed/internal/cache"
	"github.com/fluffyriot/crossfeed/internal/config"
	"github.com/fluffyriot/crossfeed/internal/models"
	"github.com/fluffyriot/crossfeed/internal/timeline"
)

var ErrRefreshRunning = errors.New("refresh already in progress")

type Worker struct {
	Timeline *timeline.Timeline
	Cache    cache.Store
	Config   *config.AppConfig
	Ticker   *time.Ticker
	StopChan chan bool
	mu       sync.Mutex
	running  bool
	active   bool
	failures int
	retryAt  time.Time
	now      func() time.Time

	// selection narrows the configured accounts; nil means all of them.
	selection map[string]bool
}

func NewWorker(tl *timeline.Timeline, store cache.Store, cfg *config.AppConfig) *Worker {
	return &Worker{
		Timeline: tl,
		Cache:    store,
		Config:   cfg,
		StopChan: make(chan bool),
		now:      time.Now,
	}
}

func (w *Worker) Start(interval time.Duration) {
	w.mu.Lock()
	if w.active {
		w.mu.Unlock()
		log.Println("Worker: Scheduler already active, use Restart to change interval")
		return
	}
	w.active = true
	w.mu.Unlock()

	w.Ticker = time.NewTicker(interval)
	go func() {
		defer func() {
			w.mu.Lock()
			w.active = false
			w.mu.Unlock()
		}()
		for {
			select {
			case <-w.Ticker.C:
				w.scheduledRefresh()
			case <-w.StopChan:
				w.Ticker.Stop()
				return
			}
		}
	}()
	log.Printf("Worker: background refresh started with interval: %v", interval)
}

func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		log.Println("Worker: Scheduler not active")
		return
	}
	w.mu.Unlock()

	w.StopChan <- true
	log.Println("Worker: background refresh stopped")
}

func (w *Worker) Restart(interval time.Duration) {
	w.mu.Lock()
	isActive := w.active
	w.mu.Unlock()

	if isActive {
		w.Stop()
		time.Sleep(100 * time.Millisecond)
	}
	w.Start(interval)
}

func (w *Worker) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// scheduledRefresh runs a tick unless the worker is backing off after every
// account failed.
func (w *Worker) scheduledRefresh() {
	w.mu.Lock()
	retryAt := w.retryAt
	w.mu.Unlock()

	if w.now().Before(retryAt) {
		log.Printf("Worker: backing off until %s", retryAt.Format(time.RFC3339))
		return
	}

	if err := w.RefreshNow(context.Background()); err != nil && !errors.Is(err, ErrRefreshRunning) {
		log.Printf("Worker: scheduled refresh failed: %v", err)
	}
}

// RefreshNow runs one refresh and saves the snapshot. Only one refresh runs at
// a time; a concurrent call returns ErrRefreshRunning.
func (w *Worker) RefreshNow(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		log.Println("Worker: Refresh already in progress, skipping...")
		return ErrRefreshRunning
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	err := RunRefresh(ctx, w.Timeline, w.Cache, w.Accounts())

	w.mu.Lock()
	defer w.mu.Unlock()
	if errors.Is(err, timeline.ErrAllAccountsFailed) {
		delay := backoffWithJitter(w.failures)
		w.failures++
		w.retryAt = w.now().Add(delay)
		log.Printf("Worker: every account failed (%d in a row), next attempt in %s", w.failures, delay)
	} else if err == nil {
		w.failures = 0
		w.retryAt = time.Time{}
	}
	return err
}

// Select limits later refreshes to the given configured accounts. An empty
// list restores the configured selection.
func (w *Worker) Select(accountIDs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(accountIDs) == 0 {
		w.selection = nil
		return
	}
	w.selection = make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		w.selection[id] = true
	}
}

// Accounts returns the accounts the next refresh fetches.
func (w *Worker) Accounts() []models.Account {
	w.mu.Lock()
	selection := w.selection
	w.mu.Unlock()

	accounts := w.Config.SelectedAccounts()
	if selection == nil {
		return accounts
	}
	out := accounts[:0:0]
	for _, acc := range accounts {
		if selection[acc.ID] {
			out = append(out, acc)
		}
	}
	return out
}
