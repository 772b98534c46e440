// SPDX-License-Identifier: AGPL-3.0-only
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	VersionJsonUrl = "https://raw.githubusercontent.com/fluffyriot/crossfeed/main/version.json"
	CheckInterval  = 6 * time.Hour
)

type RemoteVersion struct {
	Latest string `json:"latest"`
}

type Updater struct {
	mu              sync.RWMutex
	updateAvailable bool
	remoteVersion   RemoteVersion
	currentVersion  string
	checkInterval   time.Duration

	URL    string
	Client *http.Client
}

func NewUpdater(currentVersion string, client *http.Client) *Updater {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Updater{
		currentVersion: currentVersion,
		checkInterval:  CheckInterval,
		URL:            VersionJsonUrl,
		Client:         client,
	}
}

// Start checks once right away and then every CheckInterval until ctx ends.
func (u *Updater) Start(ctx context.Context) {
	go func() {
		u.Check(ctx)

		ticker := time.NewTicker(u.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				u.Check(ctx)
			}
		}
	}()
}

func (u *Updater) Check(ctx context.Context) {
	if err := u.check(ctx); err != nil {
		log.Printf("Updater: failed to check for updates: %v", err)
	}
}

func (u *Updater) check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return err
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status code %d", resp.StatusCode)
	}

	var rv RemoteVersion
	if err := json.NewDecoder(resp.Body).Decode(&rv); err != nil {
		return fmt.Errorf("decoding version file: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	u.remoteVersion = rv
	u.updateAvailable = isNewer(rv.Latest, u.currentVersion)
	if u.updateAvailable {
		log.Printf("Updater: new version available: %s (current: %s)", rv.Latest, u.currentVersion)
	}
	return nil
}

// isNewer compares dotted numeric versions. Development builds never report
// an update.
func isNewer(remote, current string) bool {
	remote = strings.TrimPrefix(remote, "v")
	current = strings.TrimPrefix(current, "v")
	if remote == "" || remote == current || current == "unknown" || current == "dev" {
		return false
	}

	rParts := strings.Split(remote, ".")
	cParts := strings.Split(current, ".")

	maxLen := min(len(rParts), len(cParts))
	for i := 0; i < maxLen; i++ {
		var rVal, cVal int
		fmt.Sscanf(rParts[i], "%d", &rVal)
		fmt.Sscanf(cParts[i], "%d", &cVal)

		if rVal > cVal {
			return true
		}
		if rVal < cVal {
			return false
		}
	}

	return len(rParts) > len(cParts)
}

func (u *Updater) IsUpdateAvailable() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.updateAvailable
}

func (u *Updater) GetUpdateInfo() RemoteVersion {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.remoteVersion
}
