// SPDX-License-Identifier: AGPL-3.0-only
package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/fluffyriot/crossfeed/internal/config"
)

// PromptTokens asks on the terminal for every selected account that has no
// access token. It does nothing when stdin is not a terminal.
func PromptTokens(cfg *config.AppConfig) error {
	if !IsTerminal(os.Stdin) {
		return nil
	}

	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if !acc.IsSelected() || acc.Token != "" {
			continue
		}

		fmt.Fprintf(os.Stderr, "Access token for %s (%s, empty to skip): ", acc.ID, acc.Platform)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read token for %s: %w", acc.ID, err)
		}
		acc.Token = strings.TrimSpace(string(raw))
	}
	return nil
}
