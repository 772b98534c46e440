// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluffyriot/crossfeed/internal/cli"
	"github.com/fluffyriot/crossfeed/internal/config"
	"github.com/fluffyriot/crossfeed/internal/helpers"
	"github.com/fluffyriot/crossfeed/internal/models"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch and print the merged timeline",
	Long:  "Refresh every selected account once, save the snapshot and print the result.",
	RunE:  runRefresh,
}

var cachedCmd = &cobra.Command{
	Use:   "cached",
	Short: "Print the last saved timeline",
	Long:  "Print the offline snapshot without touching the network.",
	RunE:  runCached,
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured accounts",
	RunE:  runAccounts,
}

var (
	refreshPages    int
	refreshAccounts []string
	feedLimit       int
)

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(cachedCmd)
	rootCmd.AddCommand(accountsCmd)

	refreshCmd.Flags().IntVar(&refreshPages, "pages", 0, "Older pages to load after the first one")
	refreshCmd.Flags().StringSliceVar(&refreshAccounts, "accounts", nil, "Only refresh these account ids")
	refreshCmd.Flags().IntVar(&feedLimit, "limit", 0, "Maximum number of posts to print (0 for all)")
	cachedCmd.Flags().IntVar(&feedLimit, "limit", 0, "Maximum number of posts to print (0 for all)")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	app := globalApp
	ctx := cmd.Context()

	if len(refreshAccounts) > 0 {
		if unknown := app.Config.UnknownAccounts(refreshAccounts); len(unknown) > 0 {
			return fmt.Errorf("unknown accounts: %s", strings.Join(unknown, ", "))
		}
		app.Worker.Select(refreshAccounts)
	}

	if err := app.Worker.RefreshNow(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	for i := 0; i < refreshPages && app.Timeline.HasNextPage(); i++ {
		added, err := app.Timeline.FetchNextPage(ctx)
		if err != nil {
			return fmt.Errorf("loading page %d: %w", i+2, err)
		}
		if len(added) == 0 {
			break
		}
	}
	app.Timeline.WaitHydration()

	return printPosts(app.Timeline.Posts())
}

func runCached(cmd *cobra.Command, args []string) error {
	posts, err := globalApp.Cache.Load(cmd.Context())
	if err != nil {
		return err
	}
	return printPosts(posts)
}

type accountView struct {
	ID         string          `json:"id"`
	Platform   models.Platform `json:"platform"`
	Network    string          `json:"network"`
	Handle     string          `json:"handle,omitempty"`
	ProfileURL string          `json:"profile_url,omitempty"`
	Selected   bool            `json:"selected"`
	HasToken   bool            `json:"has_token"`
}

func runAccounts(cmd *cobra.Command, args []string) error {
	views := make([]accountView, 0, len(globalApp.Config.Accounts))
	for _, acc := range globalApp.Config.Accounts {
		views = append(views, toAccountView(acc))
	}

	if jsonOutput || !cli.IsTerminal(os.Stdout) {
		return cli.PrintJSON(os.Stdout, views)
	}
	for _, v := range views {
		mark := " "
		if v.Selected {
			mark = "*"
		}
		fmt.Printf("%s %-12s %-9s %s\n", mark, v.ID, v.Network, v.ProfileURL)
	}
	return nil
}

func toAccountView(acc config.AccountConfig) accountView {
	handle := strings.TrimPrefix(acc.Handle, "@")
	if acc.Platform == models.PlatformMastodon && handle != "" && !strings.Contains(handle, "@") {
		handle += "@" + acc.ServerHost()
	}
	profile, _ := helpers.ConvNetworkToURL(acc.Platform, handle)
	return accountView{
		ID:         acc.ID,
		Platform:   acc.Platform,
		Network:    helpers.NetworkName(acc.Platform),
		Handle:     handle,
		ProfileURL: profile,
		Selected:   acc.IsSelected(),
		HasToken:   acc.Token != "",
	}
}

func printPosts(posts []*models.Post) error {
	if feedLimit > 0 && feedLimit < len(posts) {
		posts = posts[:feedLimit]
	}
	if jsonOutput || !cli.IsTerminal(os.Stdout) {
		return cli.PrintJSON(os.Stdout, posts)
	}
	return cli.PrintPosts(os.Stdout, posts, cli.TerminalWidth(os.Stdout))
}
