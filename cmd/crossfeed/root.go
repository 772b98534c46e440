// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluffyriot/crossfeed/internal/cli"
	"github.com/fluffyriot/crossfeed/internal/config"
)

var (
	configPath  string
	jsonOutput  bool
	promptToken bool
)

var globalApp *cli.App

var rootCmd = &cobra.Command{
	Use:   "crossfeed",
	Short: "One home timeline for Mastodon and Bluesky",
	Long: `crossfeed merges the home timelines of your Mastodon and Bluesky
accounts into a single feed, newest first, with reply parents filled in.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var cfg *config.AppConfig
		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if promptToken {
			if err := cli.PromptTokens(cfg); err != nil {
				return err
			}
		}

		globalApp = cli.NewApp(cfg)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if globalApp != nil {
			globalApp.Close()
			globalApp = nil
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("crossfeed " + config.AppVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/crossfeed/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON even on a terminal")
	rootCmd.PersistentFlags().BoolVar(&promptToken, "prompt-token", false, "Ask for missing account tokens on the terminal")

	rootCmd.AddCommand(versionCmd)
}
