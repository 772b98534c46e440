// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluffyriot/crossfeed/internal/api/handlers"
	"github.com/fluffyriot/crossfeed/internal/config"
	"github.com/fluffyriot/crossfeed/internal/updater"
)

var (
	serveListen        string
	serveNoUpdateCheck bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background refresher",
	Long:  "Serve the merged timeline over HTTP and refresh it on the configured interval.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides http.listen)")
	serveCmd.Flags().BoolVar(&serveNoUpdateCheck, "no-update-check", false, "Do not poll for new releases")
}

func runServe(cmd *cobra.Command, args []string) error {
	app := globalApp
	cfg := app.Config

	addr := cfg.HTTP.Listen
	if serveListen != "" {
		addr = serveListen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n := app.RestoreSnapshot(ctx); n > 0 {
		log.Printf("Serve: restored %d cached posts", n)
	}

	app.Worker.Start(cfg.Worker.Interval)
	defer app.Worker.Stop()

	h := handlers.NewHandler(app.Timeline, app.Cache, cfg, app.Worker)
	if !serveNoUpdateCheck {
		h.Updater = updater.NewUpdater(config.AppVersion, nil)
		h.Updater.Start(ctx)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Serve: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	app.Timeline.WaitHydration()
	return nil
}
