package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/meeting-engine/api"
	"github.com/warp/meeting-engine/logging"
)

var serveListen string

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

The availability index is built once before the listener opens and then
rebuilt on the configured cron schedule. On SIGINT/SIGTERM the server stops
accepting connections, waits up to 30s for active requests, stops the
refresher and flushes pending notifications.`,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if serveListen != "" {
		a.cfg.Listen = serveListen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refresher, err := api.NewAvailabilityRefresher(a.engine, a.cfg.RefreshCron, a.cfg.Location(), a.log)
	if err != nil {
		return err
	}
	if err := refresher.Start(ctx); err != nil {
		return err
	}
	defer refresher.Stop()

	handler := api.NewHandler(a.engine, a.log, a.cfg.Location())
	opts := api.RouterOptions{
		AllowedOrigins: a.cfg.CORSOrigins,
		Gatherer:       a.registry,
	}
	if a.identity != nil {
		opts.Identity = a.identity
	}

	server := &http.Server{
		Addr:         a.cfg.Listen,
		Handler:      api.NewRouter(handler, opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("server starting",
			logging.F("addr", a.cfg.Listen),
			logging.F("db", a.cfg.DB),
			logging.F("timezone", a.cfg.Timezone),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server forced to shutdown", logging.Err(err))
		return err
	}
	a.log.Info("server stopped")
	return nil
}
