/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"minerva/internal/bootstrap/logging"
	"minerva/internal/errs"
	bridgeuc "minerva/internal/usecase/bridge"
)

// cronCmd represents the cron command
var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Poll the repository for labelled pull requests",
	Long:  "Periodic fallback for environments without inbound webhook connectivity: list open labelled pull requests and process each at most once.",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))
		cfg := svcs.App.Config

		if !cfg.Poll.Enabled {
			logging.Warn(ctx, "polling is disabled in config, nothing to do")
			return nil
		}

		if cfg.Poll.HealthAddr != "" {
			startCronHealthServer(ctx, cfg.Poll.HealthAddr, svcs.Poller, cfg.Poll.IntervalMS)
		}

		if err := svcs.Poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error(ctx, "poller failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run poller")
		}

		logging.Info(ctx, "poller stopped")
		return nil
	}),
}

// startCronHealthServer exposes a liveness probe next to the poll loop. It is
// best effort and shut down with the command context.
func startCronHealthServer(ctx context.Context, addr string, poller *bridgeuc.Poller, intervalMS int) {
	started := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          true,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"mode":        "cron",
			"uptime":      time.Since(started).Round(time.Second).String(),
			"interval_ms": intervalMS,
			"processed":   poller.Processed(),
		})
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info(ctx, "health server started", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn(ctx, "health server failed", slog.Any("err", errs.Loggable(err)))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

func init() {
	rootCmd.AddCommand(cronCmd)
}
