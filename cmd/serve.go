/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"minerva/internal/bootstrap/logging"
	"minerva/internal/errs"
	"minerva/internal/transport/webhook"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook gateway",
	Long:  "Listen for signature-verified pull_request webhooks, acknowledge immediately and process labelled pull requests in the background.",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))
		cfg := svcs.App.Config

		handler := webhook.NewHandler(
			ctx,
			cfg.Webhook.Secret,
			cfg.Bridge.Label,
			svcs.Deliveries,
			func(procCtx context.Context, ev webhook.PullRequestEvent) error {
				return svcs.Bridge.HandleWebhookPull(procCtx, ev.Subject())
			},
		)

		server := &http.Server{
			Addr:              cfg.Webhook.Addr,
			Handler:           webhook.NewRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		logging.Info(ctx, "webhook server started", slog.String("addr", cfg.Webhook.Addr), slog.String("label", cfg.Bridge.Label))

		select {
		case <-ctx.Done():
			logging.Info(ctx, "shutdown signal received")
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error(ctx, "webhook server failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "serve webhook")
			}
			return nil
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown webhook server")
		}

		logging.Info(ctx, "webhook server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
