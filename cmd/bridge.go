/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"minerva/internal/bootstrap/logging"
	"minerva/internal/errs"
)

// bridgeCmd represents the bridge command
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Chat bridge operations",
}

// bridgeCheckCmd runs a single inbox pass and exits.
var bridgeCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Process pending inbox messages once",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start inbox check")

		if err := svcs.Bridge.CheckInbox(ctx); err != nil {
			logging.Error(ctx, "inbox check failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "check inbox")
		}

		logging.Info(ctx, "inbox check finished")
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "inbox check completed"); err != nil {
			return errs.Wrap(err, "write bridge check output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.AddCommand(bridgeCheckCmd)
}
