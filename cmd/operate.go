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

// operateCmd represents the operate command
var operateCmd = &cobra.Command{
	Use:   "operate",
	Short: "Task ledger operations",
}

// operateRunCmd runs a single operator pass over the shared task ledger.
var operateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Pick up the next todo task and open a work pull request",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		logging.Info(ctx, "start operator pass", slog.Bool("dry_run", dryRun))

		result, err := svcs.Operate.RunOnce(ctx, dryRun)
		if err != nil {
			logging.Error(ctx, "operator pass failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run operator pass")
		}

		if !result.Processed {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no pending tasks"); err != nil {
				return errs.Wrap(err, "write operate output")
			}
			return nil
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"task %s -> branch %s (pr #%d)\n",
			result.TaskID,
			result.Branch,
			result.PRNumber,
		); err != nil {
			return errs.Wrap(err, "write operate output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(operateCmd)
	operateCmd.AddCommand(operateRunCmd)

	operateRunCmd.Flags().Bool("dry-run", false, "Log the intended branch and pull request without writing")
}
