package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"levelset/internal/config"
	"levelset/internal/history"
)

var errHistoryDisabled = errors.New("batch history is disabled (history.enabled = false)")

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past batches",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	return openHistory(cfg, fn)
}

func openHistory(cfg *config.Config, fn func(*history.Store) error) error {
	if !cfg.History.Enabled {
		return errHistoryDisabled
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No batches recorded yet")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						run.StartedAt.Local().Format(time.DateTime),
						filepath.Base(run.InputDir),
						formatLUFS(run.TargetLUFS),
						strconv.Itoa(run.Total),
						strconv.Itoa(run.Succeeded),
						strconv.Itoa(run.Failed),
						strconv.Itoa(run.Skipped),
						formatDuration(run.Duration()),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Folder", "Target", "Files", "Succeeded", "Failed", "Skipped", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of batches to list (0 for all)")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the files of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				run, files, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Batch "+shortID(run.ID), colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Run ID", statusInfo, run.ID, colorize))
				fmt.Fprintln(out, renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(time.DateTime), colorize))
				fmt.Fprintln(out, renderStatusLine("Input", statusInfo, run.InputDir, colorize))
				fmt.Fprintln(out, renderStatusLine("Output", statusInfo, run.OutputDir, colorize))
				fmt.Fprintln(out, renderStatusLine("Target", statusInfo, formatLUFS(run.TargetLUFS)+" LUFS", colorize))
				failedKind := statusOK
				if run.Failed > 0 {
					failedKind = statusError
				}
				fmt.Fprintln(out, renderStatusLine("Result", failedKind,
					fmt.Sprintf("%d/%d succeeded, %d failed, %d skipped", run.Succeeded, run.Total, run.Failed, run.Skipped), colorize))

				if len(files) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(files))
				for _, file := range files {
					integrated, adjustment := "-", "-"
					if file.IntegratedLUFS != nil {
						integrated = fmt.Sprintf("%.1f", *file.IntegratedLUFS)
					}
					if file.AdjustmentLU != nil {
						adjustment = formatSignedLU(*file.AdjustmentLU)
					}
					rows = append(rows, []string{
						strconv.Itoa(file.Position + 1),
						filepath.Base(file.InputPath),
						displayLabel(file.Status),
						displayLabel(file.Mode),
						integrated,
						adjustment,
						file.Reason,
					})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"#", "File", "Status", "Mode", "Integrated", "Adjustment", "Reason"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete batches older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--older-than must be a positive number of days")
			}
			return withHistory(ctx, func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d batch(es) older than %d day(s)\n", removed, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "older-than", 90, "Age in days beyond which batches are deleted")
	return cmd
}
