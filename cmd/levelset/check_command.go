package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"levelset/internal/config"
	"levelset/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [directory]",
		Short: "Verify ffmpeg and directory access before a batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			inputDir := cfg.Paths.InputDir
			if len(args) == 1 {
				inputDir = args[0]
			}
			inputDir, err = config.ExpandPath(inputDir)
			if err != nil {
				return fmt.Errorf("resolve input directory: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}

			for _, line := range renderSectionHeader("Readiness", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(parent, cfg, inputDir)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Executables", colorize) {
				fmt.Fprintln(out, line)
			}
			rows := [][]string{}
			for _, status := range preflight.CheckSystemDeps(cfg) {
				state := "available"
				switch {
				case !status.Available && status.Optional:
					state = "missing (optional)"
				case !status.Available:
					state = "missing"
				}
				rows = append(rows, []string{status.Name, status.Command, state, status.Description})
			}
			fmt.Fprintln(out, renderTable([]string{"Tool", "Command", "State", "Used for"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
