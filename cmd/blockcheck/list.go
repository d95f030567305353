package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/blockcheck/internal/config"
	"github.com/kuitang/blockcheck/internal/runner"
	"github.com/kuitang/blockcheck/internal/scenarios"
	"github.com/kuitang/blockcheck/internal/snapshot"
)

func newListCmd() *cobra.Command {
	var (
		gates       []string
		snapshotDir string
		snapshots   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scenarios and their gates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			if cmd.Flags().Changed("gates") {
				cfg.Gates = gates
			}
			if cmd.Flags().Changed("snapshot-dir") {
				cfg.SnapshotDir = snapshotDir
			}
			out := cmd.OutOrStdout()
			if !snapshots {
				fmt.Fprint(out, runner.List(scenarios.Suite(), cfg.GateEnabled, nil))
				return nil
			}

			ctx := cmd.Context()
			backend, err := openBackend(ctx, cfg)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			store, err := snapshot.Open(ctx, backend, scenarios.SuiteName, snapshot.ModeCI)
			if err != nil {
				return err
			}
			suites, err := backend.Suites(ctx)
			if err != nil {
				return fmt.Errorf("list snapshot suites: %w", err)
			}
			fmt.Fprint(out, runner.List(scenarios.Suite(), cfg.GateEnabled, store))
			fmt.Fprintf(out, "stored suites: %s\n", strings.Join(suites, ", "))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&gates, "gates", nil, `scenario gates to enable, or "all"`)
	cmd.Flags().BoolVar(&snapshots, "snapshots", false, "show recorded snapshot counts and the stored suites")
	cmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "", "directory holding snapshot files (env SNAPSHOT_DIR)")
	return cmd
}
