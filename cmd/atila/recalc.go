package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/atila/internal/project"
)

func newRecalcCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
	)

	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recompute scores and ranks",
		Long: `Rescores every ticket against the current time and reassigns display and
order ranks. Without --project every project is recomputed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecalc(cmd, configPath, projectID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	cmd.Flags().UintVar(&projectID, "project", 0, "recompute only this project id")
	return cmd
}

func runRecalc(cmd *cobra.Command, configPath string, projectID uint) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx := context.Background()
	r := a.svc.Recalculator()
	out := cmd.OutOrStdout()

	if projectID == 0 {
		n, err := r.All(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Recomputed %d projects\n", n)
		return nil
	}

	if _, err := project.Get(a.db, projectID); err != nil {
		return err
	}
	sum, err := r.Project(ctx, projectID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Project %d: %d active, %d backlog, %d completed\n", projectID, sum.Active, sum.Backlog, sum.Completed)
	if len(sum.Unrecognized) > 0 {
		fmt.Fprintf(out, "Ranked with backlog (unknown status): %v\n", sum.Unrecognized)
	}
	return nil
}
