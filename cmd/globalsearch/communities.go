package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func communitiesCmd() *cobra.Command {
	var overrides searchOverrides
	cmd := &cobra.Command{
		Use:   "communities",
		Short: "List the weighted communities a query would map over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides.levelSet = cmd.Flags().Changed("level")
			return runCommunities(overrides)
		},
	}
	cmd.Flags().IntVar(&overrides.level, "level", 0, "Deepest community level to include (overrides config)")
	return cmd
}

func runCommunities(overrides searchOverrides) error {
	ctx := context.Background()

	cfg, log, err := loadConfig(false)
	if err != nil {
		return err
	}
	defer log.Sync()

	artifacts, err := openArtifacts(ctx, cfg.Artifacts)
	if err != nil {
		return err
	}
	defer artifacts.Close(ctx)

	gs, err := selectionOnly(cfg, artifacts, log, overrides)
	if err != nil {
		return err
	}
	reports, err := gs.Select(ctx)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(os.Stdout, "No communities selected.")
		return nil
	}

	for _, r := range reports {
		fmt.Fprintf(os.Stdout, "%s\tlevel=%d\tweight=%.4f\trank=%g\t%s\n", r.ID, r.Level, r.Weight, r.Rank, r.Title)
	}
	return nil
}
