package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

func queryCmd() *cobra.Command {
	var overrides searchOverrides
	var verbose bool
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question with a global search over the community reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides.levelSet = cmd.Flags().Changed("level")
			return runQuery(strings.Join(args, " "), overrides, verbose)
		},
	}
	cmd.Flags().IntVar(&overrides.level, "level", 0, "Deepest community level to include (overrides config)")
	cmd.Flags().IntVar(&overrides.concurrency, "concurrency", 0, "Maximum concurrent map calls (overrides config)")
	cmd.Flags().StringVar(&overrides.onFailure, "on-failure", "", "Map failure policy: fail or skip (overrides config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every stage and print the communities used")
	return cmd
}

func runQuery(question string, overrides searchOverrides, verbose bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, log, err := loadConfig(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	artifacts, err := openArtifacts(ctx, cfg.Artifacts)
	if err != nil {
		return err
	}
	defer artifacts.Close(ctx)

	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	gs, err := newSearch(cfg, artifacts, client, log, overrides)
	if err != nil {
		return err
	}

	result, err := gs.Search(ctx, question)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Communities used (%d):\n", len(result.Selected))
		for _, r := range result.Selected {
			fmt.Fprintf(os.Stderr, "  - %s [level %d, weight %.4f] %s\n", r.ID, r.Level, r.Weight, r.Title)
		}
		for _, s := range result.Stages {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", s.Stage, s.Duration)
		}
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(os.Stderr, "Skipped communities (%d):\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Fprintf(os.Stderr, "  - %s: %s\n", s.CommunityID, s.Error)
		}
	}

	fmt.Fprintln(os.Stdout, result.Answer)
	return nil
}
