package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"globalsearch/internal/ingest"
	"globalsearch/internal/store/file"
)

func ingestCmd() *cobra.Command {
	var from string
	var skipValidate bool
	var force bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Copy artifacts from an artifacts directory into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(from, skipValidate, force)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source artifacts directory (defaults to artifacts.dir)")
	cmd.Flags().BoolVar(&skipValidate, "skip-validate", false, "Copy without running consistency checks")
	cmd.Flags().BoolVar(&force, "force", false, "Rewrite the destination even if it is up to date")
	return cmd
}

func runIngest(from string, skipValidate, force bool) error {
	ctx := context.Background()

	cfg, log, err := loadConfig(false)
	if err != nil {
		return err
	}
	defer log.Sync()

	if from == "" {
		from = cfg.Artifacts.Dir
	}
	if cfg.Artifacts.DSN == "" {
		return fmt.Errorf("artifacts.dsn must name the destination store")
	}

	source, err := file.New(from)
	if err != nil {
		return err
	}
	dest, err := openDSN(ctx, cfg.Artifacts.DSN, cfg.Artifacts)
	if err != nil {
		return err
	}
	defer dest.Close(ctx)

	result, err := ingest.Run(ctx, source, dest, ingest.Options{
		SkipValidate: skipValidate,
		Force:        force,
		Logger:       log,
	})
	if errors.Is(err, ingest.ErrValidationFailed) && result != nil {
		printReport(os.Stdout, result.Validation)
	}
	if err != nil {
		return err
	}

	if result.Unchanged {
		fmt.Fprintln(os.Stdout, "Destination already up to date.")
		return nil
	}
	fmt.Fprintln(os.Stdout, "Ingestion complete.")
	fmt.Fprintf(os.Stdout, "  Reports written:  %d\n", result.ReportsWritten)
	fmt.Fprintf(os.Stdout, "  Entities written: %d\n", result.EntitiesWritten)
	fmt.Fprintf(os.Stdout, "  Fingerprint:      %s\n", result.Fingerprint)
	return nil
}
