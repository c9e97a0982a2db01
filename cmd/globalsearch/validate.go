package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"globalsearch/internal/validate"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run consistency checks against the artifacts",
		RunE:  runValidate,
	}
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	report, err := validate.Run(ctx, artifacts)
	if err != nil {
		return err
	}
	if printReport(os.Stdout, report) {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

// printReport writes errors then warnings and reports whether any error
// was found.
func printReport(out io.Writer, report *validate.Report) bool {
	var errorIssues []validate.Issue
	var warnIssues []validate.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case validate.SeverityError:
			errorIssues = append(errorIssues, issue)
		case validate.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintln(out, "No issues found.")
		return false
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(out, "Errors (%d):\n", len(errorIssues))
		printIssues(out, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(out, "")
		}
		fmt.Fprintf(out, "Warnings (%d):\n", len(warnIssues))
		printIssues(out, warnIssues)
	}
	return len(errorIssues) > 0
}

func printIssues(out io.Writer, issues []validate.Issue) {
	for _, issue := range issues {
		location := issue.Table
		if issue.CommunityID != "" {
			location = fmt.Sprintf("%s community %s", location, issue.CommunityID)
		}
		if issue.EntityID != "" {
			location = fmt.Sprintf("%s (entity %s)", location, issue.EntityID)
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}
