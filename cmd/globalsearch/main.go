package main

import (
	"os"

	"github.com/spf13/cobra"

	"globalsearch/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "globalsearch",
		Short:        "Answer dataset-wide questions from knowledge graph community reports",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the project config file")
	root.AddCommand(queryCmd())
	root.AddCommand(communitiesCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
