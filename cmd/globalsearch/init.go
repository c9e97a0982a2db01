package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var projectName string
	var provider string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new globalsearch project config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(configPath, projectName, provider)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&provider, "provider", "openai", "LLM provider: openai, anthropic or ollama")
	return cmd
}

func runInit(path, projectName, provider string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	contents := fmt.Sprintf(`project: %s
version: 1

artifacts:
  dir: ./artifacts

search:
  community_level: 2
  concurrency: 4
  on_generation_failure: fail
  weighting: entity_share
  response_type: multiple paragraphs

llm:
  provider: %s

logging:
  mode: development
  level: info
`, projectName, provider)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
