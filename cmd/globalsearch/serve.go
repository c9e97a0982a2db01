package main

import (
	"context"

	"github.com/spf13/cobra"

	"globalsearch/internal/mcp"
	"globalsearch/internal/store"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
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
	cache := store.NewCache(artifacts)
	defer cache.Close(ctx)

	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}
	gs, err := newSearch(cfg, cache, client, log, searchOverrides{})
	if err != nil {
		return err
	}

	server := mcp.NewServer(mcp.ServerConfig{
		Searcher:     gs,
		Artifacts:    cache,
		DefaultLevel: cfg.CommunityLevel(),
		Version:      version,
		Logger:       log,
	})
	log.Info("mcp server starting", "project", cfg.Project, "provider", client.Provider(), "model", client.Model())
	return server.Run(ctx, &sdk.StdioTransport{})
}
