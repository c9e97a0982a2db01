package main

import (
	"context"
	"fmt"
	"strings"

	"globalsearch/internal/config"
	"globalsearch/internal/graph"
	"globalsearch/internal/store"
	"globalsearch/internal/store/file"
	"globalsearch/internal/store/postgres"
	"globalsearch/internal/store/sqlite"
)

// openArtifacts opens the store named by the config: the DSN when set,
// otherwise the artifacts directory (parquet or JSON Lines).
func openArtifacts(ctx context.Context, cfg config.ArtifactsConfig) (store.ArtifactWriter, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return file.New(cfg.Dir)
	}
	return openDSN(ctx, dsn, cfg)
}

func openDSN(ctx context.Context, dsn string, cfg config.ArtifactsConfig) (store.ArtifactWriter, error) {
	switch {
	case strings.HasPrefix(dsn, "file://"):
		dir, err := file.ParseDSN(dsn)
		if err != nil {
			return nil, err
		}
		return file.New(dir)
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.New(ctx, dsn)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	case graph.IsDSN(dsn):
		return graph.NewClient(ctx, dsn, cfg.Username, cfg.Password, cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported artifacts dsn: %s", dsn)
	}
}
