package main

import (
	"context"
	"fmt"
	"time"

	"globalsearch/internal/community"
	"globalsearch/internal/config"
	"globalsearch/internal/keypoints"
	"globalsearch/internal/llm"
	"globalsearch/internal/logger"
	"globalsearch/internal/search"
	"globalsearch/internal/store"
)

// searchOverrides carries command-line flags that replace config values.
type searchOverrides struct {
	level       int
	concurrency int
	onFailure   string
	levelSet    bool
}

func loadConfig(verbose bool) (*config.ProjectConfig, *logger.Logger, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	log, err := logger.New(cfg.Logging.Mode, level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func weightCalculator(cfg *config.ProjectConfig) community.WeightCalculator {
	if cfg.Search.Weighting == config.WeightingTextUnits {
		normalize := cfg.Search.NormalizeWeights == nil || *cfg.Search.NormalizeWeights
		return community.TextUnitCalculator{Normalize: normalize}
	}
	return community.EntityShareCalculator{}
}

func newLLMClient(cfg *config.ProjectConfig) (llm.Client, error) {
	return llm.NewClient(llm.Config{
		Provider:    llm.Provider(cfg.LLM.Provider),
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
}

func newSearch(cfg *config.ProjectConfig, artifacts store.ArtifactReader, client llm.Client, log *logger.Logger, overrides searchOverrides) (*search.GlobalSearch, error) {
	level := cfg.CommunityLevel()
	if overrides.levelSet {
		level = overrides.level
	}
	concurrency := cfg.Search.Concurrency
	if overrides.concurrency > 0 {
		concurrency = overrides.concurrency
	}
	onFailure := cfg.Search.OnGenerationFailure
	if overrides.onFailure != "" {
		onFailure = overrides.onFailure
	}
	policy, err := search.ParseFailurePolicy(onFailure)
	if err != nil {
		return nil, err
	}

	generator := keypoints.NewLLMGenerator(client)
	generator.MaxContextTokens = cfg.Search.MapContextTokens
	generator.MaxTokens = cfg.Search.MapMaxTokens

	aggregator := keypoints.NewLLMAggregator(client)
	aggregator.ResponseType = cfg.Search.ResponseType
	aggregator.MaxContextTokens = cfg.Search.ReduceContextTokens
	aggregator.MaxTokens = cfg.Search.ReduceMaxTokens
	aggregator.Temperature = cfg.Search.ReduceTemperature

	gs, err := search.New(search.Options{
		Artifacts:      artifacts,
		CommunityLevel: level,
		Weights:        weightCalculator(cfg),
		Generator:      generator,
		Aggregator:     aggregator,
		Concurrency:    concurrency,
		FailurePolicy:  policy,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("building global search: %w", err)
	}
	return gs, nil
}

// selectionOnly builds a search that never reaches the map stage, for
// commands that only list communities.
func selectionOnly(cfg *config.ProjectConfig, artifacts store.ArtifactReader, log *logger.Logger, overrides searchOverrides) (*search.GlobalSearch, error) {
	return newSearch(cfg, artifacts, offlineClient{}, log, overrides)
}

type offlineClient struct{}

func (offlineClient) Complete(ctx context.Context, request llm.Request) (*llm.Response, error) {
	return nil, fmt.Errorf("no llm configured")
}

func (offlineClient) Provider() llm.Provider { return "offline" }

func (offlineClient) Model() string { return "" }
