package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "globalsearch.yaml"

// MinContextTokens is the smallest map or reduce context budget accepted.
// Anything lower leaves no room for a report after the table header.
const MinContextTokens = 100

const (
	FailurePolicyFail = "fail"
	FailurePolicySkip = "skip"

	WeightingEntityShare = "entity_share"
	WeightingTextUnits   = "text_units"
)

type ProjectConfig struct {
	Project   string          `yaml:"project"`
	Version   int             `yaml:"version"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Search    SearchConfig    `yaml:"search"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ArtifactsConfig locates the entities and community reports tables. Dir
// names a directory of JSON Lines tables; DSN, when set, takes precedence
// and may address a sqlite, postgres, neo4j or file store.
type ArtifactsConfig struct {
	Dir      string `yaml:"dir"`
	DSN      string `yaml:"dsn"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type SearchConfig struct {
	CommunityLevel      *int     `yaml:"community_level"`
	Concurrency         int      `yaml:"concurrency"`
	OnGenerationFailure string   `yaml:"on_generation_failure"`
	Weighting           string   `yaml:"weighting"`
	NormalizeWeights    *bool    `yaml:"normalize_weights"`
	ResponseType        string   `yaml:"response_type"`
	MapContextTokens    int      `yaml:"map_context_tokens"`
	ReduceContextTokens int      `yaml:"reduce_context_tokens"`
	MapMaxTokens        int      `yaml:"map_max_tokens"`
	ReduceMaxTokens     int      `yaml:"reduce_max_tokens"`
	ReduceTemperature   *float64 `yaml:"reduce_temperature"`
}

type LLMConfig struct {
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	BaseURL        string   `yaml:"base_url"`
	APIKey         string   `yaml:"api_key"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type LoggingConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

func (cfg *ProjectConfig) ApplyDefaults() {
	if cfg.Search.CommunityLevel == nil {
		level := 2
		cfg.Search.CommunityLevel = &level
	}
	if cfg.Search.Concurrency == 0 {
		cfg.Search.Concurrency = 4
	}
	if cfg.Search.OnGenerationFailure == "" {
		cfg.Search.OnGenerationFailure = FailurePolicyFail
	}
	if cfg.Search.Weighting == "" {
		cfg.Search.Weighting = WeightingEntityShare
	}
	if cfg.Search.NormalizeWeights == nil {
		normalize := true
		cfg.Search.NormalizeWeights = &normalize
	}
	if cfg.Search.ResponseType == "" {
		cfg.Search.ResponseType = "multiple paragraphs"
	}
	if cfg.Search.MapContextTokens == 0 {
		cfg.Search.MapContextTokens = 8000
	}
	if cfg.Search.ReduceContextTokens == 0 {
		cfg.Search.ReduceContextTokens = 8000
	}
	if cfg.Search.MapMaxTokens == 0 {
		cfg.Search.MapMaxTokens = 1000
	}
	if cfg.Search.ReduceMaxTokens == 0 {
		cfg.Search.ReduceMaxTokens = 2000
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 120
	}
	if cfg.Logging.Mode == "" {
		cfg.Logging.Mode = "development"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// CommunityLevel returns the configured level; ApplyDefaults guarantees it is set.
func (cfg *ProjectConfig) CommunityLevel() int {
	if cfg.Search.CommunityLevel == nil {
		return 0
	}
	return *cfg.Search.CommunityLevel
}

func (cfg *ProjectConfig) Validate() error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Artifacts.Dir) == "" && strings.TrimSpace(cfg.Artifacts.DSN) == "" {
		return fmt.Errorf("artifacts dir or dsn is required")
	}
	if cfg.CommunityLevel() < 0 {
		return fmt.Errorf("community_level must be >= 0, got %d", cfg.CommunityLevel())
	}
	if cfg.Search.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", cfg.Search.Concurrency)
	}
	switch cfg.Search.OnGenerationFailure {
	case FailurePolicyFail, FailurePolicySkip:
	default:
		return fmt.Errorf("unknown on_generation_failure: %s", cfg.Search.OnGenerationFailure)
	}
	switch cfg.Search.Weighting {
	case WeightingEntityShare, WeightingTextUnits:
	default:
		return fmt.Errorf("unknown weighting: %s", cfg.Search.Weighting)
	}
	if cfg.Search.MapContextTokens < MinContextTokens {
		return fmt.Errorf("map_context_tokens must be >= %d, got %d", MinContextTokens, cfg.Search.MapContextTokens)
	}
	if cfg.Search.ReduceContextTokens < MinContextTokens {
		return fmt.Errorf("reduce_context_tokens must be >= %d, got %d", MinContextTokens, cfg.Search.ReduceContextTokens)
	}
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
	if cfg.LLM.TimeoutSeconds < 0 {
		return fmt.Errorf("llm timeout must be positive")
	}
	return nil
}
