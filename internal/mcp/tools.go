package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"globalsearch/internal/community"
	"globalsearch/internal/search"
)

type GlobalSearchInput struct {
	Query string `json:"query" jsonschema:"question to answer from the community reports"`
}

type ListCommunitiesInput struct {
	Level *int `json:"level,omitempty" jsonschema:"deepest hierarchy level to include; defaults to the configured level"`
}

type RefreshArtifactsInput struct{}

type SkippedOutput struct {
	CommunityID string `json:"community_id"`
	Error       string `json:"error"`
}

type GlobalSearchOutput struct {
	QueryID     string          `json:"query_id"`
	Answer      string          `json:"answer"`
	NoData      bool            `json:"no_data"`
	Communities int             `json:"communities"`
	Skipped     []SkippedOutput `json:"skipped,omitempty"`
}

type CommunityOutput struct {
	ID     string  `json:"id"`
	Level  int     `json:"level"`
	Weight float64 `json:"weight"`
	Rank   float64 `json:"rank"`
	Title  string  `json:"title"`
}

type ListCommunitiesOutput struct {
	Level       int               `json:"level"`
	Communities []CommunityOutput `json:"communities"`
}

type RefreshArtifactsOutput struct {
	Entities int    `json:"entities"`
	Reports  int    `json:"reports"`
	LoadedAt string `json:"loaded_at"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "global_search",
		Description: "Answer a broad question about the whole dataset from its community reports",
	}, s.handleGlobalSearch)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_communities",
		Description: "List the communities a global search would use, with their weights",
	}, s.handleListCommunities)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "refresh_artifacts",
		Description: "Reload the entities and community reports from the artifact store",
	}, s.handleRefreshArtifacts)
}

func (s *Server) handleGlobalSearch(ctx context.Context, req *sdk.CallToolRequest, input GlobalSearchInput) (*sdk.CallToolResult, GlobalSearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, GlobalSearchOutput{}, fmt.Errorf("query is required")
	}
	res, err := s.searcher.Search(ctx, query)
	if err != nil {
		return nil, GlobalSearchOutput{}, err
	}
	return nil, globalSearchOutputFromResult(res), nil
}

func (s *Server) handleListCommunities(ctx context.Context, req *sdk.CallToolRequest, input ListCommunitiesInput) (*sdk.CallToolResult, ListCommunitiesOutput, error) {
	level := s.defaultLevel
	if input.Level != nil {
		level = *input.Level
	}
	if level < 0 {
		return nil, ListCommunitiesOutput{}, fmt.Errorf("level must be >= 0")
	}

	reports, err := s.searcher.SelectAtLevel(ctx, level)
	if err != nil {
		return nil, ListCommunitiesOutput{}, err
	}

	output := make([]CommunityOutput, 0, len(reports))
	for _, r := range reports {
		output = append(output, communityOutputFromReport(r))
	}
	return nil, ListCommunitiesOutput{Level: level, Communities: output}, nil
}

func (s *Server) handleRefreshArtifacts(ctx context.Context, req *sdk.CallToolRequest, input RefreshArtifactsInput) (*sdk.CallToolResult, RefreshArtifactsOutput, error) {
	snap, err := s.artifacts.Refresh(ctx)
	if err != nil {
		return nil, RefreshArtifactsOutput{}, err
	}
	s.log.Info("artifacts refreshed", "entities", len(snap.Entities), "reports", len(snap.Reports))
	return nil, RefreshArtifactsOutput{
		Entities: len(snap.Entities),
		Reports:  len(snap.Reports),
		LoadedAt: snap.LoadedAt.UTC().Format(time.RFC3339),
	}, nil
}

func globalSearchOutputFromResult(res *search.Result) GlobalSearchOutput {
	out := GlobalSearchOutput{
		QueryID:     res.QueryID,
		Answer:      res.Answer,
		NoData:      res.NoData(),
		Communities: len(res.Selected),
	}
	for _, skipped := range res.Skipped {
		out.Skipped = append(out.Skipped, SkippedOutput{
			CommunityID: string(skipped.CommunityID),
			Error:       skipped.Error,
		})
	}
	return out
}

func communityOutputFromReport(r community.Report) CommunityOutput {
	return CommunityOutput{
		ID:     string(r.ID),
		Level:  r.Level,
		Weight: r.Weight,
		Rank:   r.Rank,
		Title:  r.Title,
	}
}
