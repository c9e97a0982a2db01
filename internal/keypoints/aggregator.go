package keypoints

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"globalsearch/internal/llm"
)

const defaultResponseType = "multiple paragraphs"

var _ Aggregator = (*LLMAggregator)(nil)

// LLMAggregator merges every community's key points into one answer with a
// single model call.
type LLMAggregator struct {
	Client           llm.Client
	ResponseType     string
	MaxContextTokens int
	MaxTokens        int
	Temperature      *float64
}

func NewLLMAggregator(client llm.Client) *LLMAggregator {
	return &LLMAggregator{
		Client:           client,
		ResponseType:     defaultResponseType,
		MaxContextTokens: defaultReduceContextTokens,
	}
}

// RankedPoint is a key point together with where it came from.
type RankedPoint struct {
	Point
	Analyst int
	Weight  float64
	index   int
}

// Rank flattens the collection and orders points by score, then community
// weight, then the position of their key points in the collection, then
// their position within it. Points scoring 0 or less are dropped.
func Rank(collection []KeyPoints) []RankedPoint {
	var ranked []RankedPoint
	for analyst, kp := range collection {
		for i, p := range kp.Points {
			if p.Score <= 0 {
				continue
			}
			ranked = append(ranked, RankedPoint{Point: p, Analyst: analyst, Weight: kp.Weight, index: i})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.Analyst != b.Analyst {
			return a.Analyst < b.Analyst
		}
		return a.index < b.index
	})
	return ranked
}

func (a *LLMAggregator) Aggregate(ctx context.Context, query string, keyPoints []KeyPoints) (string, error) {
	ranked := Rank(keyPoints)
	if len(ranked) == 0 {
		return NoDataAnswer, nil
	}

	responseType := a.ResponseType
	if responseType == "" {
		responseType = defaultResponseType
	}
	data := renderAnalystReports(ranked, a.contextTokens())

	req := llm.UserPrompt(fmt.Sprintf(reduceSystemPrompt, responseType, data), query)
	req.MaxTokens = a.MaxTokens
	req.Temperature = a.Temperature

	resp, err := a.Client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("aggregating key points: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

func (a *LLMAggregator) contextTokens() int {
	if a.MaxContextTokens <= 0 {
		return defaultReduceContextTokens
	}
	return a.MaxContextTokens
}

func renderAnalystReports(ranked []RankedPoint, maxTokens int) string {
	var b strings.Builder
	used := 0
	for i, p := range ranked {
		section := fmt.Sprintf("----Analyst %d----\nImportance Score: %d\n%s\n\n", p.Analyst+1, p.Score, p.Description)
		cost := estimateTokens(section)
		if i > 0 && used+cost > maxTokens {
			break
		}
		b.WriteString(section)
		used += cost
	}
	return strings.TrimSpace(b.String())
}
