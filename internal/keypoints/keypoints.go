// Package keypoints implements the map and reduce steps of a global search:
// extracting scored key points from community reports and merging them into
// a single answer.
package keypoints

import (
	"context"

	"globalsearch/internal/community"
	"globalsearch/internal/store"
)

// NoDataAnswer is returned by LLMAggregator when no key point survived the
// map step. The model is not called in that case.
const NoDataAnswer = "I am sorry but I am unable to answer this question given the provided data."

type Point struct {
	Description string `json:"description"`
	Score       int    `json:"score"`
}

// KeyPoints is the output of one Generate call for one community report.
type KeyPoints struct {
	Community store.CommunityID
	Weight    float64
	Points    []Point
	Raw       string
}

type Generator interface {
	Generate(ctx context.Context, query string, reports []community.Report) (KeyPoints, error)
}

type Aggregator interface {
	Aggregate(ctx context.Context, query string, keyPoints []KeyPoints) (string, error)
}

// estimateTokens approximates a token count at four characters per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
