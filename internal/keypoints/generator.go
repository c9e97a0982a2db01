package keypoints

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"globalsearch/internal/community"
	"globalsearch/internal/llm"
)

const (
	defaultMapContextTokens    = 8000
	defaultReduceContextTokens = 8000

	// minFirstRowChars is kept of the first report even when the header
	// alone uses up the budget.
	minFirstRowChars = 64
)

var _ Generator = (*LLMGenerator)(nil)

// LLMGenerator asks the model for scored key points drawn from a table of
// community reports.
type LLMGenerator struct {
	Client           llm.Client
	MaxContextTokens int
	MaxTokens        int
	Temperature      *float64
}

func NewLLMGenerator(client llm.Client) *LLMGenerator {
	return &LLMGenerator{Client: client, MaxContextTokens: defaultMapContextTokens}
}

func (g *LLMGenerator) Generate(ctx context.Context, query string, reports []community.Report) (KeyPoints, error) {
	if len(reports) == 0 {
		return KeyPoints{}, fmt.Errorf("generating key points: no reports given")
	}

	table := ReportTable(reports, g.contextTokens())
	req := llm.UserPrompt(fmt.Sprintf(mapSystemPrompt, table), query)
	req.JSON = true
	req.MaxTokens = g.MaxTokens
	req.Temperature = g.Temperature

	resp, err := g.Client.Complete(ctx, req)
	if err != nil {
		return KeyPoints{}, fmt.Errorf("generating key points: %w", err)
	}

	points, err := parsePoints(resp.Content)
	if err != nil {
		return KeyPoints{}, fmt.Errorf("parsing key points: %w", err)
	}

	kp := KeyPoints{
		Community: reports[0].ID,
		Weight:    reports[0].Weight,
		Points:    points,
		Raw:       resp.Content,
	}
	// Weight of a multi-report batch is the heaviest member.
	for _, r := range reports[1:] {
		if r.Weight > kp.Weight {
			kp.Weight = r.Weight
		}
	}
	return kp, nil
}

func (g *LLMGenerator) contextTokens() int {
	if g.MaxContextTokens <= 0 {
		return defaultMapContextTokens
	}
	return g.MaxContextTokens
}

// ReportTable renders reports as a pipe-separated table, stopping once the
// token budget is reached. The first row is always included, cut to fit if
// necessary, and never cut below minFirstRowChars.
func ReportTable(reports []community.Report, maxTokens int) string {
	const header = "id|title|weight|rank|content\n"

	var b strings.Builder
	b.WriteString(header)
	used := estimateTokens(header)

	for i, r := range reports {
		row := strings.Join([]string{
			string(r.ID),
			cell(r.Title),
			strconv.FormatFloat(r.Weight, 'f', -1, 64),
			strconv.FormatFloat(r.Rank, 'f', -1, 64),
			cell(r.Content),
		}, "|") + "\n"

		cost := estimateTokens(row)
		if used+cost > maxTokens {
			if i > 0 {
				break
			}
			budget := max((maxTokens-used)*4, minFirstRowChars)
			if budget < len(row) {
				row = strings.ToValidUTF8(row[:budget], "") + "\n"
			}
		}
		b.WriteString(row)
		used += cost
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "/")
}
