package keypoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrMalformedResponse = errors.New("malformed key points response")

type rawPoint struct {
	Description string      `json:"description"`
	Score       json.Number `json:"score"`
}

type rawResponse struct {
	Points []rawPoint `json:"points"`
}

// parsePoints decodes a map completion. Models often wrap JSON in a code
// fence or add a sentence before it, so only the outermost object is decoded.
func parsePoints(completion string) ([]Point, error) {
	body, err := extractJSONObject(completion)
	if err != nil {
		return nil, err
	}

	var resp rawResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	points := make([]Point, 0, len(resp.Points))
	for i, p := range resp.Points {
		description := strings.TrimSpace(p.Description)
		if description == "" {
			continue
		}
		score := 0
		if p.Score != "" {
			f, err := p.Score.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: point %d score %q", ErrMalformedResponse, i, p.Score)
			}
			f = math.Round(f)
			if f < math.MinInt32 || f > math.MaxInt32 {
				return nil, fmt.Errorf("%w: point %d score %s out of range", ErrMalformedResponse, i, p.Score)
			}
			score = int(f)
		}
		points = append(points, Point{Description: description, Score: score})
	}
	return points, nil
}

func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	if fenced, ok := stripFence(text); ok {
		text = fenced
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	return text[start : end+1], nil
}

func stripFence(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := text[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	closeIdx := strings.LastIndex(rest, "```")
	if closeIdx < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:closeIdx]), true
}
