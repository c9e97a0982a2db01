package community

import (
	"fmt"

	"globalsearch/internal/store"
)

// MissingWeightError means a report passed the level filter but the weight
// calculator produced no weight for it.
type MissingWeightError struct {
	CommunityID store.CommunityID
}

func (e *MissingWeightError) Error() string {
	return fmt.Sprintf("no weight computed for community %s", e.CommunityID)
}

// Select keeps the reports at or above the given hierarchy level (level <=
// maxLevel) in their original order and attaches each one's weight.
func Select(reports []store.ReportRecord, maxLevel int, weights map[store.CommunityID]float64) ([]Report, error) {
	selected := make([]Report, 0, len(reports))
	for _, row := range reports {
		if row.Level > maxLevel {
			continue
		}
		weight, ok := weights[row.CommunityID]
		if !ok {
			return nil, &MissingWeightError{CommunityID: row.CommunityID}
		}
		selected = append(selected, Report{
			ID:      row.CommunityID,
			Level:   row.Level,
			Weight:  weight,
			Title:   row.Title,
			Summary: row.Summary,
			Rank:    row.Rating,
			Content: row.Content,
		})
	}
	return selected, nil
}
