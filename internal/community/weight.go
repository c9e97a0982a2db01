package community

import (
	"fmt"

	"globalsearch/internal/store"
)

// WeightCalculator assigns an importance weight to every community in the
// reports table. Implementations see the full, unfiltered artifacts.
type WeightCalculator interface {
	Calculate(entities []store.EntityRecord, reports []store.ReportRecord) (map[store.CommunityID]float64, error)
}

var (
	_ WeightCalculator = EntityShareCalculator{}
	_ WeightCalculator = TextUnitCalculator{}
)

// EntityShareCalculator weights a community by its share of all entity
// memberships. Weights sum to 1 unless no entity belongs to any reported
// community, in which case every weight is 0.
type EntityShareCalculator struct{}

func (EntityShareCalculator) Calculate(entities []store.EntityRecord, reports []store.ReportRecord) (map[store.CommunityID]float64, error) {
	weights, err := zeroWeights(reports)
	if err != nil {
		return nil, err
	}

	counts := make(map[store.CommunityID]int, len(weights))
	total := 0
	for _, entity := range entities {
		for id := range memberships(entity, weights) {
			counts[id]++
			total++
		}
	}
	if total == 0 {
		return weights, nil
	}
	for id, count := range counts {
		weights[id] = float64(count) / float64(total)
	}
	return weights, nil
}

// TextUnitCalculator weights a community by the number of distinct text units
// its entities were extracted from. With Normalize set, weights are divided
// by the largest weight so they fall in [0, 1].
type TextUnitCalculator struct {
	Normalize bool
}

func (c TextUnitCalculator) Calculate(entities []store.EntityRecord, reports []store.ReportRecord) (map[store.CommunityID]float64, error) {
	weights, err := zeroWeights(reports)
	if err != nil {
		return nil, err
	}

	units := make(map[store.CommunityID]map[string]struct{}, len(weights))
	for _, entity := range entities {
		for id := range memberships(entity, weights) {
			set, ok := units[id]
			if !ok {
				set = make(map[string]struct{})
				units[id] = set
			}
			for _, unit := range entity.TextUnitIDs {
				set[unit] = struct{}{}
			}
		}
	}

	maxWeight := 0.0
	for id, set := range units {
		weights[id] = float64(len(set))
		if weights[id] > maxWeight {
			maxWeight = weights[id]
		}
	}
	if c.Normalize && maxWeight > 0 {
		for id := range weights {
			weights[id] /= maxWeight
		}
	}
	return weights, nil
}

func zeroWeights(reports []store.ReportRecord) (map[store.CommunityID]float64, error) {
	weights := make(map[store.CommunityID]float64, len(reports))
	for i, report := range reports {
		if report.CommunityID == "" {
			return nil, fmt.Errorf("report %d has an empty community id", i)
		}
		if _, dup := weights[report.CommunityID]; dup {
			return nil, fmt.Errorf("duplicate community id %s in reports", report.CommunityID)
		}
		weights[report.CommunityID] = 0
	}
	return weights, nil
}

// memberships returns the distinct reported communities an entity belongs to.
func memberships(entity store.EntityRecord, known map[store.CommunityID]float64) map[store.CommunityID]struct{} {
	out := make(map[store.CommunityID]struct{}, len(entity.Communities))
	for _, id := range entity.Communities {
		if _, ok := known[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}
