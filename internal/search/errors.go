package search

import (
	"fmt"

	"globalsearch/internal/store"
)

type WeightCalculationError struct {
	Err error
}

func (e *WeightCalculationError) Error() string {
	return fmt.Sprintf("calculating community weights: %v", e.Err)
}

func (e *WeightCalculationError) Unwrap() error { return e.Err }

// GenerationError is a failed map call for one community.
type GenerationError struct {
	CommunityID store.CommunityID
	Err         error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating key points for community %s: %v", e.CommunityID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregating key points: %v", e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }
