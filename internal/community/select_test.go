package community

import (
	"errors"
	"reflect"
	"testing"

	"globalsearch/internal/store"
)

func TestSelect_FiltersByLevelInclusive(t *testing.T) {
	weights := map[store.CommunityID]float64{"0": 0.5, "1": 0.3, "2": 0.2}

	selected, err := Select(fixtureReports(), 1, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(selected))
	}
	if selected[0].ID != "0" || selected[0].Weight != 0.5 || selected[1].ID != "1" || selected[1].Weight != 0.3 {
		t.Fatalf("unexpected selection: %+v", selected)
	}
	for _, r := range selected {
		if r.Level > 1 {
			t.Fatalf("report %s at level %d passed filter", r.ID, r.Level)
		}
	}
	if selected[0].Rank != 9 || selected[0].Title != "Kingdom" || selected[0].Content != "c0" {
		t.Fatalf("fields not carried over: %+v", selected[0])
	}
}

func TestSelect_PreservesRowOrder(t *testing.T) {
	reports := []store.ReportRecord{
		{CommunityID: "b", Level: 1, Rating: 1},
		{CommunityID: "c", Level: 3},
		{CommunityID: "a", Level: 0, Rating: 10},
	}
	weights := map[store.CommunityID]float64{"a": 0.9, "b": 0.1, "c": 0}

	selected, err := Select(reports, 2, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []store.CommunityID
	for _, r := range selected {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []store.CommunityID{"b", "a"}) {
		t.Fatalf("expected row order to be kept, got %v", ids)
	}
}

func TestSelect_MissingWeight(t *testing.T) {
	weights := map[store.CommunityID]float64{"0": 1}

	_, err := Select(fixtureReports(), 1, weights)
	var missing *MissingWeightError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingWeightError, got %v", err)
	}
	if missing.CommunityID != "1" {
		t.Fatalf("expected community 1, got %s", missing.CommunityID)
	}
}

func TestSelect_MissingWeightOutsideLevelIsIgnored(t *testing.T) {
	weights := map[store.CommunityID]float64{"0": 1, "1": 0}
	selected, err := Select(fixtureReports(), 1, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(selected))
	}
}

func TestSelect_LevelBelowMinimumIsEmpty(t *testing.T) {
	weights := map[store.CommunityID]float64{"0": 0.5, "1": 0.3, "2": 0.2}
	selected, err := Select(fixtureReports(), -1, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 0 {
		t.Fatalf("expected no reports, got %d", len(selected))
	}
}

func TestSelect_Deterministic(t *testing.T) {
	weights, err := EntityShareCalculator{}.Calculate(fixtureEntities(), fixtureReports())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, err := Select(fixtureReports(), 2, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Select(fixtureReports(), 2, weights)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("selection changed between runs")
		}
	}
}
