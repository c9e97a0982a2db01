package search

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"globalsearch/internal/community"
	"globalsearch/internal/keypoints"
	"globalsearch/internal/store"
)

func newSearch(t *testing.T, opts Options) *GlobalSearch {
	t.Helper()
	if opts.Weights == nil {
		opts.Weights = community.EntityShareCalculator{}
	}
	gs, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gs
}

func ids(reports []community.Report) []store.CommunityID {
	out := make([]store.CommunityID, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}

func keyPointIDs(kps []keypoints.KeyPoints) []store.CommunityID {
	out := make([]store.CommunityID, len(kps))
	for i, kp := range kps {
		out[i] = kp.Community
	}
	return out
}

func TestNewValidation(t *testing.T) {
	valid := Options{
		Artifacts:  &memReader{},
		Weights:    community.EntityShareCalculator{},
		Generator:  &fakeGenerator{},
		Aggregator: &fakeAggregator{},
	}

	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{name: "no reader", mutate: func(o *Options) { o.Artifacts = nil }},
		{name: "no weights", mutate: func(o *Options) { o.Weights = nil }},
		{name: "no generator", mutate: func(o *Options) { o.Generator = nil }},
		{name: "no aggregator", mutate: func(o *Options) { o.Aggregator = nil }},
		{name: "negative level", mutate: func(o *Options) { o.CommunityLevel = -1 }},
		{name: "unknown policy", mutate: func(o *Options) { o.FailurePolicy = FailurePolicy(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			if _, err := New(opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	gs, err := New(valid)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if gs.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want default %d", gs.concurrency, DefaultConcurrency)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	for in, want := range map[string]FailurePolicy{"": FailFast, "fail": FailFast, "skip": SkipFailed} {
		got, err := ParseFailurePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseFailurePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFailurePolicy("retry"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestSearchThreeCommunityExample(t *testing.T) {
	gen := &fakeGenerator{}
	agg := &fakeAggregator{gen: gen}
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 1,
		Generator:      gen,
		Aggregator:     agg,
	})

	res, err := gs.Search(context.Background(), "who rules")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got := ids(res.Selected); !reflect.DeepEqual(got, []store.CommunityID{"0", "1"}) {
		t.Fatalf("selected = %v, want [0 1]", got)
	}
	wantWeights := []float64{0.5, 0.3}
	for i, r := range res.Selected {
		if math.Abs(r.Weight-wantWeights[i]) > 1e-9 {
			t.Errorf("weight of %s = %v, want %v", r.ID, r.Weight, wantWeights[i])
		}
	}
	if res.Selected[0].Title != "Kingdom" || res.Selected[0].Rank != 9 || res.Selected[1].Content != "c1" {
		t.Errorf("report fields not carried over: %+v", res.Selected)
	}

	if gen.callCount() != 2 {
		t.Errorf("generator called %d times, want 2", gen.callCount())
	}
	for _, n := range gen.batches {
		if n != 1 {
			t.Errorf("generator got %d reports in one call, want 1", n)
		}
	}
	if agg.calls != 1 {
		t.Fatalf("aggregator called %d times, want 1", agg.calls)
	}
	if got := keyPointIDs(agg.received[0]); !reflect.DeepEqual(got, []store.CommunityID{"0", "1"}) {
		t.Errorf("aggregator received %v", got)
	}
	if res.Answer != "answer from 2 communities" || res.NoData() {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.QueryID == "" {
		t.Error("expected a query id")
	}

	var stages []Stage
	for _, st := range res.Stages {
		stages = append(stages, st.Stage)
	}
	want := []Stage{StageLoading, StageWeighting, StageFiltering, StageMapping, StageReducing}
	if !reflect.DeepEqual(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}
}

func TestInvokeReturnsAnswer(t *testing.T) {
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Generator:      &fakeGenerator{},
		Aggregator:     &fakeAggregator{answer: "final"},
	})
	answer, err := gs.Invoke(context.Background(), "q")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if answer != "final" {
		t.Errorf("answer = %q", answer)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Generator:      &fakeGenerator{},
		Aggregator:     &fakeAggregator{},
	})
	first, err := gs.Select(context.Background())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := gs.Select(context.Background())
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("selection changed between runs:\n%+v\n%+v", first, again)
		}
	}
}

func TestSelectFiltersByLevel(t *testing.T) {
	tests := []struct {
		level int
		want  []store.CommunityID
	}{
		{level: 0, want: []store.CommunityID{"0"}},
		{level: 1, want: []store.CommunityID{"0", "1"}},
		{level: 2, want: []store.CommunityID{"0", "1", "2"}},
		{level: 10, want: []store.CommunityID{"0", "1", "2"}},
	}
	for _, tt := range tests {
		gs := newSearch(t, Options{
			Artifacts:      threeCommunities(),
			CommunityLevel: tt.level,
			Generator:      &fakeGenerator{},
			Aggregator:     &fakeAggregator{},
		})
		got, err := gs.Select(context.Background())
		if err != nil {
			t.Fatalf("level %d: %v", tt.level, err)
		}
		if !reflect.DeepEqual(ids(got), tt.want) {
			t.Errorf("level %d: selected %v, want %v", tt.level, ids(got), tt.want)
		}
		for _, r := range got {
			if r.Level > tt.level {
				t.Errorf("level %d: report %s at level %d passed the filter", tt.level, r.ID, r.Level)
			}
		}
	}
}

func TestSelectAtLevelOverridesConfiguredLevel(t *testing.T) {
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Generator:      &fakeGenerator{},
		Aggregator:     &fakeAggregator{},
	})

	got, err := gs.SelectAtLevel(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids(got), []store.CommunityID{"0"}) {
		t.Fatalf("selected %v, want [0]", ids(got))
	}

	// The override does not stick.
	got, err = gs.Select(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("configured level lost: selected %v", ids(got))
	}

	if _, err := gs.SelectAtLevel(context.Background(), -1); err == nil {
		t.Fatal("expected error for negative level")
	}
}

func TestMapOrderIndependentOfCompletion(t *testing.T) {
	// Earlier reports finish last.
	gen := &fakeGenerator{delay: func(r community.Report) time.Duration {
		return time.Duration(3-r.Level) * 15 * time.Millisecond
	}}
	agg := &fakeAggregator{gen: gen}
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Generator:      gen,
		Aggregator:     agg,
		Concurrency:    3,
	})

	res, err := gs.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []store.CommunityID{"0", "1", "2"}
	if got := keyPointIDs(res.KeyPoints); !reflect.DeepEqual(got, want) {
		t.Errorf("key points order = %v, want %v", got, want)
	}
	if agg.generatorCalls != 3 {
		t.Errorf("aggregator ran after %d generator calls, want all 3", agg.generatorCalls)
	}
}

func TestMapRespectsConcurrencyLimit(t *testing.T) {
	reader := threeCommunities()
	for i := 0; i < 9; i++ {
		id := store.CommunityID(rune('a' + i))
		reader.reports = append(reader.reports, store.ReportRecord{CommunityID: id, Level: 0, Title: string(id)})
	}
	gen := &fakeGenerator{delay: func(community.Report) time.Duration { return 10 * time.Millisecond }}
	gs := newSearch(t, Options{
		Artifacts:      reader,
		CommunityLevel: 2,
		Generator:      gen,
		Aggregator:     &fakeAggregator{},
		Concurrency:    2,
	})

	if _, err := gs.Search(context.Background(), "q"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if peak := gen.peak.Load(); peak > 2 {
		t.Errorf("peak in-flight generator calls = %d, want <= 2", peak)
	}
	if gen.callCount() != 12 {
		t.Errorf("generator called %d times, want 12", gen.callCount())
	}
}

func TestEmptySelectionStillAggregates(t *testing.T) {
	reader := threeCommunities()
	for i := range reader.reports {
		reader.reports[i].Level += 5
	}
	gen := &fakeGenerator{}
	agg := &fakeAggregator{}
	gs := newSearch(t, Options{
		Artifacts:      reader,
		CommunityLevel: 1,
		Generator:      gen,
		Aggregator:     agg,
	})

	res, err := gs.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gen.callCount() != 0 {
		t.Errorf("generator called %d times, want 0", gen.callCount())
	}
	if agg.calls != 1 || len(agg.received[0]) != 0 {
		t.Fatalf("aggregator calls = %d, received %v", agg.calls, agg.received)
	}
	if !res.NoData() {
		t.Errorf("expected no-data answer, got %q", res.Answer)
	}
}

func TestFailFastAbortsQuery(t *testing.T) {
	boom := errors.New("model unavailable")
	gen := &fakeGenerator{fail: map[store.CommunityID]error{"1": boom}}
	agg := &fakeAggregator{}
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Generator:      gen,
		Aggregator:     agg,
		Concurrency:    1,
	})

	_, err := gs.Search(context.Background(), "q")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *GenerationError, got %v", err)
	}
	if genErr.CommunityID != "1" || !errors.Is(err, boom) {
		t.Errorf("unexpected error: %v", err)
	}
	if agg.calls != 0 {
		t.Errorf("aggregator should not run, called %d times", agg.calls)
	}
}

func TestFailFastCancelsInFlightCalls(t *testing.T) {
	boom := errors.New("boom")
	gen := &fakeGenerator{
		fail: map[store.CommunityID]error{"0": boom},
		delay: func(r community.Report) time.Duration {
			if r.ID == "0" {
				return 0
			}
			return time.Minute
		},
	}
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Generator:      gen,
		Aggregator:     &fakeAggregator{},
		Concurrency:    3,
	})

	start := time.Now()
	_, err := gs.Search(context.Background(), "q")
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("in-flight calls were not cancelled")
	}
}

func TestSkipFailedRecordsCommunities(t *testing.T) {
	gen := &fakeGenerator{fail: map[store.CommunityID]error{"1": errors.New("bad json")}}
	agg := &fakeAggregator{}
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Generator:      gen,
		Aggregator:     agg,
		FailurePolicy:  SkipFailed,
	})

	res, err := gs.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].CommunityID != "1" || res.Skipped[0].Error == "" {
		t.Errorf("skipped = %+v", res.Skipped)
	}
	if got := keyPointIDs(agg.received[0]); !reflect.DeepEqual(got, []store.CommunityID{"0", "2"}) {
		t.Errorf("aggregator received %v", got)
	}
}

func TestSkipFailedAllFailStillAggregates(t *testing.T) {
	boom := errors.New("down")
	gen := &fakeGenerator{fail: map[store.CommunityID]error{"0": boom, "1": boom, "2": boom}}
	agg := &fakeAggregator{}
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Generator:      gen,
		Aggregator:     agg,
		FailurePolicy:  SkipFailed,
	})

	res, err := gs.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Skipped) != 3 || agg.calls != 1 || len(agg.received[0]) != 0 {
		t.Errorf("skipped=%d aggregator calls=%d", len(res.Skipped), agg.calls)
	}
}

func TestCancellationIsNotASkip(t *testing.T) {
	gen := &fakeGenerator{block: true}
	agg := &fakeAggregator{}
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Generator:      gen,
		Aggregator:     agg,
		FailurePolicy:  SkipFailed,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gs.Search(ctx, "q")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if agg.calls != 0 {
		t.Errorf("aggregator should not run after cancellation")
	}
}

func TestMissingWeightPropagates(t *testing.T) {
	gen := &fakeGenerator{}
	gs := newSearch(t, Options{
		Artifacts:      threeCommunities(),
		CommunityLevel: 2,
		Weights:        staticWeights{"0": 0.6, "2": 0.4},
		Generator:      gen,
		Aggregator:     &fakeAggregator{},
	})

	_, err := gs.Search(context.Background(), "q")
	var missing *community.MissingWeightError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingWeightError, got %v", err)
	}
	if missing.CommunityID != "1" {
		t.Errorf("missing community = %s, want 1", missing.CommunityID)
	}
	if gen.callCount() != 0 {
		t.Error("generator should not run when filtering fails")
	}
}

func TestWeightCalculationError(t *testing.T) {
	gs := newSearch(t, Options{
		Artifacts:  threeCommunities(),
		Weights:    failingWeights{err: errors.New("bad table")},
		Generator:  &fakeGenerator{},
		Aggregator: &fakeAggregator{},
	})
	_, err := gs.Search(context.Background(), "q")
	var wErr *WeightCalculationError
	if !errors.As(err, &wErr) {
		t.Fatalf("expected *WeightCalculationError, got %v", err)
	}
}

func TestArtifactLoadError(t *testing.T) {
	reader := threeCommunities()
	reader.err = store.ErrMissingTable
	gs := newSearch(t, Options{
		Artifacts:  reader,
		Generator:  &fakeGenerator{},
		Aggregator: &fakeAggregator{},
	})

	_, err := gs.Invoke(context.Background(), "q")
	var loadErr *store.ArtifactLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *ArtifactLoadError, got %v", err)
	}
	if loadErr.Table != store.TableEntities || !errors.Is(err, store.ErrMissingTable) {
		t.Errorf("unexpected load error: %v", err)
	}
}

func TestAggregationError(t *testing.T) {
	gs := newSearch(t, Options{
		Artifacts:  threeCommunities(),
		Generator:  &fakeGenerator{},
		Aggregator: &fakeAggregator{err: errors.New("reduce failed")},
	})
	_, err := gs.Search(context.Background(), "q")
	var aggErr *AggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected *AggregationError, got %v", err)
	}
}

func TestSearchWithSnapshotCache(t *testing.T) {
	cache := store.NewCache(threeCommunities())
	gs := newSearch(t, Options{
		Artifacts:      cache,
		CommunityLevel: 1,
		Generator:      &fakeGenerator{},
		Aggregator:     &fakeAggregator{},
	})
	for i := 0; i < 2; i++ {
		res, err := gs.Search(context.Background(), "q")
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(res.Selected) != 2 {
			t.Errorf("selected %d reports, want 2", len(res.Selected))
		}
	}
}
