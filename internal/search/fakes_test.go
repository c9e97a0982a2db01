package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"globalsearch/internal/community"
	"globalsearch/internal/keypoints"
	"globalsearch/internal/store"
)

type memReader struct {
	entities []store.EntityRecord
	reports  []store.ReportRecord
	err      error
}

func (m *memReader) ReadEntities(context.Context) ([]store.EntityRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entities, nil
}

func (m *memReader) ReadReports(context.Context) ([]store.ReportRecord, error) {
	return m.reports, nil
}

func (m *memReader) Close(context.Context) error { return nil }

// threeCommunities: five entities in community 0, three in 1 and two in 2,
// at levels 0, 1 and 2.
func threeCommunities() *memReader {
	reader := &memReader{
		reports: []store.ReportRecord{
			{CommunityID: "0", Level: 0, Title: "Kingdom", Summary: "s0", Rating: 9, Content: "c0"},
			{CommunityID: "1", Level: 1, Title: "Capital", Summary: "s1", Rating: 7, Content: "c1"},
			{CommunityID: "2", Level: 2, Title: "Market", Summary: "s2", Rating: 4, Content: "c2"},
		},
	}
	add := func(n int, id store.CommunityID) {
		for i := 0; i < n; i++ {
			reader.entities = append(reader.entities, store.EntityRecord{
				ID:          fmt.Sprintf("%s-%d", id, i),
				Communities: []store.CommunityID{id},
			})
		}
	}
	add(5, "0")
	add(3, "1")
	add(2, "2")
	return reader
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []store.CommunityID
	batches  []int
	inFlight atomic.Int32
	peak     atomic.Int32

	delay func(r community.Report) time.Duration
	fail  map[store.CommunityID]error
	// block makes calls wait for ctx cancellation.
	block bool
}

func (g *fakeGenerator) Generate(ctx context.Context, query string, reports []community.Report) (keypoints.KeyPoints, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	r := reports[0]
	g.mu.Lock()
	g.calls = append(g.calls, r.ID)
	g.batches = append(g.batches, len(reports))
	g.mu.Unlock()

	if g.delay != nil {
		select {
		case <-time.After(g.delay(r)):
		case <-ctx.Done():
			return keypoints.KeyPoints{}, ctx.Err()
		}
	}
	if g.block {
		<-ctx.Done()
		return keypoints.KeyPoints{}, ctx.Err()
	}
	if err := g.fail[r.ID]; err != nil {
		return keypoints.KeyPoints{}, err
	}
	return keypoints.KeyPoints{
		Community: r.ID,
		Weight:    r.Weight,
		Points:    []keypoints.Point{{Description: query + " from " + r.Title, Score: 50}},
	}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeAggregator struct {
	calls    int
	received [][]keypoints.KeyPoints

	// generatorCalls observed at the moment Aggregate ran.
	generatorCalls int
	gen            *fakeGenerator
	err            error
	answer         string
}

func (a *fakeAggregator) Aggregate(_ context.Context, _ string, kps []keypoints.KeyPoints) (string, error) {
	a.calls++
	a.received = append(a.received, kps)
	if a.gen != nil {
		a.generatorCalls = a.gen.callCount()
	}
	if a.err != nil {
		return "", a.err
	}
	if a.answer != "" {
		return a.answer, nil
	}
	if len(kps) == 0 {
		return keypoints.NoDataAnswer, nil
	}
	return fmt.Sprintf("answer from %d communities", len(kps)), nil
}

type staticWeights map[store.CommunityID]float64

func (w staticWeights) Calculate([]store.EntityRecord, []store.ReportRecord) (map[store.CommunityID]float64, error) {
	return w, nil
}

type failingWeights struct{ err error }

func (w failingWeights) Calculate([]store.EntityRecord, []store.ReportRecord) (map[store.CommunityID]float64, error) {
	return nil, w.err
}
