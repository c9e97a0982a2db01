package ingest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"globalsearch/internal/store"
	"globalsearch/internal/store/file"
)

type memStore struct {
	entities []store.EntityRecord
	reports  []store.ReportRecord
	calls    []string
	failOn   string
}

func (m *memStore) ReadEntities(ctx context.Context) ([]store.EntityRecord, error) {
	return m.entities, nil
}

func (m *memStore) ReadReports(ctx context.Context) ([]store.ReportRecord, error) {
	return m.reports, nil
}

func (m *memStore) Close(ctx context.Context) error { return nil }

func (m *memStore) EnsureSchema(ctx context.Context) error {
	m.calls = append(m.calls, "schema")
	return nil
}

func (m *memStore) WriteEntities(ctx context.Context, entities []store.EntityRecord) error {
	m.calls = append(m.calls, "entities")
	if m.failOn == "entities" {
		return errors.New("forced error")
	}
	m.entities = entities
	return nil
}

func (m *memStore) WriteReports(ctx context.Context, reports []store.ReportRecord) error {
	m.calls = append(m.calls, "reports")
	m.reports = reports
	return nil
}

func testArtifacts() *memStore {
	return &memStore{
		entities: []store.EntityRecord{
			{ID: "e1", Title: "Alder", Communities: []store.CommunityID{"0", "1"}, TextUnitIDs: []string{"t1"}},
			{ID: "e2", Title: "Birch", Communities: []store.CommunityID{"1"}, TextUnitIDs: []string{"t2"}},
		},
		reports: []store.ReportRecord{
			{CommunityID: "0", Level: 0, Title: "Forest", Summary: "s", Rating: 7.5, Content: "trees"},
			{CommunityID: "1", Level: 1, Title: "Grove", Summary: "s", Rating: 3, Content: "fewer trees"},
		},
	}
}

func TestRun_WritesReportsBeforeEntities(t *testing.T) {
	dest := &memStore{}
	result, err := Run(context.Background(), testArtifacts(), dest, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if want := []string{"schema", "reports", "entities"}; !reflect.DeepEqual(dest.calls, want) {
		t.Fatalf("calls = %v, want %v", dest.calls, want)
	}
	if result.EntitiesWritten != 2 || result.ReportsWritten != 2 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Validation == nil || len(result.Validation.Issues) != 0 {
		t.Fatalf("expected clean validation, got %+v", result.Validation)
	}
}

func TestRun_ValidationFailureAborts(t *testing.T) {
	source := testArtifacts()
	source.reports = append(source.reports, store.ReportRecord{CommunityID: "1", Level: 1, Content: "dup"})
	dest := &memStore{}

	result, err := Run(context.Background(), source, dest, Options{})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	if result == nil || !result.Validation.HasErrors() {
		t.Fatal("expected validation report with errors")
	}
	if len(dest.calls) != 0 {
		t.Fatalf("destination should be untouched, got calls %v", dest.calls)
	}
}

func TestRun_SkipValidate(t *testing.T) {
	source := testArtifacts()
	source.reports = append(source.reports, store.ReportRecord{CommunityID: "1", Level: 1, Content: "dup"})
	dest := &memStore{}

	result, err := Run(context.Background(), source, dest, Options{SkipValidate: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Validation != nil {
		t.Error("validation should not run")
	}
	if result.ReportsWritten != 3 {
		t.Errorf("reports written = %d, want 3", result.ReportsWritten)
	}
}

func TestRun_WriteError(t *testing.T) {
	dest := &memStore{failOn: "entities"}
	if _, err := Run(context.Background(), testArtifacts(), dest, Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_SourceLoadError(t *testing.T) {
	source, err := file.New(t.TempDir())
	if err != nil {
		t.Fatalf("file.New: %v", err)
	}
	_, err = Run(context.Background(), source, &memStore{}, Options{})
	var loadErr *store.ArtifactLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *ArtifactLoadError, got %v", err)
	}
}

func TestRun_FileRoundTripAndUnchanged(t *testing.T) {
	dest, err := file.New(t.TempDir())
	if err != nil {
		t.Fatalf("file.New: %v", err)
	}
	ctx := context.Background()

	first, err := Run(ctx, testArtifacts(), dest, Options{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Unchanged {
		t.Fatal("first run should write")
	}

	reports, err := dest.ReadReports(ctx)
	if err != nil {
		t.Fatalf("reading reports: %v", err)
	}
	if len(reports) != 2 || reports[0].CommunityID != "0" || reports[1].Rating != 3 {
		t.Fatalf("unexpected reports: %+v", reports)
	}

	second, err := Run(ctx, testArtifacts(), dest, Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Unchanged || second.Fingerprint != first.Fingerprint {
		t.Fatalf("expected unchanged second run, got %+v", second)
	}

	forced, err := Run(ctx, testArtifacts(), dest, Options{Force: true})
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if forced.Unchanged || forced.EntitiesWritten != 2 {
		t.Fatalf("forced run should rewrite, got %+v", forced)
	}
}
