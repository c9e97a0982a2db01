package store

import "context"

// ArtifactReader reads the two tables produced by the indexing pipeline.
// Implementations return rows in the table's natural order.
type ArtifactReader interface {
	ReadEntities(ctx context.Context) ([]EntityRecord, error)
	ReadReports(ctx context.Context) ([]ReportRecord, error)
	Close(ctx context.Context) error
}

type ArtifactWriter interface {
	ArtifactReader
	EnsureSchema(ctx context.Context) error
	WriteEntities(ctx context.Context, entities []EntityRecord) error
	WriteReports(ctx context.Context, reports []ReportRecord) error
}

const (
	TableEntities = "entities"
	TableReports  = "community_reports"
)
