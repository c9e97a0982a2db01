package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is one consistent read of both artifact tables. It is never
// modified after Load returns it.
type Snapshot struct {
	Entities []EntityRecord
	Reports  []ReportRecord
	LoadedAt time.Time
}

// SnapshotSource is implemented by readers that can hand out both tables
// from a single consistent read.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

func Load(ctx context.Context, reader ArtifactReader) (*Snapshot, error) {
	if src, ok := reader.(SnapshotSource); ok {
		return src.Snapshot(ctx)
	}
	entities, err := reader.ReadEntities(ctx)
	if err != nil {
		return nil, LoadError(TableEntities, err)
	}
	reports, err := reader.ReadReports(ctx)
	if err != nil {
		return nil, LoadError(TableReports, err)
	}
	return &Snapshot{Entities: entities, Reports: reports, LoadedAt: time.Now()}, nil
}

var _ ArtifactReader = (*Cache)(nil)

// Cache serves artifacts from an in-memory snapshot shared across queries.
// Refresh replaces the snapshot wholesale; readers holding the previous one
// keep a complete, unchanged copy.
type Cache struct {
	source  ArtifactReader
	current atomic.Pointer[Snapshot]
	loadMu  sync.Mutex
}

func NewCache(source ArtifactReader) *Cache {
	return &Cache{source: source}
}

func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}
	snap, err := Load(ctx, c.source)
	if err != nil {
		return nil, err
	}
	c.current.Store(snap)
	return snap, nil
}

func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	snap, err := Load(ctx, c.source)
	if err != nil {
		return nil, err
	}
	c.current.Store(snap)
	return snap, nil
}

// ReadEntities and ReadReports each answer from one snapshot. Callers that
// need both tables from the same snapshot should use Snapshot.
func (c *Cache) ReadEntities(ctx context.Context) ([]EntityRecord, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Entities, nil
}

func (c *Cache) ReadReports(ctx context.Context) ([]ReportRecord, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Reports, nil
}

func (c *Cache) Close(ctx context.Context) error {
	return c.source.Close(ctx)
}
