package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"globalsearch/internal/store"
)

func (c *Client) ReadEntities(ctx context.Context) ([]store.EntityRecord, error) {
	if err := c.checkTable(ctx, store.TableEntities); err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx, `
SELECT id, title, type, description, communities, text_unit_ids, degree
FROM entities
ORDER BY row_order`)
	if err != nil {
		return nil, store.LoadError(store.TableEntities, fmt.Errorf("querying entities: %w", err))
	}
	defer rows.Close()

	var entities []store.EntityRecord
	for rows.Next() {
		var e store.EntityRecord
		var communities []string
		if err := rows.Scan(&e.ID, &e.Title, &e.Type, &e.Description, &communities, &e.TextUnitIDs, &e.Degree); err != nil {
			return nil, store.LoadError(store.TableEntities, fmt.Errorf("%w: %v", store.ErrMalformedRow, err))
		}
		e.Communities = store.CommunityIDsFromStrings(communities)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.LoadError(store.TableEntities, fmt.Errorf("iterating entities: %w", err))
	}
	return entities, nil
}

func (c *Client) ReadReports(ctx context.Context) ([]store.ReportRecord, error) {
	if err := c.checkTable(ctx, store.TableReports); err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx, `
SELECT community_id, level, title, summary, rating, content
FROM community_reports
ORDER BY row_order`)
	if err != nil {
		return nil, store.LoadError(store.TableReports, fmt.Errorf("querying community reports: %w", err))
	}
	defer rows.Close()

	var reports []store.ReportRecord
	for rows.Next() {
		var r store.ReportRecord
		var id string
		if err := rows.Scan(&id, &r.Level, &r.Title, &r.Summary, &r.Rating, &r.Content); err != nil {
			return nil, store.LoadError(store.TableReports, fmt.Errorf("%w: %v", store.ErrMalformedRow, err))
		}
		r.CommunityID = store.CommunityID(id)
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.LoadError(store.TableReports, fmt.Errorf("iterating community reports: %w", err))
	}
	return reports, nil
}

func (c *Client) checkTable(ctx context.Context, table string) error {
	columns, err := c.tableColumns(ctx, table)
	if err != nil {
		return store.LoadError(table, err)
	}
	if len(columns) == 0 {
		return store.LoadError(table, fmt.Errorf("%w: %s", store.ErrMissingTable, table))
	}
	return store.CheckColumns(table, columns)
}

func (c *Client) WriteEntities(ctx context.Context, entities []store.EntityRecord) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE entities RESTART IDENTITY"); err != nil {
		return fmt.Errorf("clearing entities: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entities {
		units := e.TextUnitIDs
		if units == nil {
			units = []string{}
		}
		batch.Queue(`
INSERT INTO entities (id, title, type, description, communities, text_unit_ids, degree)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.Title, e.Type, e.Description, store.CommunityIDStrings(e.Communities), units, e.Degree)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting entities: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing entities: %w", err)
	}
	return nil
}

func (c *Client) WriteReports(ctx context.Context, reports []store.ReportRecord) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE community_reports RESTART IDENTITY"); err != nil {
		return fmt.Errorf("clearing community reports: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range reports {
		batch.Queue(`
INSERT INTO community_reports (community_id, level, title, summary, rating, content)
VALUES ($1, $2, $3, $4, $5, $6)`,
			string(r.CommunityID), r.Level, r.Title, r.Summary, r.Rating, r.Content)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting community reports: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing community reports: %w", err)
	}
	return nil
}
