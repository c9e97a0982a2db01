package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entities (
    row_order     BIGSERIAL,
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL DEFAULT '',
    type          TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    communities   TEXT[] NOT NULL DEFAULT '{}',
    text_unit_ids TEXT[] NOT NULL DEFAULT '{}',
    degree        INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS community_reports (
    row_order    BIGSERIAL,
    community_id TEXT PRIMARY KEY,
    level        INTEGER NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
    content      TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_community_reports_level ON community_reports (level)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_communities ON entities USING GIN (communities)`,
	}

	for _, stmt := range statements {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}
	return nil
}

func (c *Client) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := c.pool.Query(ctx, `
SELECT column_name
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	return columns, nil
}
