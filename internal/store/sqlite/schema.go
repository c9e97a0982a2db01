package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS entities (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL DEFAULT '',
		type          TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		communities   TEXT NOT NULL DEFAULT '[]',
		text_unit_ids TEXT NOT NULL DEFAULT '[]',
		degree        INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS community_reports (
		community_id TEXT PRIMARY KEY,
		level        INTEGER NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		summary      TEXT NOT NULL DEFAULT '',
		rating       REAL NOT NULL DEFAULT 0,
		content      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_community_reports_level ON community_reports (level);
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}

	return statements
}

// tableColumns lists the columns of table, or none when it does not exist.
func (c *Client) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
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
