package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"globalsearch/internal/store"
)

func (c *Client) ReadEntities(ctx context.Context) ([]store.EntityRecord, error) {
	if err := c.checkTable(ctx, store.TableEntities); err != nil {
		return nil, err
	}

	// Optional columns are read only when present so slim exports still load.
	columns, err := c.tableColumns(ctx, store.TableEntities)
	if err != nil {
		return nil, store.LoadError(store.TableEntities, err)
	}
	selectCols := "id, communities"
	optional := []string{"title", "type", "description", "text_unit_ids", "degree"}
	present := make(map[string]bool, len(columns))
	for _, col := range columns {
		present[col] = true
	}
	for _, col := range optional {
		if present[col] {
			selectCols += ", " + col
		} else {
			selectCols += ", NULL AS " + col
		}
	}

	rows, err := c.db.QueryContext(ctx, "SELECT "+selectCols+" FROM entities ORDER BY rowid")
	if err != nil {
		return nil, store.LoadError(store.TableEntities, fmt.Errorf("querying entities: %w", err))
	}
	defer rows.Close()

	var entities []store.EntityRecord
	for rows.Next() {
		var (
			id                                    string
			communities                           *string
			title, entityType, description, units *string
			degree                                *int64
		)
		if err := rows.Scan(&id, &communities, &title, &entityType, &description, &units, &degree); err != nil {
			return nil, store.LoadError(store.TableEntities, fmt.Errorf("%w: %v", store.ErrMalformedRow, err))
		}
		ids, err := decodeCommunityIDs(deref(communities))
		if err != nil {
			return nil, store.LoadError(store.TableEntities, fmt.Errorf("%w: entity %s communities: %v", store.ErrMalformedRow, id, err))
		}
		var textUnits []string
		if units != nil && *units != "" {
			if err := json.Unmarshal([]byte(*units), &textUnits); err != nil {
				return nil, store.LoadError(store.TableEntities, fmt.Errorf("%w: entity %s text_unit_ids: %v", store.ErrMalformedRow, id, err))
			}
		}
		entity := store.EntityRecord{
			ID:          id,
			Title:       deref(title),
			Type:        deref(entityType),
			Description: deref(description),
			Communities: ids,
			TextUnitIDs: textUnits,
		}
		if degree != nil {
			entity.Degree = int(*degree)
		}
		entities = append(entities, entity)
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

	rows, err := c.db.QueryContext(ctx, `
	SELECT community_id, level, title, summary, rating, content
	FROM community_reports
	ORDER BY rowid`)
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
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entities"); err != nil {
		return fmt.Errorf("clearing entities: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO entities (id, title, type, description, communities, text_unit_ids, degree)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entity insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		communitiesJSON, err := json.Marshal(store.CommunityIDStrings(e.Communities))
		if err != nil {
			return fmt.Errorf("marshaling communities: %w", err)
		}
		units := e.TextUnitIDs
		if units == nil {
			units = []string{}
		}
		unitsJSON, err := json.Marshal(units)
		if err != nil {
			return fmt.Errorf("marshaling text units: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Title, e.Type, e.Description, string(communitiesJSON), string(unitsJSON), e.Degree); err != nil {
			return fmt.Errorf("inserting entity %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entities: %w", err)
	}
	return nil
}

func (c *Client) WriteReports(ctx context.Context, reports []store.ReportRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM community_reports"); err != nil {
		return fmt.Errorf("clearing community reports: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO community_reports (community_id, level, title, summary, rating, content)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing report insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range reports {
		if _, err := stmt.ExecContext(ctx, string(r.CommunityID), r.Level, r.Title, r.Summary, r.Rating, r.Content); err != nil {
			return fmt.Errorf("inserting report %s: %w", r.CommunityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing community reports: %w", err)
	}
	return nil
}

// decodeCommunityIDs accepts a JSON array of strings or integers.
func decodeCommunityIDs(raw string) ([]store.CommunityID, error) {
	if raw == "" {
		return nil, nil
	}
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	ids := make([]store.CommunityID, 0, len(values))
	for _, value := range values {
		id, err := store.ParseCommunityID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
