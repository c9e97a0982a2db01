package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"globalsearch/internal/store"
)

const writeBatchSize = 500

func (c *Client) ReadEntities(ctx context.Context) ([]store.EntityRecord, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	query := `
MATCH (e:Entity)
OPTIONAL MATCH (e)-[r:IN_COMMUNITY]->(c:Community)
WITH e, c, r ORDER BY r.position
RETURN e, collect(c.community_id) AS communities
ORDER BY e.row_order, e.id`

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		var entities []store.EntityRecord
		for res.Next(ctx) {
			record := res.Record()
			value, _ := record.Get("e")
			node, ok := value.(neo4j.Node)
			if !ok {
				continue
			}
			if _, ok := node.Props["id"]; !ok {
				return nil, fmt.Errorf("%w: id on Entity node %s", store.ErrMissingColumn, node.ElementId)
			}
			rawCommunities, _ := record.Get("communities")
			communities, err := toCommunityIDs(rawCommunities)
			if err != nil {
				return nil, fmt.Errorf("%w: entity %v: %v", store.ErrMalformedRow, node.Props["id"], err)
			}
			entities = append(entities, store.EntityRecord{
				ID:          toString(node.Props["id"]),
				Title:       toString(node.Props["title"]),
				Type:        toString(node.Props["type"]),
				Description: toString(node.Props["description"]),
				Communities: communities,
				TextUnitIDs: toStringSlice(node.Props["text_unit_ids"]),
				Degree:      int(toInt64(node.Props["degree"])),
			})
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return entities, nil
	})
	if err != nil {
		return nil, store.LoadError(store.TableEntities, fmt.Errorf("reading entities: %w", err))
	}

	return result.([]store.EntityRecord), nil
}

func (c *Client) ReadReports(ctx context.Context) ([]store.ReportRecord, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	query := "MATCH (c:Community) RETURN c ORDER BY c.row_order, c.community_id"

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		var reports []store.ReportRecord
		for res.Next(ctx) {
			value, _ := res.Record().Get("c")
			node, ok := value.(neo4j.Node)
			if !ok {
				continue
			}
			present := make([]string, 0, len(node.Props))
			for key := range node.Props {
				present = append(present, key)
			}
			if err := store.CheckColumns(store.TableReports, present); err != nil {
				return nil, err
			}
			id, err := store.ParseCommunityID(node.Props["community_id"])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", store.ErrMalformedRow, err)
			}
			reports = append(reports, store.ReportRecord{
				CommunityID: id,
				Level:       int(toInt64(node.Props["level"])),
				Title:       toString(node.Props["title"]),
				Summary:     toString(node.Props["summary"]),
				Rating:      toFloat64(node.Props["rating"]),
				Content:     toString(node.Props["content"]),
			})
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return reports, nil
	})
	if err != nil {
		return nil, store.LoadError(store.TableReports, fmt.Errorf("reading community reports: %w", err))
	}

	return result.([]store.ReportRecord), nil
}

func (c *Client) WriteReports(ctx context.Context, reports []store.ReportRecord) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	if _, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, "MATCH (c:Community) DETACH DELETE c", nil)
		return nil, err
	}); err != nil {
		return fmt.Errorf("clearing communities: %w", err)
	}

	rows := make([]map[string]any, 0, len(reports))
	for i, r := range reports {
		rows = append(rows, map[string]any{
			"community_id": string(r.CommunityID),
			"level":        int64(r.Level),
			"title":        r.Title,
			"summary":      r.Summary,
			"rating":       r.Rating,
			"content":      r.Content,
			"row_order":    int64(i),
		})
	}

	query := `
UNWIND $rows AS row
CREATE (c:Community)
SET c = row`
	return c.writeBatches(ctx, session, query, rows, "writing communities")
}

// WriteEntities links entities to existing Community nodes, so reports must be
// written first.
func (c *Client) WriteEntities(ctx context.Context, entities []store.EntityRecord) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	if _, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, "MATCH (e:Entity) DETACH DELETE e", nil)
		return nil, err
	}); err != nil {
		return fmt.Errorf("clearing entities: %w", err)
	}

	rows := make([]map[string]any, 0, len(entities))
	for i, e := range entities {
		units := e.TextUnitIDs
		if units == nil {
			units = []string{}
		}
		rows = append(rows, map[string]any{
			"id":            e.ID,
			"title":         e.Title,
			"type":          e.Type,
			"description":   e.Description,
			"text_unit_ids": units,
			"degree":        int64(e.Degree),
			"row_order":     int64(i),
			"communities":   store.CommunityIDStrings(e.Communities),
		})
	}

	query := `
UNWIND $rows AS row
CREATE (e:Entity {id: row.id, title: row.title, type: row.type, description: row.description,
                  text_unit_ids: row.text_unit_ids, degree: row.degree, row_order: row.row_order})
WITH e, row
UNWIND range(0, size(row.communities) - 1) AS position
MATCH (c:Community {community_id: row.communities[position]})
CREATE (e)-[:IN_COMMUNITY {position: position}]->(c)`
	return c.writeBatches(ctx, session, query, rows, "writing entities")
}

func (c *Client) writeBatches(ctx context.Context, session neo4j.SessionWithContext, query string, rows []map[string]any, action string) error {
	for start := 0; start < len(rows); start += writeBatchSize {
		end := start + writeBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		if _, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, map[string]any{"rows": batch})
			return nil, err
		}); err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
	}
	return nil
}

func toCommunityIDs(value any) ([]store.CommunityID, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, nil
	}
	ids := make([]store.CommunityID, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		id, err := store.ParseCommunityID(item)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func toStringSlice(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func toFloat64(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}
