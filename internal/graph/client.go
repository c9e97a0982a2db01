// Package graph serves community artifacts stored in Neo4j. Entities link to
// their communities with IN_COMMUNITY relationships and each Community node
// carries its report.
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"globalsearch/internal/store"
)

var _ store.ArtifactWriter = (*Client)(nil)

type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewClient(ctx context.Context, uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}

	return &Client{driver: driver, database: database}, nil
}

// IsDSN reports whether dsn addresses a Neo4j server.
func IsDSN(dsn string) bool {
	for _, scheme := range []string{"neo4j://", "neo4j+s://", "neo4j+ssc://", "bolt://", "bolt+s://", "bolt+ssc://"} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

func (c *Client) EnsureSchema(ctx context.Context) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT community_unique_id IF NOT EXISTS
FOR (c:Community) REQUIRE c.community_id IS UNIQUE`,
		`CREATE CONSTRAINT entity_unique_id IF NOT EXISTS
FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
		`CREATE INDEX community_level IF NOT EXISTS FOR (c:Community) ON (c.level)`,
	}

	for _, stmt := range statements {
		if _, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, stmt, nil)
			return nil, err
		}); err != nil {
			return fmt.Errorf("ensuring indexes: %w", err)
		}
	}

	return nil
}
