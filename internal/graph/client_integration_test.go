//go:build integration

package graph

import (
	"context"
	"os"
	"reflect"
	"testing"

	"globalsearch/internal/store"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	uri := os.Getenv("GLOBALSEARCH_TEST_NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	ctx := context.Background()
	client, err := NewClient(ctx, uri, "neo4j", "changeme", "neo4j")
	if err != nil {
		t.Fatalf("connecting to test neo4j: %v", err)
	}
	t.Cleanup(func() { _ = client.Close(ctx) })
	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return client
}

func TestNewClient_BadCredentials(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, "bolt://localhost:7687", "neo4j", "wrong", "neo4j")
	if err == nil {
		_ = client.Close(ctx)
		t.Fatalf("expected error")
	}
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)

	reports := []store.ReportRecord{
		{CommunityID: "5", Level: 0, Title: "Five", Summary: "s5", Rating: 3, Content: "c5"},
		{CommunityID: "1", Level: 1, Title: "One", Summary: "s1", Rating: 9.5, Content: "c1"},
	}
	entities := []store.EntityRecord{
		{ID: "e1", Title: "Alice", Communities: []store.CommunityID{"5", "1"}, TextUnitIDs: []string{"t1"}, Degree: 1},
		{ID: "e2", Title: "Bob", Communities: []store.CommunityID{"1"}, TextUnitIDs: []string{}},
	}
	if err := client.WriteReports(ctx, reports); err != nil {
		t.Fatalf("write reports: %v", err)
	}
	if err := client.WriteEntities(ctx, entities); err != nil {
		t.Fatalf("write entities: %v", err)
	}

	gotReports, err := client.ReadReports(ctx)
	if err != nil {
		t.Fatalf("read reports: %v", err)
	}
	if !reflect.DeepEqual(gotReports, reports) {
		t.Fatalf("reports differ: %+v", gotReports)
	}
	gotEntities, err := client.ReadEntities(ctx)
	if err != nil {
		t.Fatalf("read entities: %v", err)
	}
	if !reflect.DeepEqual(gotEntities, entities) {
		t.Fatalf("entities differ: %+v", gotEntities)
	}
}

func TestIsDSN(t *testing.T) {
	for _, dsn := range []string{"bolt://localhost:7687", "neo4j+s://db.example.com"} {
		if !IsDSN(dsn) {
			t.Fatalf("expected %s to be a neo4j DSN", dsn)
		}
	}
	if IsDSN("postgres://localhost") {
		t.Fatalf("postgres DSN should not match")
	}
}
