package graph

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
)

const graphTestTenant = "tenant-graph"

func setupTestGraph(tb testing.TB) (*core.SQLiteStore, *GraphStore, func()) {
	tb.Helper()
	dbPath := fmt.Sprintf("/tmp/test_graph_%d.db", time.Now().UnixNano())

	store, err := core.New(dbPath, 3)
	if err != nil {
		tb.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		tb.Fatalf("failed to init store: %v", err)
	}

	g := NewGraphStore(store)
	if err := g.InitGraphSchema(ctx); err != nil {
		tb.Fatalf("failed to init graph schema: %v", err)
	}

	cleanup := func() {
		_ = store.Close()
		_ = os.Remove(dbPath)
	}
	return store, g, cleanup
}

func TestEntityOperations(t *testing.T) {
	_, g, cleanup := setupTestGraph(t)
	defer cleanup()
	ctx := context.Background()

	entity := &Entity{
		ID:       "e1",
		TenantID: graphTestTenant,
		Name:     "alice",
		Type:     "person",
		Properties: map[string]interface{}{
			"role": "engineer",
		},
	}

	if err := g.UpsertEntity(ctx, entity); err != nil {
		t.Fatalf("failed to upsert entity: %v", err)
	}

	retrieved, err := g.GetEntity(ctx, graphTestTenant, "e1")
	if err != nil {
		t.Fatalf("failed to get entity: %v", err)
	}
	if retrieved.Name != "alice" {
		t.Errorf("expected name 'alice', got %q", retrieved.Name)
	}

	entity.Type = "employee"
	if err := g.UpsertEntity(ctx, entity); err != nil {
		t.Fatalf("failed to update entity: %v", err)
	}
	retrieved, err = g.GetEntity(ctx, graphTestTenant, "e1")
	if err != nil {
		t.Fatalf("failed to get updated entity: %v", err)
	}
	if retrieved.Type != "employee" {
		t.Errorf("expected type 'employee', got %q", retrieved.Type)
	}

	if err := g.DeleteEntity(ctx, graphTestTenant, "e1"); err != nil {
		t.Fatalf("failed to delete entity: %v", err)
	}
	if _, err := g.GetEntity(ctx, graphTestTenant, "e1"); err == nil {
		t.Error("expected error getting deleted entity")
	}
}

func TestEntityNameUniquePerTenant(t *testing.T) {
	_, g, cleanup := setupTestGraph(t)
	defer cleanup()
	ctx := context.Background()

	if err := g.UpsertEntity(ctx, &Entity{ID: "e1", TenantID: graphTestTenant, Name: "alice"}); err != nil {
		t.Fatalf("failed to upsert first entity: %v", err)
	}

	err := g.UpsertEntity(ctx, &Entity{ID: "e2", TenantID: graphTestTenant, Name: "alice"})
	if err == nil {
		t.Error("expected error inserting a second entity with the same name")
	}

	// A different tenant may reuse the same name.
	if err := g.UpsertEntity(ctx, &Entity{ID: "e3", TenantID: "other-tenant", Name: "alice"}); err != nil {
		t.Errorf("expected a different tenant to reuse the name, got error: %v", err)
	}
}

func TestTripleOperationsAndBidirectionalTraversal(t *testing.T) {
	_, g, cleanup := setupTestGraph(t)
	defer cleanup()
	ctx := context.Background()

	alice := &Entity{ID: "alice", TenantID: graphTestTenant, Name: "alice"}
	repoA := &Entity{ID: "repoA", TenantID: graphTestTenant, Name: "repoa"}
	for _, e := range []*Entity{alice, repoA} {
		if err := g.UpsertEntity(ctx, e); err != nil {
			t.Fatalf("failed to upsert entity %s: %v", e.ID, err)
		}
	}

	triple := &GraphTriple{
		ID:         "t1",
		TenantID:   graphTestTenant,
		Subject:    "alice",
		Predicate:  "IMPORTS",
		Object:     "repoA",
		Confidence: 0.9,
		SourceID:   "artifact-1",
	}
	if err := g.UpsertTriple(ctx, triple); err != nil {
		t.Fatalf("failed to upsert triple: %v", err)
	}

	out, err := g.GetTriples(ctx, graphTestTenant, "alice", "out")
	if err != nil {
		t.Fatalf("failed to get outbound triples: %v", err)
	}
	if len(out) != 1 || out[0].Object != "repoA" {
		t.Errorf("expected one outbound triple to repoA, got %+v", out)
	}

	// Bidirectional traversal: traversal from the object must find the subject.
	in, err := g.GetTriples(ctx, graphTestTenant, "repoA", "in")
	if err != nil {
		t.Fatalf("failed to get inbound triples: %v", err)
	}
	if len(in) != 1 || in[0].Subject != "alice" {
		t.Errorf("expected reverse traversal from repoA to find alice, got %+v", in)
	}
}

func TestTripleDedupKeepsHighestConfidence(t *testing.T) {
	_, g, cleanup := setupTestGraph(t)
	defer cleanup()
	ctx := context.Background()

	for _, e := range []*Entity{
		{ID: "a", TenantID: graphTestTenant, Name: "a"},
		{ID: "b", TenantID: graphTestTenant, Name: "b"},
	} {
		if err := g.UpsertEntity(ctx, e); err != nil {
			t.Fatalf("failed to upsert entity: %v", err)
		}
	}

	low := &GraphTriple{ID: "t-low", TenantID: graphTestTenant, Subject: "a", Predicate: "KNOWS", Object: "b", Confidence: 0.4}
	if err := g.UpsertTriple(ctx, low); err != nil {
		t.Fatalf("failed to upsert low-confidence triple: %v", err)
	}

	high := &GraphTriple{ID: "t-high", TenantID: graphTestTenant, Subject: "a", Predicate: "KNOWS", Object: "b", Confidence: 0.95}
	if err := g.UpsertTriple(ctx, high); err != nil {
		t.Fatalf("failed to upsert high-confidence triple: %v", err)
	}

	triples, err := g.GetTriples(ctx, graphTestTenant, "a", "out")
	if err != nil {
		t.Fatalf("failed to get triples: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("expected exactly one (subject,predicate,object) triple to survive, got %d", len(triples))
	}
	if triples[0].Confidence != 0.95 {
		t.Errorf("expected the surviving triple to keep the higher confidence, got %v", triples[0].Confidence)
	}

	// A lower-confidence repeat must not overwrite the winner.
	lowerRepeat := &GraphTriple{ID: "t-low-2", TenantID: graphTestTenant, Subject: "a", Predicate: "KNOWS", Object: "b", Confidence: 0.1}
	if err := g.UpsertTriple(ctx, lowerRepeat); err != nil {
		t.Fatalf("failed to upsert repeated low-confidence triple: %v", err)
	}
	triples, err = g.GetTriples(ctx, graphTestTenant, "a", "out")
	if err != nil {
		t.Fatalf("failed to get triples: %v", err)
	}
	if len(triples) != 1 || triples[0].Confidence != 0.95 {
		t.Errorf("expected confidence to remain 0.95, got %+v", triples)
	}
}
