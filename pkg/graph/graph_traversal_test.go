package graph

import (
	"context"
	"testing"
)

func buildLinearChain(t *testing.T, g *GraphStore, ctx context.Context, tenantID string, ids []string, confidences []float64) {
	t.Helper()
	for _, id := range ids {
		if err := g.UpsertEntity(ctx, &Entity{ID: id, TenantID: tenantID, Name: id}); err != nil {
			t.Fatalf("failed to upsert entity %s: %v", id, err)
		}
	}
	for i := 0; i < len(ids)-1; i++ {
		tr := &GraphTriple{
			ID:         "t-" + ids[i] + "-" + ids[i+1],
			TenantID:   tenantID,
			Subject:    ids[i],
			Predicate:  "NEXT",
			Object:     ids[i+1],
			Confidence: confidences[i],
		}
		if err := g.UpsertTriple(ctx, tr); err != nil {
			t.Fatalf("failed to upsert triple %s->%s: %v", ids[i], ids[i+1], err)
		}
	}
}

func TestNeighborsRespectsMaxDepth(t *testing.T) {
	_, g, cleanup := setupTestGraph(t)
	defer cleanup()
	ctx := context.Background()

	buildLinearChain(t, g, ctx, graphTestTenant, []string{"n1", "n2", "n3", "n4"}, []float64{1, 1, 1})

	neighbors, err := g.Neighbors(ctx, graphTestTenant, "n1", TraversalOptions{MaxDepth: 2, Direction: "out"})
	if err != nil {
		t.Fatalf("neighbors failed: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors within depth 2, got %d", len(neighbors))
	}
}

func TestShortestPathBFS(t *testing.T) {
	_, g, cleanup := setupTestGraph(t)
	defer cleanup()
	ctx := context.Background()

	buildLinearChain(t, g, ctx, graphTestTenant, []string{"n1", "n2", "n3"}, []float64{1, 1})

	path, err := g.ShortestPath(ctx, graphTestTenant, "n1", "n3")
	if err != nil {
		t.Fatalf("shortest path failed: %v", err)
	}
	if path.Distance != 2 {
		t.Errorf("expected distance 2, got %d", path.Distance)
	}
	if len(path.Entities) != 3 || path.Entities[0].ID != "n1" || path.Entities[2].ID != "n3" {
		t.Errorf("unexpected path entities: %+v", path.Entities)
	}
}

func TestShortestWeightedPathPrefersHighConfidence(t *testing.T) {
	_, g, cleanup := setupTestGraph(t)
	defer cleanup()
	ctx := context.Background()

	for _, e := range []*Entity{
		{ID: "start", TenantID: graphTestTenant, Name: "start"},
		{ID: "viaStrong", TenantID: graphTestTenant, Name: "viastrong"},
		{ID: "viaWeak", TenantID: graphTestTenant, Name: "viaweak"},
		{ID: "end", TenantID: graphTestTenant, Name: "end"},
	} {
		if err := g.UpsertEntity(ctx, e); err != nil {
			t.Fatalf("failed to upsert entity: %v", err)
		}
	}

	triples := []*GraphTriple{
		{ID: "t1", TenantID: graphTestTenant, Subject: "start", Predicate: "LINK", Object: "viaStrong", Confidence: 0.99},
		{ID: "t2", TenantID: graphTestTenant, Subject: "viaStrong", Predicate: "LINK", Object: "end", Confidence: 0.99},
		{ID: "t3", TenantID: graphTestTenant, Subject: "start", Predicate: "LINK", Object: "viaWeak", Confidence: 0.1},
		{ID: "t4", TenantID: graphTestTenant, Subject: "viaWeak", Predicate: "LINK", Object: "end", Confidence: 0.1},
	}
	for _, tr := range triples {
		if err := g.UpsertTriple(ctx, tr); err != nil {
			t.Fatalf("failed to upsert triple %s: %v", tr.ID, err)
		}
	}

	path, err := g.ShortestWeightedPath(ctx, graphTestTenant, "start", "end")
	if err != nil {
		t.Fatalf("shortest weighted path failed: %v", err)
	}
	if len(path.Entities) != 3 || path.Entities[1].ID != "viaStrong" {
		t.Errorf("expected the high-confidence path via viaStrong, got %+v", path.Entities)
	}
}

func TestSubgraphOnlyIncludesInternalTriples(t *testing.T) {
	_, g, cleanup := setupTestGraph(t)
	defer cleanup()
	ctx := context.Background()

	buildLinearChain(t, g, ctx, graphTestTenant, []string{"n1", "n2", "n3"}, []float64{1, 1})

	sub, err := g.Subgraph(ctx, graphTestTenant, []string{"n1", "n2"})
	if err != nil {
		t.Fatalf("subgraph failed: %v", err)
	}
	if len(sub.Entities) != 2 {
		t.Errorf("expected 2 entities, got %d", len(sub.Entities))
	}
	if len(sub.Triples) != 1 {
		t.Errorf("expected 1 internal triple (n1->n2), got %d", len(sub.Triples))
	}
}

func TestConnected(t *testing.T) {
	_, g, cleanup := setupTestGraph(t)
	defer cleanup()
	ctx := context.Background()

	buildLinearChain(t, g, ctx, graphTestTenant, []string{"n1", "n2", "n3", "n4"}, []float64{1, 1, 1})
	if err := g.UpsertEntity(ctx, &Entity{ID: "isolated", TenantID: graphTestTenant, Name: "isolated"}); err != nil {
		t.Fatalf("failed to upsert isolated entity: %v", err)
	}

	connected, err := g.Connected(ctx, graphTestTenant, "n1", "n4", 0)
	if err != nil {
		t.Fatalf("connected failed: %v", err)
	}
	if !connected {
		t.Error("expected n1 and n4 to be connected")
	}

	connected, err = g.Connected(ctx, graphTestTenant, "n1", "isolated", 0)
	if err != nil {
		t.Fatalf("connected failed: %v", err)
	}
	if connected {
		t.Error("expected n1 and isolated to not be connected")
	}

	connected, err = g.Connected(ctx, graphTestTenant, "n1", "n4", 1)
	if err != nil {
		t.Fatalf("connected failed: %v", err)
	}
	if connected {
		t.Error("expected n1 and n4 to not be connected within depth 1")
	}
}
