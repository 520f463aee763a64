package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/graph"
)

// fakeStore is a minimal in-memory ArtifactSource for exercising the
// cascade without a SQLite-backed core.SQLiteStore.
type fakeStore struct {
	byID          map[string]*core.MemoryArtifact
	lexicalResult []core.ScoredArtifact
	vectorResult  []core.ScoredArtifact
	searchErr     error
	searchCalls   int
	failSearches  int // number of leading Search calls that return searchErr

	views map[string]*core.SemanticView // key: artifactID+"|"+modelID
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]*core.MemoryArtifact{}, views: map[string]*core.SemanticView{}}
}

func (f *fakeStore) put(a *core.MemoryArtifact) { f.byID[a.ID] = a }

func (f *fakeStore) Search(ctx context.Context, query []float32, opts core.SearchOptions) ([]core.ScoredArtifact, error) {
	f.searchCalls++
	if f.searchCalls <= f.failSearches {
		return nil, f.searchErr
	}
	return f.vectorResult, nil
}

func (f *fakeStore) HybridSearch(ctx context.Context, vectorQuery []float32, textQuery string, opts core.HybridSearchOptions) ([]core.ScoredArtifact, error) {
	return f.lexicalResult, nil
}

func (f *fakeStore) Get(ctx context.Context, tenantID, id string) (*core.MemoryArtifact, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) GetSemanticView(ctx context.Context, tenantID, artifactID, modelID string) (*core.SemanticView, error) {
	v, ok := f.views[artifactID+"|"+modelID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) UpsertSemanticView(ctx context.Context, tenantID string, v *core.SemanticView) error {
	f.views[v.ArtifactID+"|"+v.ModelID] = v
	return nil
}

type fakeGraph struct {
	entities map[string]*graph.Entity
	bySource map[string][]*graph.GraphTriple
	byEntity map[string][]*graph.GraphTriple
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		entities: map[string]*graph.Entity{},
		bySource: map[string][]*graph.GraphTriple{},
		byEntity: map[string][]*graph.GraphTriple{},
	}
}

func (g *fakeGraph) TriplesBySource(ctx context.Context, tenantID, sourceID string) ([]*graph.GraphTriple, error) {
	return g.bySource[sourceID], nil
}

func (g *fakeGraph) GetEntity(ctx context.Context, tenantID, id string) (*graph.Entity, error) {
	e, ok := g.entities[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return e, nil
}

func (g *fakeGraph) GetTriples(ctx context.Context, tenantID, entityID, direction string) ([]*graph.GraphTriple, error) {
	return g.byEntity[entityID], nil
}

func artifact(id string, importance float64, vec []float32) *core.MemoryArtifact {
	return &core.MemoryArtifact{
		ID: id, TenantID: "t1", Layer: core.LayerEpisodic, Importance: importance,
		Vector: vec, Content: "content " + id, TokenCount: 50,
		CreatedAt: time.Now(), LastUsedAt: time.Now(),
	}
}

func TestRetrieveRejectsMissingTenant(t *testing.T) {
	p := NewPipeline(newFakeStore(), nil, nil, nil)
	_, err := p.Retrieve(context.Background(), Query{Text: "hi"})
	if !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	p := NewPipeline(newFakeStore(), nil, nil, nil)
	_, err := p.Retrieve(context.Background(), Query{TenantID: "t1"})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestRetrieveReturnsEmptyResultWhenNoCandidates(t *testing.T) {
	store := newFakeStore()
	p := NewPipeline(store, nil, nil, nil)
	result, err := p.Retrieve(context.Background(), Query{TenantID: "t1", Text: "anything", KFinal: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Artifacts) != 0 {
		t.Errorf("expected zero candidates to produce an empty (not error) result, got %d", len(result.Artifacts))
	}
}

func TestRetrieveRanksAndReturnsCandidates(t *testing.T) {
	store := newFakeStore()
	a1 := artifact("a1", 0.8, []float32{1, 0, 0})
	a2 := artifact("a2", 0.2, []float32{0, 1, 0})
	store.put(a1)
	store.put(a2)
	store.lexicalResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 1}, {MemoryArtifact: *a2, Score: 0.5}}
	store.vectorResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 0.9}, {MemoryArtifact: *a2, Score: 0.4}}

	p := NewPipeline(store, nil, nil, nil)
	result, err := p.Retrieve(context.Background(), Query{
		TenantID: "t1", Text: "q", ShortVector: []float32{1, 0, 0}, KFinal: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Artifacts) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(result.Artifacts))
	}
	if result.Artifacts[0].ID != "a1" {
		t.Errorf("expected a1 (higher importance + closer vector) to rank first, got %s", result.Artifacts[0].ID)
	}
	if result.Degraded {
		t.Error("expected a fully successful cascade to not be marked degraded")
	}
}

func TestRetrieveAnnotatesSkippedStageOnPersistentStorageFailure(t *testing.T) {
	store := newFakeStore()
	store.searchErr = errors.New("storage timeout")
	store.failSearches = 99 // always fail Search (stage 2)
	a1 := artifact("a1", 0.5, []float32{1, 0, 0})
	store.put(a1)
	store.lexicalResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 1}}
	store.vectorResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 1}}

	p := NewPipeline(store, nil, nil, nil)
	result, err := p.Retrieve(context.Background(), Query{
		TenantID: "t1", Text: "q", ShortVector: []float32{1, 0, 0}, KFinal: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Degraded {
		t.Error("expected a persistently failing stage to mark the result degraded")
	}
	found := false
	for _, s := range result.SkippedStages {
		if s == "short_vector_recall" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected short_vector_recall in skipped_stages, got %v", result.SkippedStages)
	}
	// Lexical-only survivors should still come back.
	if len(result.Artifacts) != 1 {
		t.Errorf("expected the lexical-only survivor to still be returned, got %d artifacts", len(result.Artifacts))
	}
}

func TestRetrieveGraphExpansionAddsResonantNeighbor(t *testing.T) {
	store := newFakeStore()
	a1 := artifact("a1", 0.5, []float32{1, 0, 0})
	a2 := artifact("a2", 0.3, []float32{0, 1, 0})
	store.put(a1)
	store.put(a2)
	store.lexicalResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 1}}

	g := newFakeGraph()
	g.entities["e1"] = &graph.Entity{ID: "e1", TenantID: "t1", Name: "hub", Importance: 0.9}
	g.bySource["a1"] = []*graph.GraphTriple{{ID: "tr1", TenantID: "t1", Subject: "e1", Predicate: "MENTIONS", Object: "e1", Confidence: 0.9, SourceID: "a1"}}
	g.byEntity["e1"] = []*graph.GraphTriple{{ID: "tr2", TenantID: "t1", Subject: "e1", Predicate: "RELATED", Object: "e2", Confidence: 0.9, SourceID: "a2"}}

	p := NewPipeline(store, g, nil, nil)
	result, err := p.Retrieve(context.Background(), Query{
		TenantID: "t1", Text: "q", IncludeGraph: true, GraphDepth: 2, KFinal: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, a := range result.Artifacts {
		if a.ID == "a2" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected graph expansion to pull in a2 via the resonant hub entity, got %+v", result.Artifacts)
	}
}

func TestRetrieveAppliesReflectiveBonus(t *testing.T) {
	newStore := func() *fakeStore {
		store := newFakeStore()
		a1 := artifact("a1", 0.5, []float32{1, 0, 0})
		store.put(a1)
		store.lexicalResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 1}}
		return store
	}
	query := Query{TenantID: "t1", Text: "q", KFinal: 5}

	baseline := NewPipeline(newStore(), nil, nil, nil)
	baselineResult, err := baseline.Retrieve(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boosted := NewPipeline(newStore(), nil, nil, nil)
	boosted.Reflection = constantSignal{ReflectiveSuccess}
	boostedResult, err := boosted.Retrieve(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(baselineResult.Artifacts) != 1 || len(boostedResult.Artifacts) != 1 {
		t.Fatalf("expected one artifact in both results, got %d and %d", len(baselineResult.Artifacts), len(boostedResult.Artifacts))
	}
	if boostedResult.Artifacts[0].Score <= baselineResult.Artifacts[0].Score {
		t.Errorf("expected a success reflection to boost the composite score above the unboosted baseline: boosted=%v baseline=%v", boostedResult.Artifacts[0].Score, baselineResult.Artifacts[0].Score)
	}

	demoted := NewPipeline(newStore(), nil, nil, nil)
	demoted.Reflection = constantSignal{ReflectiveFailure}
	demotedResult, err := demoted.Retrieve(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if demotedResult.Artifacts[0].Score >= baselineResult.Artifacts[0].Score {
		t.Errorf("expected a failure reflection to demote the composite score below the unboosted baseline: demoted=%v baseline=%v", demotedResult.Artifacts[0].Score, baselineResult.Artifacts[0].Score)
	}
}

type constantSignal struct{ signal ReflectiveSignal }

func (c constantSignal) SignalForArtifact(context.Context, string, string) (ReflectiveSignal, error) {
	return c.signal, nil
}

func TestRetrieveAppliesRerankerHook(t *testing.T) {
	store := newFakeStore()
	a1 := artifact("a1", 0.8, []float32{1, 0, 0})
	a2 := artifact("a2", 0.2, []float32{0, 1, 0})
	store.put(a1)
	store.put(a2)
	store.lexicalResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 1}, {MemoryArtifact: *a2, Score: 0.5}}
	store.vectorResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 0.9}, {MemoryArtifact: *a2, Score: 0.4}}

	p := NewPipeline(store, nil, nil, nil)
	p.Reranker = func(ctx context.Context, query string, candidates []core.ScoredArtifact) ([]core.ScoredArtifact, error) {
		// Reverse the order the MMR pass produced.
		out := make([]core.ScoredArtifact, len(candidates))
		for i, c := range candidates {
			out[len(candidates)-1-i] = c
		}
		return out, nil
	}

	result, err := p.Retrieve(context.Background(), Query{
		TenantID: "t1", Text: "q", ShortVector: []float32{1, 0, 0}, KFinal: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Artifacts) != 2 || result.Artifacts[0].ID != "a2" {
		t.Fatalf("expected the reranker hook's reversed order to win, got %+v", result.Artifacts)
	}
}

func TestRetrieveFallsBackToUnrerankedOrderWhenRerankerFails(t *testing.T) {
	store := newFakeStore()
	a1 := artifact("a1", 0.8, []float32{1, 0, 0})
	a2 := artifact("a2", 0.2, []float32{0, 1, 0})
	store.put(a1)
	store.put(a2)
	store.lexicalResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 1}, {MemoryArtifact: *a2, Score: 0.5}}
	store.vectorResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 0.9}, {MemoryArtifact: *a2, Score: 0.4}}

	p := NewPipeline(store, nil, nil, nil)
	p.Reranker = func(ctx context.Context, query string, candidates []core.ScoredArtifact) ([]core.ScoredArtifact, error) {
		return nil, errors.New("reranker unavailable")
	}

	result, err := p.Retrieve(context.Background(), Query{
		TenantID: "t1", Text: "q", ShortVector: []float32{1, 0, 0}, KFinal: 5,
	})
	if err != nil {
		t.Fatalf("expected a failing reranker to fall back, not error out: %v", err)
	}
	if len(result.Artifacts) != 2 || result.Artifacts[0].ID != "a1" {
		t.Fatalf("expected the unreranked MMR order to survive a reranker failure, got %+v", result.Artifacts)
	}
}

// TestRetrieveIsDeterministicOverFrozenStorage exercises §8's "Silicon
// Oracle" property: two Retrieve calls against identical, unchanged storage
// state must produce identical rankings, even when real wall-clock time
// has moved on between the two calls.
func TestRetrieveIsDeterministicOverFrozenStorage(t *testing.T) {
	newStore := func() *fakeStore {
		store := newFakeStore()
		a1 := artifact("a1", 0.8, []float32{1, 0, 0})
		a2 := artifact("a2", 0.3, []float32{0, 1, 0})
		store.put(a1)
		store.put(a2)
		store.lexicalResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 1}, {MemoryArtifact: *a2, Score: 0.5}}
		store.vectorResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 0.9}, {MemoryArtifact: *a2, Score: 0.4}}
		return store
	}
	pinned := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query := Query{TenantID: "t1", Text: "q", ShortVector: []float32{1, 0, 0}, KFinal: 5}

	p1 := NewPipeline(newStore(), nil, nil, nil)
	p1.Now = func() time.Time { return pinned }
	r1, err := p1.Retrieve(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	p2 := NewPipeline(newStore(), nil, nil, nil)
	p2.Now = func() time.Time { return pinned }
	r2, err := p2.Retrieve(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r1.Artifacts) != len(r2.Artifacts) {
		t.Fatalf("expected identical artifact counts, got %d and %d", len(r1.Artifacts), len(r2.Artifacts))
	}
	for i := range r1.Artifacts {
		if r1.Artifacts[i].ID != r2.Artifacts[i].ID {
			t.Errorf("ranking diverged at position %d: %s vs %s", i, r1.Artifacts[i].ID, r2.Artifacts[i].ID)
		}
		if r1.Artifacts[i].Score != r2.Artifacts[i].Score {
			t.Errorf("composite score diverged for %s: %v vs %v", r1.Artifacts[i].ID, r1.Artifacts[i].Score, r2.Artifacts[i].Score)
		}
	}
}

// TestRetrieveAnnotatesDegradedOnMissingVectorIndex exercises §4.4's named
// failure mode: an artifact present in SQL (it has content and survives the
// lexical prefilter) but with no vector of any tier is scored without the
// vector contribution, and the result is annotated degraded rather than
// failing the stage.
func TestRetrieveAnnotatesDegradedOnMissingVectorIndex(t *testing.T) {
	store := newFakeStore()
	a1 := artifact("a1", 0.5, nil) // present in SQL, absent from the vector index
	store.put(a1)
	store.lexicalResult = []core.ScoredArtifact{{MemoryArtifact: *a1, Score: 1}}

	p := NewPipeline(store, nil, nil, nil)
	result, err := p.Retrieve(context.Background(), Query{TenantID: "t1", Text: "q", KFinal: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Artifacts) != 1 {
		t.Fatalf("expected the inconsistent artifact to still be returned, got %+v", result.Artifacts)
	}
	if !result.Degraded {
		t.Error("expected a vector-index inconsistency to mark the result degraded")
	}
	var found bool
	for _, a := range result.Annotations {
		if a.Stage == "long_vector_rerank" && a.Outcome == "degraded" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a degraded long_vector_rerank annotation, got %+v", result.Annotations)
	}
}
