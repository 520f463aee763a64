package retrieval

import (
	"context"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/graph"
)

// GraphSource is the narrow slice of *graph.GraphStore the graph-expansion
// stage needs. Declared as an interface so tests can substitute a fake
// without standing up a SQLite-backed GraphStore.
type GraphSource interface {
	TriplesBySource(ctx context.Context, tenantID, sourceID string) ([]*graph.GraphTriple, error)
	GetEntity(ctx context.Context, tenantID, id string) (*graph.Entity, error)
	GetTriples(ctx context.Context, tenantID, entityID, direction string) ([]*graph.GraphTriple, error)
}

// ArtifactSource is the narrow slice of core.ArtifactStore the cascade
// needs: lexical/vector search and single-artifact lookup for graph
// expansion. A deliberately small interface (per §9's "narrow capability
// interface" rule) so tests can substitute an in-memory fake instead of a
// full SQLite-backed core.ArtifactStore.
type ArtifactSource interface {
	Search(ctx context.Context, query []float32, opts core.SearchOptions) ([]core.ScoredArtifact, error)
	HybridSearch(ctx context.Context, vectorQuery []float32, textQuery string, opts core.HybridSearchOptions) ([]core.ScoredArtifact, error)
	Get(ctx context.Context, tenantID, id string) (*core.MemoryArtifact, error)

	// GetSemanticView/UpsertSemanticView back stage 3's long-embedding
	// cache (§3 SemanticView: "local cache, never canonical truth").
	GetSemanticView(ctx context.Context, tenantID, artifactID, modelID string) (*core.SemanticView, error)
	UpsertSemanticView(ctx context.Context, tenantID string, v *core.SemanticView) error
}

// EmbeddingProvider is the outbound "embed(text, model) -> vector"
// collaborator (§6). Used by stage 3 to fetch the expensive long-tier
// embedding for surviving candidates; callers that only operate on
// precomputed vectors can leave this nil, which degrades stage 3's
// relevance computation to the short vector already on hand.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text, modelTier string) ([]float32, error)
}

// ModelTierLong is the tier name stage 3 requests from EmbeddingProvider.
const ModelTierLong = "long"

// ReflectiveSignal classifies whether a reflection citing a survivor as
// provenance reported success or failure.
type ReflectiveSignal int

const (
	ReflectiveNone ReflectiveSignal = iota
	ReflectiveSuccess
	ReflectiveFailure
)

// ReflectiveBonusSource answers stage 5's "does any reflection in scope
// cite this artifact, and with what outcome" question.
// pkg/reflection.ReflectionIndex implements it; NewPipeline defaults to
// NoReflection, a no-op, until a caller wires a real source in.
type ReflectiveBonusSource interface {
	SignalForArtifact(ctx context.Context, tenantID, artifactID string) (ReflectiveSignal, error)
}

// NoReflection is a ReflectiveBonusSource that never finds a citing
// reflection, used when the caller hasn't wired pkg/reflection yet.
type NoReflection struct{}

func (NoReflection) SignalForArtifact(context.Context, string, string) (ReflectiveSignal, error) {
	return ReflectiveNone, nil
}
