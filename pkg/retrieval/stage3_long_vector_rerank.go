package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/scoring"
)

// longVectorRerank runs Match-2: for each survivor, compute or fetch the
// expensive embedding and rescore with the full six-factor composite. When
// no EmbeddingProvider is wired, relevance falls back to the short vector
// already on the artifact — this is the "degrades to pure lexical + graph"
// path for stages 2/3 when an embedding model is unavailable.
//
// It also detects §4.4's named vector-index inconsistency: a candidate
// present in SQL (it has content, it survived stage 1) but with no short
// vector attached, meaning the ANN index never indexed it. Rather than fail
// the stage, those candidates are scored with a zero relevance contribution
// and the caller is told to annotate the result as degraded.
func (p *Pipeline) longVectorRerank(ctx context.Context, q Query, weights scoring.ScoringWeights, candidates []*candidate) (degradedReason string, err error) {
	if len(candidates) == 0 {
		return "", nil
	}

	var queryLong []float32
	if p.Embedder != nil && q.Text != "" {
		v, err := p.Embedder.Embed(ctx, q.Text, ModelTierLong)
		if err == nil {
			queryLong = v
		}
	}

	batch := make([][]float32, len(candidates))
	for i, c := range candidates {
		batch[i] = c.artifact.Vector
	}
	diversity := scoring.Diversity(batch)

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	nowT := now()

	var inconsistent int
	for i, c := range candidates {
		artifactVec := c.artifact.Vector
		queryVec := q.ShortVector
		if queryLong != nil && p.Embedder != nil {
			if longVec, err := p.longVector(ctx, q.TenantID, &c.artifact); err == nil {
				artifactVec = longVec
				queryVec = queryLong
			}
		}

		var relevance float64
		if len(artifactVec) == 0 {
			// Present in SQL (it has content and survived stage 1) but no
			// vector of any tier could be obtained: the ANN index never
			// indexed this artifact. Score it without the vector
			// contribution rather than failing the stage.
			inconsistent++
		} else if r, err := scoring.Relevance(queryVec, artifactVec, c.artifact.Importance); err == nil {
			relevance = r
		}

		centrality := p.artifactCentrality(ctx, q.TenantID, c.artifact.ID)

		c.sub = scoring.SubScores{
			Relevance:  relevance,
			Importance: c.artifact.Importance,
			Recency:    scoring.Recency(0.1, daysSince(nowT, c.artifact.LastUsedAt), c.artifact.UsageCount),
			Centrality: centrality,
			Diversity:  diversity[i],
			Density:    scoring.Density(c.artifact.TokenCount),
		}
		c.composite = scoring.Composite(c.sub, weights)
	}

	if inconsistent > 0 {
		return fmt.Sprintf("%d of %d candidates had no indexed vector (SQL/vector-index inconsistency)", inconsistent, len(candidates)), nil
	}
	return "", nil
}

// longVector returns a's long-tier embedding, consulting the SemanticView
// cache before paying to re-embed raw content (§3: "local cache, never
// canonical truth"). A cache miss embeds once and writes the view back so
// the next retrieval over the same artifact and model is free.
func (p *Pipeline) longVector(ctx context.Context, tenantID string, a *core.MemoryArtifact) ([]float32, error) {
	if view, err := p.Store.GetSemanticView(ctx, tenantID, a.ID, ModelTierLong); err == nil {
		return view.Vector, nil
	}
	// Cache miss or lookup error (not just ErrNotFound): fall through and
	// embed directly rather than erroring the stage.

	longVec, err := p.Embedder.Embed(ctx, a.Content, ModelTierLong)
	if err != nil {
		return nil, err
	}

	_ = p.Store.UpsertSemanticView(ctx, tenantID, &core.SemanticView{
		ArtifactID: a.ID,
		ModelID:    ModelTierLong,
		Vector:     longVec,
	})

	return longVec, nil
}

// artifactCentrality looks up the entities an artifact mentions (via the
// triples attributed to it as their source) and returns the maximum
// per-entity importance as the artifact's centrality sub-score. Returns 0
// if no graph is wired or the artifact mentions nothing.
func (p *Pipeline) artifactCentrality(ctx context.Context, tenantID, artifactID string) float64 {
	if p.Graph == nil {
		return 0
	}
	triples, err := p.Graph.TriplesBySource(ctx, tenantID, artifactID)
	if err != nil || len(triples) == 0 {
		return 0
	}

	seen := make(map[string]bool)
	var scores []float64
	for _, tr := range triples {
		for _, entityID := range []string{tr.Subject, tr.Object} {
			if seen[entityID] {
				continue
			}
			seen[entityID] = true
			if e, err := p.Graph.GetEntity(ctx, tenantID, entityID); err == nil && e != nil {
				scores = append(scores, e.Importance)
			}
		}
	}
	return scoring.ArtifactCentrality(scores)
}
