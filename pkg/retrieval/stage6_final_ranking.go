package retrieval

import (
	"context"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/scoring"
)

// RerankerFn is an optional caller-supplied cross-encoder hook applied after
// the MMR diversity re-order (§4.4 stage 6), grounded on the teacher's
// RerankerFn. A nil Reranker leaves the MMR order untouched; a non-nil one
// that errors falls back to the unreranked order rather than failing the
// whole retrieval.
type RerankerFn func(ctx context.Context, query string, candidates []core.ScoredArtifact) ([]core.ScoredArtifact, error)

// applyReranker runs Reranker when configured, logging and falling back to
// the unreranked order on error instead of surfacing it to the caller.
func (p *Pipeline) applyReranker(ctx context.Context, query string, artifacts []core.ScoredArtifact) []core.ScoredArtifact {
	if p.Reranker == nil {
		return artifacts
	}
	reranked, err := p.Reranker(ctx, query, artifacts)
	if err != nil {
		p.Logger.Warn("retrieval: reranker hook failed, falling back to unreranked order", "error", err)
		return artifacts
	}
	return reranked
}

// diversityRerank implements §4.4 stage 6's MMR-style diversity re-order,
// grounded on scoring.MMRRerank (itself adapted from the teacher's
// DiversityReranker). Candidates must already be sorted by composite score;
// the MMR pass only reorders, it never drops a candidate.
func (p *Pipeline) diversityRerank(candidates []*candidate, lambda float64) []*candidate {
	if len(candidates) == 0 {
		return candidates
	}

	items := make([]scoring.MMRItem, len(candidates))
	byID := make(map[string]*candidate, len(candidates))
	for i, c := range candidates {
		items[i] = scoring.MMRItem{ID: c.artifact.ID, Relevance: c.composite, Vector: c.artifact.Vector}
		byID[c.artifact.ID] = c
	}

	reordered := scoring.MMRRerank(items, lambda)
	out := make([]*candidate, len(reordered))
	for i, item := range reordered {
		out[i] = byID[item.ID]
	}
	return out
}
