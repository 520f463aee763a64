package retrieval

import (
	"context"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
)

// shortVectorRecall runs Match-1's ANN counterpart: nearest-neighbor search
// against the cheap/local embedding tier, keeping the top k.
func (p *Pipeline) shortVectorRecall(ctx context.Context, q Query, k int) ([]core.ScoredArtifact, error) {
	opts := core.SearchOptions{
		TenantID: q.TenantID,
		Project:  q.Project,
		Layers:   q.Layers,
		TopK:     k,
		Filter:   q.Filter,
	}
	return p.Store.Search(ctx, q.ShortVector, opts)
}

// intersectOrUnion implements §4.4 stage 2's "intersect with stage 1 by
// artifact id; union-fallback if intersection < k_final" rule. When either
// side is empty (a skipped or never-run stage) the other side passes
// through unchanged, matching "degrades to pure lexical + graph" when an
// embedding model is unavailable.
func intersectOrUnion(a, b []core.ScoredArtifact, kFinal int) []core.ScoredArtifact {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}

	bByID := make(map[string]core.ScoredArtifact, len(b))
	for _, x := range b {
		bByID[x.ID] = x
	}

	var intersection []core.ScoredArtifact
	for _, x := range a {
		if _, ok := bByID[x.ID]; ok {
			intersection = append(intersection, x)
		}
	}
	if len(intersection) >= kFinal {
		return intersection
	}

	seen := make(map[string]bool, len(intersection))
	union := make([]core.ScoredArtifact, 0, len(a)+len(b))
	for _, x := range intersection {
		seen[x.ID] = true
		union = append(union, x)
	}
	for _, x := range a {
		if !seen[x.ID] {
			seen[x.ID] = true
			union = append(union, x)
		}
	}
	for _, x := range b {
		if !seen[x.ID] {
			seen[x.ID] = true
			union = append(union, x)
		}
	}
	return union
}
