package retrieval

import (
	"context"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/scoring"
)

// graphExpansion implements §4.4 stage 4 ("resonance induction"): for each
// survivor, walk the knowledge graph up to q.GraphDepth hops along
// confidence >= cfg.GraphConfidence relations, and pull in any other
// artifact that mentions an entity whose centrality x relevance clears
// cfg.GraphThreshold. Bounded by cfg.MaxGraphNodes visited entities total.
func (p *Pipeline) graphExpansion(ctx context.Context, q Query, weights scoring.ScoringWeights, candidates []*candidate, cfg Config) ([]*candidate, error) {
	if p.Graph == nil || len(candidates) == 0 {
		return candidates, nil
	}

	existing := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		existing[c.artifact.ID] = true
	}

	visitedEntities := make(map[string]bool)
	addedArtifacts := make(map[string]bool)
	out := append([]*candidate{}, candidates...)

	for _, c := range candidates {
		seeds, err := p.Graph.TriplesBySource(ctx, q.TenantID, c.artifact.ID)
		if err != nil {
			continue
		}
		frontier := make([]string, 0, len(seeds)*2)
		for _, tr := range seeds {
			if tr.Confidence < cfg.GraphConfidence {
				continue
			}
			frontier = append(frontier, tr.Subject, tr.Object)
		}

		for depth := 0; depth < q.GraphDepth && len(frontier) > 0 && len(visitedEntities) < cfg.MaxGraphNodes; depth++ {
			var next []string
			for _, entityID := range frontier {
				if visitedEntities[entityID] || len(visitedEntities) >= cfg.MaxGraphNodes {
					continue
				}
				visitedEntities[entityID] = true

				entity, err := p.Graph.GetEntity(ctx, q.TenantID, entityID)
				if err != nil || entity == nil {
					continue
				}

				triples, err := p.Graph.GetTriples(ctx, q.TenantID, entityID, "both")
				if err != nil {
					continue
				}
				for _, tr := range triples {
					if tr.Confidence < cfg.GraphConfidence {
						continue
					}
					relevance := tr.Confidence
					if entity.Importance*relevance < cfg.GraphThreshold {
						continue
					}
					next = append(next, tr.Subject, tr.Object)

					if tr.SourceID == "" || existing[tr.SourceID] || addedArtifacts[tr.SourceID] {
						continue
					}
					addedArtifacts[tr.SourceID] = true
					artifact, err := p.Store.Get(ctx, q.TenantID, tr.SourceID)
					if err != nil || artifact == nil {
						continue
					}
					nc := &candidate{artifact: *artifact}
					nc.sub = scoring.SubScores{
						Relevance:  relevance,
						Importance: artifact.Importance,
						Centrality: entity.Importance,
					}
					nc.composite = scoring.Composite(nc.sub, weights)
					out = append(out, nc)
				}
			}
			frontier = next
		}
	}

	return out, nil
}
