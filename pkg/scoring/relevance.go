package scoring

import "github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"

// Relevance computes 0.8*cosine(queryEmb, artifactEmb) + 0.2*artifactImportance.
// queryEmb and artifactEmb must come from the same embedding model; a
// dimension mismatch is treated as a caller error rather than silently
// truncated or zero-padded, per §4.2.
func Relevance(queryEmb, artifactEmb []float32, artifactImportance float64) (float64, error) {
	if len(queryEmb) != len(artifactEmb) {
		return 0, wrapError("relevance", ErrDimensionMismatch)
	}
	cosine := core.CosineSimilarity(queryEmb, artifactEmb)
	return 0.8*cosine + 0.2*artifactImportance, nil
}
