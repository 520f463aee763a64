package scoring

import "github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"

// MMRItem is one candidate going through Maximal Marginal Relevance
// re-ordering: its relevance score plus the vector used to measure
// similarity against already-selected items.
type MMRItem struct {
	ID        string
	Relevance float64
	Vector    []float32
}

// MMRRerank greedily selects items in relevance order, penalizing each
// candidate by its maximum similarity to already-selected items, scaled by
// lambda (1.0 = pure relevance, 0.0 = pure diversity). Grounded on the
// teacher's DiversityReranker, generalized to operate on precomputed
// relevance scores instead of re-deriving them from a query vector.
func MMRRerank(items []MMRItem, lambda float64) []MMRItem {
	remaining := make([]MMRItem, len(items))
	copy(remaining, items)
	selected := make([]MMRItem, 0, len(items))

	for len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1.0
		for i, item := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				sim := core.CosineSimilarity(item.Vector, s.Vector)
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*item.Relevance - (1-lambda)*maxSim
			if mmr > bestScore {
				bestScore = mmr
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}
