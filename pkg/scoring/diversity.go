package scoring

import "github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"

// Diversity computes, for every vector in batch, 1 - mean(cosine(v_i, v_j))
// over all j != i, penalizing near-duplicates within the candidate set.
// A batch of size <= 1 has no other candidates to compare against, so every
// entry scores 1 (maximally diverse by vacuous truth).
func Diversity(batch [][]float32) []float64 {
	n := len(batch)
	scores := make([]float64, n)
	if n <= 1 {
		for i := range scores {
			scores[i] = 1
		}
		return scores
	}

	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sum += core.CosineSimilarity(batch[i], batch[j])
		}
		mean := sum / float64(n-1)
		score := 1 - mean
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[i] = score
	}
	return scores
}
