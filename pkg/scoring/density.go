package scoring

// Density rewards substantive artifacts up to a soft ceiling of 500 tokens:
// min(1.0, tokenCount/500).
func Density(tokenCount int) float64 {
	score := float64(tokenCount) / 500.0
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
