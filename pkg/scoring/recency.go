package scoring

import "math"

// Recency computes an exponential-decay freshness score over ageDays, with
// the decay rate slowed by usageCount so frequently accessed artifacts stay
// "fresh" longer:
//
//	effectiveDecay = baseRate / (log(1+usageCount) + 1)
//	recency = exp(-effectiveDecay * ageDays)
func Recency(baseRate, ageDays float64, usageCount int64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	effectiveDecay := baseRate / (math.Log1p(float64(usageCount)) + 1)
	return math.Exp(-effectiveDecay * ageDays)
}
