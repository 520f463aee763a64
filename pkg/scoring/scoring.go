// Package scoring implements the three-layer candidate scoring engine:
// cheap lexical prefiltering (Match-1), the six-factor composite
// probabilistic score (Match-2), and adaptive per-tenant weight tuning via
// a multi-armed bandit (Match-3).
package scoring

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors, matched with errors.Is rather than string comparison.
var (
	ErrInvalidWeights    = errors.New("scoring weights must be non-negative and sum to 1.0")
	ErrDimensionMismatch = errors.New("query and artifact embeddings come from different models")
	ErrEmptyCandidateSet = errors.New("candidate set is empty")
)

// ScoringError wraps an underlying error with the operation that produced
// it, mirroring core.StoreError's Op/Err shape.
type ScoringError struct {
	Op  string
	Err error
}

func (e *ScoringError) Error() string { return fmt.Sprintf("scoring: %s: %v", e.Op, e.Err) }
func (e *ScoringError) Unwrap() error { return e.Err }
func (e *ScoringError) Is(target error) bool { return errors.Is(e.Err, target) }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ScoringError{Op: op, Err: err}
}

// ScoringWeights holds the six composite-score weights. Must sum to 1.0.
type ScoringWeights struct {
	Relevance  float64
	Importance float64
	Recency    float64
	Centrality float64
	Diversity  float64
	Density    float64
}

// DefaultWeights returns the spec's default 0.40/0.20/0.10/0.10/0.10/0.10
// split.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		Relevance:  0.40,
		Importance: 0.20,
		Recency:    0.10,
		Centrality: 0.10,
		Diversity:  0.10,
		Density:    0.10,
	}
}

// weightEpsilon tolerates floating point rounding in the sum-to-1.0 check.
const weightEpsilon = 1e-9

// Validate checks every weight is non-negative and the six weights sum to
// 1.0, returning ErrInvalidWeights (wrapped) if not. Constructors that
// accept custom weights must call this at construction time per §7: a
// misconfigured weight set is a configuration error, never a silent
// first-use failure.
func (w ScoringWeights) Validate() error {
	for _, v := range []float64{w.Relevance, w.Importance, w.Recency, w.Centrality, w.Diversity, w.Density} {
		if v < 0 {
			return wrapError("validate_weights", ErrInvalidWeights)
		}
	}
	sum := w.Relevance + w.Importance + w.Recency + w.Centrality + w.Diversity + w.Density
	if sum < 1.0-weightEpsilon || sum > 1.0+weightEpsilon {
		return wrapError("validate_weights", fmt.Errorf("%w: sum=%v", ErrInvalidWeights, sum))
	}
	return nil
}

// SubScores are the six [0,1] factors behind a composite score, exposed so
// callers can inspect why a candidate ranked where it did (§4.2's
// "candidate annotated with ... the six sub-scores that produced it").
type SubScores struct {
	Relevance  float64
	Importance float64
	Recency    float64
	Centrality float64
	Diversity  float64
	Density    float64
}

// Composite computes the weighted sum of sub, clamped to [0,1].
func Composite(sub SubScores, weights ScoringWeights) float64 {
	score := weights.Relevance*sub.Relevance +
		weights.Importance*sub.Importance +
		weights.Recency*sub.Recency +
		weights.Centrality*sub.Centrality +
		weights.Diversity*sub.Diversity +
		weights.Density*sub.Density
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Candidate is one scored artifact moving through the Match-2 cascade.
type Candidate struct {
	ID           string
	Importance   float64
	CreatedAt    int64 // unix seconds, used only for the tie-break (newer wins)
	Composite    float64
	SubScores    SubScores
}

// SortCandidates orders candidates by the spec's tie-break rule: higher
// composite score first; ties broken by higher importance, then newer
// CreatedAt, then lower (lexicographically smaller) ID — stable and fully
// deterministic given identical inputs.
func SortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID < b.ID
	})
}
