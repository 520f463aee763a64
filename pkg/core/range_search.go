package core

import (
	"context"
	"fmt"
)

// RangeSearch returns every artifact within radius of query, scoped to
// opts.TenantID. Radius is always measured in literal Euclidean distance
// regardless of the store's configured SimilarityFn: a caller asking for
// everything within distance X means geometric distance, not a threshold
// relative to whatever metric Search ranks with.
func (s *SQLiteStore) RangeSearch(ctx context.Context, query []float32, radius float32, opts SearchOptions) ([]ScoredArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("range_search", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("range_search", ErrTenantRequired)
	}
	if radius <= 0 {
		return nil, wrapError("range_search", fmt.Errorf("radius must be positive, got %v", radius))
	}

	candidates, err := s.fetchCandidates(ctx, opts)
	if err != nil {
		return nil, wrapError("range_search", err)
	}

	var results []ScoredArtifact
	for _, candidate := range candidates {
		if len(candidate.Vector) != len(query) {
			continue
		}

		dist := euclideanMagnitude(query, candidate.Vector)
		if dist <= float64(radius) {
			candidate.Score = -dist
			results = append(results, candidate)
		}
	}

	s.sortByScore(results)

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	return results, nil
}

// BatchRangeSearch runs RangeSearch once per query vector, all scoped to the
// same tenant and radius.
func (s *SQLiteStore) BatchRangeSearch(ctx context.Context, queries [][]float32, radius float32, opts SearchOptions) ([][]ScoredArtifact, error) {
	results := make([][]ScoredArtifact, len(queries))
	for i, q := range queries {
		res, err := s.RangeSearch(ctx, q, radius, opts)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}
