// Package core provides advanced search capabilities layered on top of the
// baseline vector search in store_search.go.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/internal/encoding"
)

// HybridSearchOptions for combined vector + keyword search.
type HybridSearchOptions struct {
	SearchOptions
	// Fusion parameter for RRF (default 60)
	RRFK float64
}

// SearchWithACL performs vector search with access control filtering,
// scoped to opts.TenantID.
func (s *SQLiteStore) SearchWithACL(ctx context.Context, query []float32, acl []string, opts SearchOptions) ([]ScoredArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("search_acl", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("search_acl", ErrTenantRequired)
	}

	// Public artifacts (acl IS NULL) are always visible; otherwise the
	// requester's ACL token must intersect the artifact's acl list.
	whereClause := "a.acl IS NULL"
	params := []interface{}{}

	if len(acl) > 0 {
		placeholders := make([]string, len(acl))
		for i, id := range acl {
			placeholders[i] = "?"
			params = append(params, id)
		}
		whereClause += fmt.Sprintf(" OR EXISTS (SELECT 1 FROM json_each(a.acl) WHERE value IN (%s))", strings.Join(placeholders, ","))
	}

	candidates, err := s.fetchCandidatesWithSQL(ctx, opts.TenantID, whereClause, params, opts)
	if err != nil {
		return nil, err
	}

	return s.scoreAndSort(query, candidates, opts)
}

// HybridSearch performs combined vector and keyword search using RRF fusion,
// scoped to opts.TenantID.
func (s *SQLiteStore) HybridSearch(ctx context.Context, vectorQuery []float32, textQuery string, opts HybridSearchOptions) ([]ScoredArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("hybrid_search", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("hybrid_search", ErrTenantRequired)
	}

	var vectorResults []ScoredArtifact
	var err error
	if len(vectorQuery) > 0 {
		vectorResults, err = s.Search(ctx, vectorQuery, opts.SearchOptions)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
	}

	ftsRanks := make(map[int64]int)
	if textQuery != "" {
		ftsQuery := `
			SELECT rowid, rank
			FROM chunks_fts
			WHERE chunks_fts MATCH ?
			ORDER BY rank
			LIMIT ?
		`
		limit := opts.TopK * 3
		if limit <= 0 {
			limit = 30
		}

		rows, err := s.db.QueryContext(ctx, ftsQuery, textQuery, limit)
		if err == nil {
			defer func() { _ = rows.Close() }()
			rank := 1
			for rows.Next() {
				var rowid int64
				var score float64
				if err := rows.Scan(&rowid, &score); err == nil {
					ftsRanks[rowid] = rank
					rank++
				}
			}
		}
	}

	k := opts.RRFK
	if k == 0 {
		k = 60
	}

	fusedScores := make(map[string]float64)
	artifactsMap := make(map[string]ScoredArtifact)

	for i, res := range vectorResults {
		score := 1.0 / (k + float64(i+1))
		fusedScores[res.ID] = score
		artifactsMap[res.ID] = res
	}

	if len(ftsRanks) > 0 {
		rowids := make([]int64, 0, len(ftsRanks))
		for rid := range ftsRanks {
			rowids = append(rowids, rid)
		}

		placeholders := make([]string, len(rowids))
		args := make([]interface{}, 0, len(rowids)+1)
		args = append(args, opts.TenantID)
		for i, rid := range rowids {
			placeholders[i] = "?"
			args = append(args, rid)
		}

		query := fmt.Sprintf(
			"SELECT a.id, a.project_id, p.name, a.layer, a.vector, a.content, a.doc_id, a.metadata, a.rowid "+
				"FROM artifacts a "+
				"LEFT JOIN projects p ON a.project_id = p.id "+
				"WHERE a.tenant_id = ? AND a.rowid IN (%s)",
			strings.Join(placeholders, ","),
		)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err == nil {
			defer func() { _ = rows.Close() }()
			for rows.Next() {
				var id, content, metadataJSON, layer string
				var docID sql.NullString
				var projectName sql.NullString
				var projectID int
				var vectorBytes []byte
				var rowid int64

				if err := rows.Scan(&id, &projectID, &projectName, &layer, &vectorBytes, &content, &docID, &metadataJSON, &rowid); err != nil {
					continue
				}

				if rank, ok := ftsRanks[rowid]; ok {
					score := 1.0 / (k + float64(rank))
					fusedScores[id] += score

					if _, exists := artifactsMap[id]; !exists {
						vec, _ := encoding.DecodeVector(vectorBytes)
						meta, _ := encoding.DecodeMetadata(metadataJSON)

						artifactsMap[id] = ScoredArtifact{
							MemoryArtifact: MemoryArtifact{
								ID:       id,
								TenantID: opts.TenantID,
								Project:  projectName.String,
								Layer:    Layer(layer),
								Vector:   vec,
								Content:  content,
								DocID:    docID.String,
								Metadata: meta,
							},
						}
					}
				}
			}
		}
	}

	var results []ScoredArtifact
	for id, score := range fusedScores {
		res := artifactsMap[id]
		res.Score = score
		results = append(results, res)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	return results, nil
}

// scoreAndSort scores candidates against query and returns the top-k.
func (s *SQLiteStore) scoreAndSort(query []float32, candidates []ScoredArtifact, opts SearchOptions) ([]ScoredArtifact, error) {
	results := make([]ScoredArtifact, 0, len(candidates))
	for _, candidate := range candidates {
		score := s.similarityFn(query, candidate.Vector)
		candidate.Score = score
		results = append(results, candidate)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	return results, nil
}

// NegativeSearchOptions for "not like this" queries.
type NegativeSearchOptions struct {
	PositiveVectors [][]float32
	NegativeVectors [][]float32
	NegativeWeight  float32
	SearchOptions
}

// DiversitySearchOptions for diverse result sampling.
type DiversitySearchOptions struct {
	Lambda      float32
	Method      DiversityMethod
	MinDistance float32
	SearchOptions
}

// DiversityMethod selects the result-diversification algorithm.
type DiversityMethod string

const (
	DiversityMMR      DiversityMethod = "mmr"
	DiversityDPP      DiversityMethod = "dpp"
	DiversityDistance DiversityMethod = "distance"
	DiversityRandom   DiversityMethod = "random"
)

// SearchWithNegatives performs search with negative examples, scoped to
// opts.TenantID.
func (s *SQLiteStore) SearchWithNegatives(ctx context.Context, opts NegativeSearchOptions) ([]ScoredArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("search_negatives", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("search_negatives", ErrTenantRequired)
	}

	candidates, err := s.fetchCandidates(ctx, opts.SearchOptions)
	if err != nil {
		return nil, wrapError("search_negatives", err)
	}

	for i := range candidates {
		positiveScore := float32(0)
		negativeScore := float32(0)

		if len(opts.PositiveVectors) > 0 {
			for _, posVec := range opts.PositiveVectors {
				score := float32(s.similarityFn(posVec, candidates[i].Vector))
				if score > positiveScore {
					positiveScore = score
				}
			}
		}

		if len(opts.NegativeVectors) > 0 {
			for _, negVec := range opts.NegativeVectors {
				score := float32(s.similarityFn(negVec, candidates[i].Vector))
				if score > negativeScore {
					negativeScore = score
				}
			}
		}

		weight := opts.NegativeWeight
		if weight == 0 {
			weight = 0.5
		}

		finalScore := positiveScore - (weight * negativeScore)
		candidates[i].Score = float64(finalScore)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if opts.TopK > 0 && len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}

	return candidates, nil
}

// SearchWithDiversity performs search with result diversification, the
// final re-ranking stage of the retrieval cascade.
func (s *SQLiteStore) SearchWithDiversity(ctx context.Context, query []float32, opts DiversitySearchOptions) ([]ScoredArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("search_diversity", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("search_diversity", ErrTenantRequired)
	}

	searchOpts := opts.SearchOptions
	searchOpts.TopK = opts.TopK * 3

	candidates, err := s.Search(ctx, query, searchOpts)
	if err != nil {
		return nil, wrapError("search_diversity", err)
	}

	switch opts.Method {
	case DiversityMMR:
		return s.diversifyMMR(candidates, opts), nil
	case DiversityDistance:
		return s.diversifyDistance(candidates, opts), nil
	case DiversityRandom:
		return s.diversifyRandom(candidates, opts), nil
	case DiversityDPP:
		return s.diversifyDPP(candidates, opts), nil
	default:
		return s.diversifyMMR(candidates, opts), nil
	}
}

// diversifyMMR implements Maximal Marginal Relevance.
func (s *SQLiteStore) diversifyMMR(candidates []ScoredArtifact, opts DiversitySearchOptions) []ScoredArtifact {
	if len(candidates) == 0 {
		return candidates
	}

	lambda := opts.Lambda
	if lambda == 0 {
		lambda = 0.5
	}

	selected := []ScoredArtifact{}
	remaining := make([]ScoredArtifact, len(candidates))
	copy(remaining, candidates)

	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < opts.TopK && len(remaining) > 0 {
		bestIdx := -1
		bestScore := float32(-math.MaxFloat32)

		for i, candidate := range remaining {
			relevance := float32(candidate.Score)

			maxSim := float32(0)
			for _, sel := range selected {
				sim := float32(s.similarityFn(candidate.Vector, sel.Vector))
				if sim > maxSim {
					maxSim = sim
				}
			}

			mmrScore := lambda*relevance - (1-lambda)*maxSim

			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}

		if bestIdx >= 0 {
			selected = append(selected, remaining[bestIdx])
			remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		} else {
			break
		}
	}

	return selected
}

// diversifyDistance ensures a minimum distance between results.
func (s *SQLiteStore) diversifyDistance(candidates []ScoredArtifact, opts DiversitySearchOptions) []ScoredArtifact {
	if len(candidates) == 0 {
		return candidates
	}

	selected := []ScoredArtifact{}
	minDist := opts.MinDistance
	if minDist == 0 {
		minDist = 0.1
	}

	for _, candidate := range candidates {
		tooClose := false
		for _, sel := range selected {
			dist := float32(1.0 - s.similarityFn(candidate.Vector, sel.Vector))
			if dist < minDist {
				tooClose = true
				break
			}
		}

		if !tooClose {
			selected = append(selected, candidate)
			if len(selected) >= opts.TopK {
				break
			}
		}
	}

	return selected
}

// diversifyRandom randomly samples from the top candidates.
func (s *SQLiteStore) diversifyRandom(candidates []ScoredArtifact, opts DiversitySearchOptions) []ScoredArtifact {
	if len(candidates) <= opts.TopK {
		return candidates
	}

	poolSize := opts.TopK * 2
	if poolSize > len(candidates) {
		poolSize = len(candidates)
	}
	pool := candidates[:poolSize]

	selected := make([]ScoredArtifact, 0, opts.TopK)
	indices := rand.Perm(len(pool))

	for i := 0; i < opts.TopK && i < len(indices); i++ {
		selected = append(selected, pool[indices[i]])
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})

	return selected
}

// diversifyDPP implements a greedy Determinantal Point Process selection.
func (s *SQLiteStore) diversifyDPP(candidates []ScoredArtifact, opts DiversitySearchOptions) []ScoredArtifact {
	if len(candidates) <= opts.TopK {
		return candidates
	}

	n := len(candidates)
	if n > 100 {
		n = 100
	}

	kernel := make([][]float32, n)
	for i := 0; i < n; i++ {
		kernel[i] = make([]float32, n)
		for j := 0; j < n; j++ {
			if i == j {
				kernel[i][j] = float32(candidates[i].Score)
			} else {
				sim := float32(s.similarityFn(candidates[i].Vector, candidates[j].Vector))
				kernel[i][j] = sim * float32(math.Sqrt(float64(candidates[i].Score*candidates[j].Score)))
			}
		}
	}

	selected := []ScoredArtifact{}
	selectedIndices := make(map[int]bool)

	for len(selected) < opts.TopK && len(selected) < n {
		bestIdx := -1
		bestGain := float32(0)

		for i := 0; i < n; i++ {
			if selectedIndices[i] {
				continue
			}

			gain := kernel[i][i]
			for j := range selectedIndices {
				gain -= kernel[i][j] * kernel[i][j] / kernel[j][j]
			}

			if gain > bestGain {
				bestGain = gain
				bestIdx = i
			}
		}

		if bestIdx >= 0 {
			selected = append(selected, candidates[bestIdx])
			selectedIndices[bestIdx] = true
		} else {
			break
		}
	}

	return selected
}

// RecommendSimilar finds artifacts similar to positive examples and
// dissimilar to negative ones, within opts.TenantID.
func (s *SQLiteStore) RecommendSimilar(ctx context.Context, positiveIDs []string, negativeIDs []string, opts SearchOptions) ([]ScoredArtifact, error) {
	positiveVectors := [][]float32{}
	for _, id := range positiveIDs {
		art, err := s.Get(ctx, opts.TenantID, id)
		if err == nil && art != nil {
			positiveVectors = append(positiveVectors, art.Vector)
		}
	}

	negativeVectors := [][]float32{}
	for _, id := range negativeIDs {
		art, err := s.Get(ctx, opts.TenantID, id)
		if err == nil && art != nil {
			negativeVectors = append(negativeVectors, art.Vector)
		}
	}

	return s.SearchWithNegatives(ctx, NegativeSearchOptions{
		PositiveVectors: positiveVectors,
		NegativeVectors: negativeVectors,
		NegativeWeight:  0.5,
		SearchOptions:   opts,
	})
}

// FindAnomalies finds vectors that are outliers relative to their k nearest
// neighbors, within opts.TenantID.
func (s *SQLiteStore) FindAnomalies(ctx context.Context, opts SearchOptions) ([]ScoredArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("find_anomalies", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("find_anomalies", ErrTenantRequired)
	}

	candidates, err := s.fetchCandidates(ctx, opts)
	if err != nil {
		return nil, wrapError("find_anomalies", err)
	}

	k := 5
	anomalyScores := make([]float64, len(candidates))

	for i, candidate := range candidates {
		distances := []float32{}

		for j, other := range candidates {
			if i != j {
				dist := float32(1.0 - s.similarityFn(candidate.Vector, other.Vector))
				distances = append(distances, dist)
			}
		}

		sort.Slice(distances, func(a, b int) bool {
			return distances[a] < distances[b]
		})

		avgDist := float32(0)
		limit := k
		if limit > len(distances) {
			limit = len(distances)
		}

		for j := 0; j < limit; j++ {
			avgDist += distances[j]
		}
		if limit > 0 {
			avgDist /= float32(limit)
		}

		anomalyScores[i] = float64(avgDist)
		candidates[i].Score = anomalyScores[i]
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if opts.TopK > 0 && len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}

	return candidates, nil
}
