package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/internal/encoding"
)

// decodeStringSlice unmarshals a JSON array column (e.g. provenance) into dst.
func decodeStringSlice(raw string, dst *[]string) error {
	return json.Unmarshal([]byte(raw), dst)
}

// Search performs vector similarity search scoped to opts.TenantID.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]ScoredArtifact, error) {
	s.mu.RLock()
	storeDim := s.config.VectorDim
	s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("search", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("search", ErrTenantRequired)
	}

	queryDim := len(query)

	// Auto-adapt query vector if dimensions don't match
	if storeDim > 0 && queryDim != storeDim {
		adaptedQuery, err := s.adapter.AdaptVector(query, queryDim, storeDim)
		if err != nil {
			return nil, wrapError("search", fmt.Errorf("query adaptation failed: %w", err))
		}
		s.adapter.logDimensionEvent("search_adapt", queryDim, storeDim, "query_vector")
		query = adaptedQuery
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.validateSearchInput(query, opts); err != nil {
		return nil, wrapError("search", err)
	}

	// Use HNSW index if available and enabled
	if s.config.HNSW.Enabled && s.hnswIndex != nil {
		return s.searchWithHNSW(ctx, query, opts)
	}

	// Use IVF index if available and enabled
	if s.config.IndexType == IndexTypeIVF && s.ivfIndex != nil && s.ivfIndex.Trained {
		return s.searchWithIVF(ctx, query, opts)
	}

	// Fallback to linear search
	candidates, err := s.fetchCandidates(ctx, opts)
	if err != nil {
		return nil, wrapError("search", err)
	}

	results := s.scoreCandidates(query, candidates, opts)
	return results, nil
}

// SearchWithFilter performs vector similarity search with advanced metadata filtering.
func (s *SQLiteStore) SearchWithFilter(ctx context.Context, query []float32, opts SearchOptions, metadataFilters map[string]interface{}) ([]ScoredArtifact, error) {
	s.mu.RLock()
	storeDim := s.config.VectorDim
	s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("searchWithFilter", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("searchWithFilter", ErrTenantRequired)
	}

	queryDim := len(query)

	if storeDim > 0 && queryDim != storeDim {
		adaptedQuery, err := s.adapter.AdaptVector(query, queryDim, storeDim)
		if err != nil {
			return nil, wrapError("searchWithFilter", fmt.Errorf("query adaptation failed: %w", err))
		}
		s.adapter.logDimensionEvent("search_adapt", queryDim, storeDim, "query_vector")
		query = adaptedQuery
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.validateSearchInput(query, opts); err != nil {
		return nil, wrapError("searchWithFilter", err)
	}

	var candidates []ScoredArtifact
	var err error

	if s.config.HNSW.Enabled && s.hnswIndex != nil {
		candidates, err = s.searchWithHNSW(ctx, query, opts)
	} else if s.config.IndexType == IndexTypeIVF && s.ivfIndex != nil && s.ivfIndex.Trained {
		candidates, err = s.searchWithIVF(ctx, query, opts)
	} else {
		candidates, err = s.fetchCandidates(ctx, opts)
		if err != nil {
			return nil, wrapError("searchWithFilter", err)
		}
		candidates = s.scoreCandidates(query, candidates, opts)
	}

	if err != nil {
		return nil, wrapError("searchWithFilter", err)
	}

	if len(metadataFilters) > 0 {
		filtered, err := s.filterByMetadata(candidates, metadataFilters)
		if err != nil {
			return nil, wrapError("searchWithFilter", err)
		}
		candidates = filtered
	}

	return candidates, nil
}

// searchWithHNSW performs vector search using the HNSW index. The index is
// global (not tenant-partitioned), so every candidate is re-filtered by
// tenant after the ANN lookup, same as the SQL-query paths.
func (s *SQLiteStore) searchWithHNSW(ctx context.Context, query []float32, opts SearchOptions) ([]ScoredArtifact, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	candidateIDs, _ := s.hnswIndex.Search(
		query,
		opts.TopK*4, // over-fetch: tenant/layer filtering happens after
		s.config.HNSW.EfSearch,
	)

	if len(candidateIDs) == 0 {
		return s.searchLinear(ctx, query, opts)
	}

	candidates, err := s.fetchArtifactsByIDs(ctx, opts.TenantID, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	return s.processCandidates(query, candidates, opts)
}

// searchWithIVF performs vector search using the IVF index.
func (s *SQLiteStore) searchWithIVF(ctx context.Context, query []float32, opts SearchOptions) ([]ScoredArtifact, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	candidateIDs, _, err := s.ivfIndex.Search(query, opts.TopK*4)
	if err != nil {
		s.logger.Warn("IVF search failed, falling back to linear search", "error", err)
		return s.searchLinear(ctx, query, opts)
	}

	if len(candidateIDs) == 0 {
		return s.searchLinear(ctx, query, opts)
	}

	candidates, err := s.fetchArtifactsByIDs(ctx, opts.TenantID, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	return s.processCandidates(query, candidates, opts)
}

// searchLinear performs a linear vector scan without an ANN index.
func (s *SQLiteStore) searchLinear(ctx context.Context, query []float32, opts SearchOptions) ([]ScoredArtifact, error) {
	candidates, err := s.fetchCandidates(ctx, opts)
	if err != nil {
		return nil, err
	}

	results := s.scoreCandidates(query, candidates, opts)
	return results, nil
}

// processCandidates applies scoring and filtering to ANN candidates.
func (s *SQLiteStore) processCandidates(query []float32, candidates []ScoredArtifact, opts SearchOptions) ([]ScoredArtifact, error) {
	textWeight := s.getTextWeight(opts)
	vectorWeight := 1.0 - textWeight

	var results []ScoredArtifact
	for _, candidate := range candidates {
		if opts.Project != "" && candidate.Project != opts.Project {
			continue
		}

		if len(opts.Layers) > 0 && !layerInSet(candidate.Layer, opts.Layers) {
			continue
		}

		if !s.matchesFilter(candidate.MemoryArtifact, opts.Filter) {
			continue
		}

		vectorScore := s.similarityFn(query, candidate.Vector)

		textScore := 0.0
		if s.textSimilarity != nil && opts.QueryText != "" {
			textScore = s.textSimilarity.CalculateSimilarity(opts.QueryText, candidate.Content)
		}

		finalScore := vectorScore
		if textWeight > 0 && textScore > 0 {
			finalScore = vectorScore*vectorWeight + textScore*textWeight
		}

		if opts.Threshold > 0 && finalScore < opts.Threshold {
			continue
		}

		results = append(results, ScoredArtifact{
			MemoryArtifact: candidate.MemoryArtifact,
			Score:          finalScore,
		})
	}

	s.sortByScore(results)

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	return results, nil
}

func layerInSet(l Layer, set []Layer) bool {
	for _, s := range set {
		if s == l {
			return true
		}
	}
	return false
}

// fetchArtifactsByIDs fetches artifacts by their IDs, scoped to tenantID.
func (s *SQLiteStore) fetchArtifactsByIDs(ctx context.Context, tenantID string, ids []string) ([]ScoredArtifact, error) {
	if len(ids) == 0 {
		return []ScoredArtifact{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids)+1)
	args[0] = tenantID
	for i, id := range ids {
		placeholders[i] = "?"
		args[i+1] = id
	}

	query := fmt.Sprintf(
		"SELECT a.id, a.tenant_id, a.project_id, p.name, a.layer, a.vector, a.content, a.doc_id, a.metadata, "+
			"a.importance, a.rating, a.usage_count, a.consolidated, a.provenance, a.token_count, "+
			"a.created_at, a.updated_at, a.last_used_at "+
			"FROM artifacts a "+
			"LEFT JOIN projects p ON a.project_id = p.id "+
			"WHERE a.tenant_id = ? AND a.id IN (%s)",
		strings.Join(placeholders, ","),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts by IDs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during fetch artifacts by IDs", "error", closeErr)
		}
	}()

	var candidates []ScoredArtifact
	for rows.Next() {
		candidate, err := s.scanArtifact(rows)
		if err != nil {
			s.logger.Warn("failed to scan artifact during fetch by IDs", "error", err)
			continue
		}
		candidates = append(candidates, candidate)
	}

	return candidates, rows.Err()
}

// validateSearchInput validates search input parameters.
func (s *SQLiteStore) validateSearchInput(query []float32, opts SearchOptions) error {
	if len(query) == 0 && opts.QueryText == "" {
		return ErrEmptyQuery
	}
	if len(query) > 0 {
		if err := encoding.ValidateVector(query); err != nil {
			return fmt.Errorf("invalid query vector: %w", err)
		}
	}

	if s.config.VectorDim == 0 || len(query) == 0 {
		return nil
	}

	if len(query) != s.config.VectorDim {
		return fmt.Errorf("query vector dimension mismatch: expected %d, got %d",
			s.config.VectorDim, len(query))
	}

	return nil
}

// buildSearchQuery builds the SQL query with tenant/project/layer filtering.
func (s *SQLiteStore) buildSearchQuery(opts SearchOptions) (string, []interface{}) {
	querySQL := "SELECT a.id, a.tenant_id, a.project_id, p.name, a.layer, a.vector, a.content, a.doc_id, a.metadata, " +
		"a.importance, a.rating, a.usage_count, a.consolidated, a.provenance, a.token_count, " +
		"a.created_at, a.updated_at, a.last_used_at " +
		"FROM artifacts a LEFT JOIN projects p ON a.project_id = p.id"
	args := []interface{}{opts.TenantID}

	conditions := []string{"a.tenant_id = ?"}

	if opts.Project != "" {
		conditions = append(conditions, "a.project_id = (SELECT id FROM projects WHERE tenant_id = ? AND name = ?)")
		args = append(args, opts.TenantID, opts.Project)
	}

	if len(opts.Layers) > 0 {
		placeholders := make([]string, len(opts.Layers))
		for i, l := range opts.Layers {
			placeholders[i] = "?"
			args = append(args, string(l))
		}
		conditions = append(conditions, fmt.Sprintf("a.layer IN (%s)", strings.Join(placeholders, ",")))
	}

	for key, value := range opts.Filter {
		if key == "doc_id" {
			conditions = append(conditions, "a.doc_id = ?")
			args = append(args, value)
		}
	}

	if len(conditions) > 0 {
		querySQL += " WHERE " + strings.Join(conditions, " AND ")
	}

	return querySQL, args
}

// fetchCandidates retrieves candidate artifacts from the database.
func (s *SQLiteStore) fetchCandidates(ctx context.Context, opts SearchOptions) ([]ScoredArtifact, error) {
	querySQL, args := s.buildSearchQuery(opts)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during fetch candidates", "error", closeErr)
		}
	}()

	var candidates []ScoredArtifact

	for rows.Next() {
		candidate, err := s.scanArtifact(rows)
		if err != nil {
			s.logger.Warn("failed to scan artifact during fetch candidates", "error", err)
			continue
		}

		if s.matchesFilter(candidate.MemoryArtifact, opts.Filter) {
			candidates = append(candidates, candidate)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return candidates, nil
}

// scanArtifact scans a row into a ScoredArtifact.
func (s *SQLiteStore) scanArtifact(rows *sql.Rows) (ScoredArtifact, error) {
	var id, tenantID, content, metadataJSON, layer string
	var docID sql.NullString
	var projectName sql.NullString
	var provenanceJSON sql.NullString
	var projectID int
	var vectorBytes []byte
	var importance, rating float64
	var usageCount, tokenCount int
	var consolidated int
	var createdAt, updatedAt sql.NullTime
	var lastUsedAt sql.NullTime

	if err := rows.Scan(&id, &tenantID, &projectID, &projectName, &layer, &vectorBytes, &content, &docID, &metadataJSON,
		&importance, &rating, &usageCount, &consolidated, &provenanceJSON, &tokenCount,
		&createdAt, &updatedAt, &lastUsedAt); err != nil {
		return ScoredArtifact{}, fmt.Errorf("failed to scan row: %w", err)
	}

	vector, err := encoding.DecodeVector(vectorBytes)
	if err != nil {
		return ScoredArtifact{}, fmt.Errorf("failed to decode vector: %w", err)
	}

	metadata, err := encoding.DecodeMetadata(metadataJSON)
	if err != nil {
		metadata = nil
	}

	var project string
	if projectName.Valid {
		project = projectName.String
	}

	var provenance []string
	if provenanceJSON.Valid && provenanceJSON.String != "" {
		_ = decodeStringSlice(provenanceJSON.String, &provenance)
	}

	artifact := MemoryArtifact{
		ID:           id,
		TenantID:     tenantID,
		Project:      project,
		Layer:        Layer(layer),
		Vector:       vector,
		Content:      content,
		DocID:        docID.String,
		Metadata:     metadata,
		Importance:   importance,
		Rating:       rating,
		UsageCount:   usageCount,
		Consolidated: consolidated != 0,
		Provenance:   provenance,
		TokenCount:   tokenCount,
	}
	if createdAt.Valid {
		artifact.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		artifact.UpdatedAt = updatedAt.Time
	}
	if lastUsedAt.Valid {
		artifact.LastUsedAt = lastUsedAt.Time
	}

	return ScoredArtifact{
		MemoryArtifact: artifact,
		Score:          0,
	}, nil
}

// matchesFilter checks if an artifact matches the filter criteria.
func (s *SQLiteStore) matchesFilter(art MemoryArtifact, filter map[string]string) bool {
	for key, value := range filter {
		if key == "doc_id" {
			continue
		}
		if art.Metadata == nil || art.Metadata[key] != value {
			return false
		}
	}
	return true
}

// scoreCandidates scores and sorts candidate artifacts.
func (s *SQLiteStore) scoreCandidates(query []float32, candidates []ScoredArtifact, opts SearchOptions) []ScoredArtifact {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	textWeight := s.getTextWeight(opts)
	vectorWeight := 1.0 - textWeight

	for i := range candidates {
		vectorScore := 0.0
		if len(query) > 0 {
			vectorScore = s.similarityFn(query, candidates[i].Vector)
		}

		textScore := 0.0
		if s.textSimilarity != nil && opts.QueryText != "" {
			textScore = s.textSimilarity.CalculateSimilarity(opts.QueryText, candidates[i].Content)
		}

		if textWeight > 0 && textScore > 0 {
			candidates[i].Score = vectorScore*vectorWeight + textScore*textWeight
		} else {
			candidates[i].Score = vectorScore
		}
	}

	if opts.Threshold > 0 {
		filtered := candidates[:0]
		for _, candidate := range candidates {
			if candidate.Score >= opts.Threshold {
				filtered = append(filtered, candidate)
			}
		}
		candidates = filtered
	}

	s.sortByScore(candidates)

	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}

	return candidates
}

// getTextWeight determines the text similarity weight from options or config.
func (s *SQLiteStore) getTextWeight(opts SearchOptions) float64 {
	if opts.TextWeight > 0 {
		return math.Min(opts.TextWeight, 1.0)
	}

	if s.textSimilarity != nil && s.config.TextSimilarity.Enabled {
		return s.config.TextSimilarity.DefaultWeight
	}

	return 0.0
}

// sortByScore sorts artifacts by score in descending order.
func (s *SQLiteStore) sortByScore(candidates []ScoredArtifact) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

// filterByMetadata filters candidates based on metadata criteria.
func (s *SQLiteStore) filterByMetadata(candidates []ScoredArtifact, filters map[string]interface{}) ([]ScoredArtifact, error) {
	if len(filters) == 0 {
		return candidates, nil
	}

	var filtered []ScoredArtifact
	for _, candidate := range candidates {
		if candidate.Metadata == nil {
			continue
		}

		match := true
		for key, expectedValue := range filters {
			actualValue, exists := candidate.Metadata[key]
			if !exists {
				match = false
				break
			}

			if !s.compareMetadataValues(actualValue, expectedValue) {
				match = false
				break
			}
		}

		if match {
			filtered = append(filtered, candidate)
		}
	}

	return filtered, nil
}

// compareMetadataValues compares two metadata values with type checking.
func (s *SQLiteStore) compareMetadataValues(actual, expected interface{}) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	if actualStr, ok := actual.(string); ok {
		if expectedStr, ok := expected.(string); ok {
			return actualStr == expectedStr
		}
		if expectedInt, ok := expected.(int); ok {
			return actualStr == fmt.Sprintf("%d", expectedInt)
		}
		if expectedFloat, ok := expected.(float64); ok {
			return actualStr == fmt.Sprintf("%g", expectedFloat)
		}
		if expectedBool, ok := expected.(bool); ok {
			return actualStr == fmt.Sprintf("%t", expectedBool)
		}
	}

	if actualFloat, ok := actual.(float64); ok {
		if expectedFloat, ok := expected.(float64); ok {
			return actualFloat == expectedFloat
		}
		if expectedInt, ok := expected.(int); ok {
			return actualFloat == float64(expectedInt)
		}
	}

	if actualInt, ok := actual.(int); ok {
		if expectedInt, ok := expected.(int); ok {
			return actualInt == expectedInt
		}
		if expectedFloat, ok := expected.(float64); ok {
			return float64(actualInt) == expectedFloat
		}
	}

	if actualBool, ok := actual.(bool); ok {
		if expectedBool, ok := expected.(bool); ok {
			return actualBool == expectedBool
		}
	}

	return actual == expected
}
