package core

import (
	"context"
	"fmt"
)

// ArtifactFilter is the structured filter DSL used by ListByFilter,
// CountByFilter, and DeleteByFilter. It is the same expression builder the
// diversity/advanced-search paths use, reused here so every filtered-listing
// operation shares one SQL-generation path.
type ArtifactFilter = MetadataFilter

// Get retrieves a single artifact by ID within tenantID.
func (s *SQLiteStore) Get(ctx context.Context, tenantID, id string) (*MemoryArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get", ErrStoreClosed)
	}
	if tenantID == "" {
		return nil, wrapError("get", ErrTenantRequired)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.tenant_id, a.project_id, p.name, a.layer, a.vector, a.content, a.doc_id, a.metadata,
			a.importance, a.rating, a.usage_count, a.consolidated, a.provenance, a.token_count,
			a.created_at, a.updated_at, a.last_used_at
		FROM artifacts a
		LEFT JOIN projects p ON a.project_id = p.id
		WHERE a.tenant_id = ? AND a.id = ?
	`, tenantID, id)
	if err != nil {
		return nil, wrapError("get", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during get", "error", closeErr)
		}
	}()

	if !rows.Next() {
		return nil, wrapError("get", ErrNotFound)
	}

	scored, err := s.scanArtifact(rows)
	if err != nil {
		return nil, wrapError("get", err)
	}

	art := scored.MemoryArtifact
	return &art, nil
}

// ListByFilter lists artifacts matching filter within tenantID, paginated.
func (s *SQLiteStore) ListByFilter(ctx context.Context, tenantID string, filter *ArtifactFilter, limit, offset int) ([]*MemoryArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_by_filter", ErrStoreClosed)
	}
	if tenantID == "" {
		return nil, wrapError("list_by_filter", ErrTenantRequired)
	}

	querySQL := `
		SELECT a.id, a.tenant_id, a.project_id, p.name, a.layer, a.vector, a.content, a.doc_id, a.metadata,
			a.importance, a.rating, a.usage_count, a.consolidated, a.provenance, a.token_count,
			a.created_at, a.updated_at, a.last_used_at
		FROM artifacts a
		LEFT JOIN projects p ON a.project_id = p.id
		WHERE a.tenant_id = ?
	`
	args := []interface{}{tenantID}

	if filter != nil && !filter.IsEmpty() {
		whereClause, params := filter.ToSQL()
		if whereClause != "" {
			querySQL += " AND (" + whereClause + ")"
			args = append(args, params...)
		}
	}

	querySQL += " ORDER BY a.created_at DESC"

	if limit > 0 {
		querySQL += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			querySQL += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, wrapError("list_by_filter", fmt.Errorf("failed to query artifacts: %w", err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during list by filter", "error", closeErr)
		}
	}()

	var artifacts []*MemoryArtifact
	for rows.Next() {
		scored, err := s.scanArtifact(rows)
		if err != nil {
			s.logger.Warn("failed to scan artifact during list by filter", "error", err)
			continue
		}
		art := scored.MemoryArtifact
		artifacts = append(artifacts, &art)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapError("list_by_filter", fmt.Errorf("error iterating rows: %w", err))
	}

	return artifacts, nil
}

// CountByFilter counts artifacts matching filter within tenantID.
func (s *SQLiteStore) CountByFilter(ctx context.Context, tenantID string, filter *ArtifactFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, wrapError("count_by_filter", ErrStoreClosed)
	}
	if tenantID == "" {
		return 0, wrapError("count_by_filter", ErrTenantRequired)
	}

	querySQL := "SELECT COUNT(*) FROM artifacts WHERE tenant_id = ?"
	args := []interface{}{tenantID}

	if filter != nil && !filter.IsEmpty() {
		whereClause, params := filter.ToSQL()
		if whereClause != "" {
			querySQL += " AND (" + whereClause + ")"
			args = append(args, params...)
		}
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, querySQL, args...).Scan(&count); err != nil {
		return 0, wrapError("count_by_filter", fmt.Errorf("failed to count artifacts: %w", err))
	}

	return count, nil
}

// GetByDocID returns all artifacts for a specific document ID within tenantID.
func (s *SQLiteStore) GetByDocID(ctx context.Context, tenantID, docID string) ([]*MemoryArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_by_doc_id", ErrStoreClosed)
	}
	if docID == "" {
		return nil, wrapError("get_by_doc_id", fmt.Errorf("doc ID cannot be empty"))
	}
	if tenantID == "" {
		return nil, wrapError("get_by_doc_id", ErrTenantRequired)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.tenant_id, a.project_id, p.name, a.layer, a.vector, a.content, a.doc_id, a.metadata,
			a.importance, a.rating, a.usage_count, a.consolidated, a.provenance, a.token_count,
			a.created_at, a.updated_at, a.last_used_at
		FROM artifacts a
		LEFT JOIN projects p ON a.project_id = p.id
		WHERE a.tenant_id = ? AND a.doc_id = ?
		ORDER BY a.created_at
	`, tenantID, docID)
	if err != nil {
		return nil, wrapError("get_by_doc_id", fmt.Errorf("failed to query artifacts: %w", err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during get by doc ID", "error", closeErr)
		}
	}()

	var artifacts []*MemoryArtifact
	for rows.Next() {
		scored, err := s.scanArtifact(rows)
		if err != nil {
			s.logger.Warn("failed to scan artifact during get by doc ID", "error", err)
			continue
		}
		art := scored.MemoryArtifact
		artifacts = append(artifacts, &art)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapError("get_by_doc_id", fmt.Errorf("error iterating rows: %w", err))
	}

	return artifacts, nil
}

// ListDocuments returns all unique document IDs within tenantID.
func (s *SQLiteStore) ListDocuments(ctx context.Context, tenantID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_documents", ErrStoreClosed)
	}
	if tenantID == "" {
		return nil, wrapError("list_documents", ErrTenantRequired)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT doc_id FROM artifacts WHERE tenant_id = ? AND doc_id IS NOT NULL AND doc_id != '' ORDER BY doc_id",
		tenantID)
	if err != nil {
		return nil, wrapError("list_documents", fmt.Errorf("failed to query documents: %w", err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows during list documents", "error", closeErr)
		}
	}()

	var docIDs []string
	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			return nil, wrapError("list_documents", fmt.Errorf("failed to scan doc_id: %w", err))
		}
		docIDs = append(docIDs, docID)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapError("list_documents", fmt.Errorf("error iterating rows: %w", err))
	}

	return docIDs, nil
}
