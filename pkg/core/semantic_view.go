package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/internal/encoding"
)

// GetSemanticView fetches a cached embedding view scoped to tenantID,
// returning ErrNotFound if the artifact has never had a view cached under
// modelID.
func (s *SQLiteStore) GetSemanticView(ctx context.Context, tenantID, artifactID, modelID string) (*SemanticView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_semantic_view", ErrStoreClosed)
	}
	if tenantID == "" {
		return nil, wrapError("get_semantic_view", ErrTenantRequired)
	}

	var vectorBytes []byte
	view := &SemanticView{ArtifactID: artifactID, ModelID: modelID}

	err := s.db.QueryRowContext(ctx, `
		SELECT dimensions, vector, created_at
		FROM semantic_views
		WHERE tenant_id = ? AND artifact_id = ? AND model_id = ?
	`, tenantID, artifactID, modelID).Scan(&view.Dimensions, &vectorBytes, &view.GeneratedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_semantic_view", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_semantic_view", fmt.Errorf("failed to get semantic view: %w", err))
	}

	vec, err := encoding.DecodeVector(vectorBytes)
	if err != nil {
		return nil, wrapError("get_semantic_view", fmt.Errorf("failed to decode vector: %w", err))
	}
	view.Vector = vec

	return view, nil
}

// UpsertSemanticView caches v, scoped to tenantID. Overwrites any existing
// view for the same (artifact, model) pair — the cache always holds the
// most recently generated embedding per model, never a history.
func (s *SQLiteStore) UpsertSemanticView(ctx context.Context, tenantID string, v *SemanticView) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("upsert_semantic_view", ErrStoreClosed)
	}
	if tenantID == "" {
		return wrapError("upsert_semantic_view", ErrTenantRequired)
	}
	if v == nil || v.ArtifactID == "" || v.ModelID == "" {
		return wrapError("upsert_semantic_view", fmt.Errorf("artifact id and model id are required"))
	}

	vectorBytes, err := encoding.EncodeVector(v.Vector)
	if err != nil {
		return wrapError("upsert_semantic_view", fmt.Errorf("failed to encode vector: %w", err))
	}

	dimensions := v.Dimensions
	if dimensions == 0 {
		dimensions = len(v.Vector)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO semantic_views (tenant_id, artifact_id, model_id, vector, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, tenantID, v.ArtifactID, v.ModelID, vectorBytes, dimensions)
	if err != nil {
		return wrapError("upsert_semantic_view", fmt.Errorf("failed to upsert semantic view: %w", err))
	}

	return nil
}

// DeleteSemanticViews removes every cached view for artifactID, across all
// models. Also happens implicitly via the artifacts table's ON DELETE
// CASCADE when the artifact itself is deleted; exposed directly for
// callers that want to force a re-embed without deleting the artifact.
func (s *SQLiteStore) DeleteSemanticViews(ctx context.Context, tenantID, artifactID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("delete_semantic_views", ErrStoreClosed)
	}
	if tenantID == "" {
		return wrapError("delete_semantic_views", ErrTenantRequired)
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM semantic_views WHERE tenant_id = ? AND artifact_id = ?
	`, tenantID, artifactID)
	if err != nil {
		return wrapError("delete_semantic_views", fmt.Errorf("failed to delete semantic views: %w", err))
	}

	return nil
}
