package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/internal/encoding"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/quantization"
)

const (
	minImportance = 0.01
	maxImportance = 1.0
)

// validateArtifact enforces the invariants every persisted MemoryArtifact
// must satisfy regardless of which layer it belongs to.
func validateArtifact(a *MemoryArtifact) error {
	if a.TenantID == "" {
		return ErrTenantRequired
	}
	if a.Layer == "" {
		a.Layer = LayerEpisodic
	}
	if !a.Layer.Valid() {
		return ErrInvalidLayer
	}
	if a.Importance != 0 && (a.Importance < minImportance || a.Importance > maxImportance) {
		return ErrInvalidImportance
	}
	if a.Layer == LayerReflective && len(a.Provenance) == 0 {
		return ErrMissingProvenance
	}
	return nil
}

// clampImportance enforces the [0.01, 1.0] floor/ceiling invariant, defaulting
// untouched zero-values to the neutral midpoint rather than the floor.
func clampImportance(v float64) float64 {
	if v == 0 {
		return 0.5
	}
	if v < minImportance {
		return minImportance
	}
	if v > maxImportance {
		return maxImportance
	}
	return v
}

// Upsert inserts or updates a single artifact.
func (s *SQLiteStore) Upsert(ctx context.Context, a *MemoryArtifact) error {
	s.mu.RLock()
	currentDim := s.config.VectorDim
	s.mu.RUnlock()

	if s.closed {
		return wrapError("upsert", ErrStoreClosed)
	}

	if err := validateArtifact(a); err != nil {
		return wrapError("upsert", err)
	}

	incomingDim := len(a.Vector)

	if currentDim == 0 {
		s.mu.Lock()
		if s.config.VectorDim == 0 {
			s.config.VectorDim = incomingDim
			currentDim = incomingDim

			if s.config.Quantization.Enabled && s.quantizer == nil {
				if s.config.Quantization.Type == "binary" {
					s.quantizer = quantization.NewBinaryQuantizer(currentDim)
				} else {
					sq, err := quantization.NewScalarQuantizer(currentDim, s.config.Quantization.NBits)
					if err != nil {
						s.logger.Warn("failed to create scalar quantizer", "error", err)
					} else {
						s.quantizer = sq
					}
				}
				if s.hnswIndex != nil {
					s.hnswIndex.SetQuantizer(s.quantizer)
				}
			}
		} else {
			currentDim = s.config.VectorDim
		}
		s.mu.Unlock()
	}

	if s.quantizer != nil && !quantizerTrained(s.quantizer) {
		if err := s.TrainQuantizer(ctx); err != nil {
			s.logger.Warn("failed to auto-train quantizer", "error", err)
		}
	}

	if incomingDim != currentDim {
		adaptedVector, err := s.adapter.AdaptVector(a.Vector, incomingDim, currentDim)
		if err != nil {
			return wrapError("upsert", err)
		}
		s.adapter.logDimensionEvent("adapt", incomingDim, currentDim, a.ID)
		a.Vector = adaptedVector
	}

	if err := encoding.ValidateEmbedding(*a, currentDim); err != nil {
		return wrapError("upsert", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	projectID, err := s.resolveProjectID(ctx, a.TenantID, a.ProjectID, a.Project)
	if err != nil {
		return wrapError("upsert", err)
	}

	vectorBytes, err := encoding.EncodeVector(a.Vector)
	if err != nil {
		return wrapError("upsert", err)
	}

	metadataJSON, err := encoding.EncodeMetadata(a.Metadata)
	if err != nil {
		return wrapError("upsert", err)
	}

	var aclJSON []byte
	if len(a.ACL) > 0 {
		aclJSON, err = json.Marshal(a.ACL)
		if err != nil {
			return wrapError("upsert", fmt.Errorf("failed to marshal ACL: %w", err))
		}
	}

	var provenanceJSON []byte
	if len(a.Provenance) > 0 {
		provenanceJSON, err = json.Marshal(a.Provenance)
		if err != nil {
			return wrapError("upsert", fmt.Errorf("failed to marshal provenance: %w", err))
		}
	}

	var docID sql.NullString
	if a.DocID != "" {
		docID.String = a.DocID
		docID.Valid = true
	}

	importance := clampImportance(a.Importance)

	query := `
	INSERT OR REPLACE INTO artifacts
		(id, tenant_id, project_id, layer, vector, content, doc_id, metadata, acl,
		 importance, rating, usage_count, consolidated, provenance, token_count,
		 created_at, updated_at, last_used_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP,
		COALESCE((SELECT last_used_at FROM artifacts WHERE id = ?), NULL))
	`

	_, err = s.db.ExecContext(ctx, query,
		a.ID, a.TenantID, projectID, string(a.Layer), vectorBytes, a.Content, docID, metadataJSON, aclJSON,
		importance, a.Rating, a.UsageCount, boolToInt(a.Consolidated), provenanceJSON, a.TokenCount, a.ID)
	if err != nil {
		return wrapError("upsert", fmt.Errorf("failed to insert artifact: %w", err))
	}

	s.indexAfterUpsert(a.ID, a.Vector)

	return nil
}

// UpsertBatch inserts or updates multiple artifacts in a single transaction.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, as []*MemoryArtifact) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("upsert_batch", ErrStoreClosed)
	}

	if len(as) == 0 {
		return nil
	}

	for i, a := range as {
		if err := validateArtifact(a); err != nil {
			return wrapError("upsert_batch", fmt.Errorf("invalid artifact at index %d: %w", i, err))
		}
	}

	if s.quantizer != nil && !quantizerTrained(s.quantizer) {
		var trainingVectors [][]float32
		for i := 0; i < len(as) && i < 1000; i++ {
			trainingVectors = append(trainingVectors, as[i].Vector)
		}
		if sq, ok := s.quantizer.(*quantization.ScalarQuantizer); ok {
			if err := sq.Train(trainingVectors); err != nil {
				s.logger.Warn("failed to train scalar quantizer during batch upsert", "error", err)
			}
		} else if bq, ok := s.quantizer.(*quantization.BinaryQuantizer); ok {
			if err := bq.Train(trainingVectors); err != nil {
				s.logger.Warn("failed to train binary quantizer during batch upsert", "error", err)
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("upsert_batch", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if rollErr := tx.Rollback(); rollErr != nil {
			s.logger.Warn("failed to rollback transaction during batch upsert", "error", rollErr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO artifacts
			(id, tenant_id, project_id, layer, vector, content, doc_id, metadata, acl,
			 importance, rating, usage_count, consolidated, provenance, token_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return wrapError("upsert_batch", fmt.Errorf("failed to prepare statement: %w", err))
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			s.logger.Warn("failed to close statement during batch upsert", "error", closeErr)
		}
	}()

	for i, a := range as {
		if err := encoding.ValidateEmbedding(*a, s.config.VectorDim); err != nil {
			return wrapError("upsert_batch", fmt.Errorf("invalid artifact at index %d: %w", i, err))
		}

		projectID, err := s.resolveProjectID(ctx, a.TenantID, a.ProjectID, a.Project)
		if err != nil {
			return wrapError("upsert_batch", fmt.Errorf("project resolution failed at index %d: %w", i, err))
		}

		vectorBytes, err := encoding.EncodeVector(a.Vector)
		if err != nil {
			return wrapError("upsert_batch", fmt.Errorf("failed to encode vector at index %d: %w", i, err))
		}

		metadataJSON, err := encoding.EncodeMetadata(a.Metadata)
		if err != nil {
			return wrapError("upsert_batch", fmt.Errorf("failed to encode metadata at index %d: %w", i, err))
		}

		var aclJSON []byte
		if len(a.ACL) > 0 {
			aclJSON, err = json.Marshal(a.ACL)
			if err != nil {
				return wrapError("upsert_batch", fmt.Errorf("failed to marshal ACL at index %d: %w", i, err))
			}
		}

		var provenanceJSON []byte
		if len(a.Provenance) > 0 {
			provenanceJSON, err = json.Marshal(a.Provenance)
			if err != nil {
				return wrapError("upsert_batch", fmt.Errorf("failed to marshal provenance at index %d: %w", i, err))
			}
		}

		var docID sql.NullString
		if a.DocID != "" {
			docID.String = a.DocID
			docID.Valid = true
		}

		_, err = stmt.ExecContext(ctx, a.ID, a.TenantID, projectID, string(a.Layer), vectorBytes, a.Content, docID,
			metadataJSON, aclJSON, clampImportance(a.Importance), a.Rating, a.UsageCount,
			boolToInt(a.Consolidated), provenanceJSON, a.TokenCount)
		if err != nil {
			return wrapError("upsert_batch", fmt.Errorf("failed to insert artifact at index %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapError("upsert_batch", fmt.Errorf("failed to commit transaction: %w", err))
	}

	s.logger.Debug("batch upsert completed", "count", len(as))

	for _, a := range as {
		s.indexAfterUpsert(a.ID, a.Vector)
	}

	return nil
}

// indexAfterUpsert mirrors a write into the in-memory ANN indexes, best-effort.
func (s *SQLiteStore) indexAfterUpsert(id string, vector []float32) {
	if s.config.HNSW.Enabled && s.hnswIndex != nil {
		if err := s.hnswIndex.Insert(id, vector); err != nil {
			s.logger.Warn("failed to insert vector into HNSW index", "id", id, "error", err)
		}
	}
	if s.config.IndexType == IndexTypeIVF && s.ivfIndex != nil && s.ivfIndex.Trained {
		if err := s.ivfIndex.Add(id, vector); err != nil {
			s.logger.Warn("failed to add vector to IVF index", "id", id, "error", err)
		}
	}
}

// resolveProjectID resolves a project reference to its numeric ID, creating
// the tenant's default project on first use.
func (s *SQLiteStore) resolveProjectID(ctx context.Context, tenantID string, projectID int, projectName string) (int, error) {
	if projectID != 0 {
		return projectID, nil
	}
	if projectName != "" {
		project, err := s.GetProject(ctx, tenantID, projectName)
		if err != nil {
			return 0, fmt.Errorf("project '%s' not found: %w", projectName, err)
		}
		return project.ID, nil
	}
	project, err := s.getDefaultProject(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return project.ID, nil
}

func quantizerTrained(q interface{}) bool {
	if sq, ok := q.(*quantization.ScalarQuantizer); ok {
		return sq.Trained
	}
	if bq, ok := q.(*quantization.BinaryQuantizer); ok {
		return bq.Trained
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Delete removes an artifact by ID within a tenant scope.
func (s *SQLiteStore) Delete(ctx context.Context, tenantID, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("delete", ErrStoreClosed)
	}
	if id == "" {
		return wrapError("delete", fmt.Errorf("ID cannot be empty"))
	}
	if tenantID == "" {
		return wrapError("delete", ErrTenantRequired)
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return wrapError("delete", fmt.Errorf("failed to delete artifact: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapError("delete", fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return wrapError("delete", ErrNotFound)
	}

	if s.config.HNSW.Enabled && s.hnswIndex != nil {
		if err := s.hnswIndex.Delete(id); err != nil {
			s.logger.Warn("failed to delete vector from HNSW index", "id", id, "error", err)
		}
	}
	if s.ivfIndex != nil {
		if err := s.ivfIndex.Delete(id); err != nil {
			s.logger.Warn("failed to delete vector from IVF index", "id", id, "error", err)
		}
	}

	return nil
}

// DeleteByDocID removes all artifacts for a document within a tenant scope.
func (s *SQLiteStore) DeleteByDocID(ctx context.Context, tenantID, docID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("delete_by_doc_id", ErrStoreClosed)
	}
	if docID == "" {
		return wrapError("delete_by_doc_id", fmt.Errorf("doc ID cannot be empty"))
	}
	if tenantID == "" {
		return wrapError("delete_by_doc_id", ErrTenantRequired)
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM artifacts WHERE doc_id = ? AND tenant_id = ?", docID, tenantID)
	if err != nil {
		return wrapError("delete_by_doc_id", fmt.Errorf("failed to delete artifacts: %w", err))
	}

	return nil
}

// DeleteBatch removes multiple artifacts by ID within a tenant scope.
func (s *SQLiteStore) DeleteBatch(ctx context.Context, tenantID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete_batch", ErrStoreClosed)
	}
	if tenantID == "" {
		return wrapError("delete_batch", ErrTenantRequired)
	}
	if len(ids) == 0 {
		return nil
	}

	validIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			validIDs = append(validIDs, id)
		}
	}
	if len(validIDs) == 0 {
		return nil
	}

	totalRowsAffected := int64(0)
	chunkSize := 500
	for i := 0; i < len(validIDs); i += chunkSize {
		end := i + chunkSize
		if end > len(validIDs) {
			end = len(validIDs)
		}

		chunk := validIDs[i:end]
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, len(chunk)+1)
		for j, id := range chunk {
			placeholders[j] = "?"
			args[j] = id
		}
		args[len(chunk)] = tenantID

		query := fmt.Sprintf("DELETE FROM artifacts WHERE id IN (%s) AND tenant_id = ?", strings.Join(placeholders, ","))
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return wrapError("delete_batch", fmt.Errorf("failed to delete chunk: %w", err))
		}

		rows, err := result.RowsAffected()
		if err != nil {
			s.logger.Warn("failed to get rows affected during batch delete", "error", err)
		} else {
			totalRowsAffected += rows
		}
	}

	if totalRowsAffected == 0 {
		return wrapError("delete_batch", ErrNotFound)
	}

	if s.hnswIndex != nil {
		for _, id := range validIDs {
			if err := s.hnswIndex.Delete(id); err != nil {
				s.logger.Warn("failed to delete vector from HNSW index during batch delete", "id", id, "error", err)
			}
		}
	}
	if s.ivfIndex != nil {
		for _, id := range validIDs {
			if err := s.ivfIndex.Delete(id); err != nil {
				s.logger.Warn("failed to delete vector from IVF index during batch delete", "id", id, "error", err)
			}
		}
	}

	s.logger.Debug("batch delete completed", "deleted", totalRowsAffected)

	return nil
}

// DeleteByFilter removes artifacts matching filter within a tenant scope.
func (s *SQLiteStore) DeleteByFilter(ctx context.Context, tenantID string, filter *ArtifactFilter) error {
	if filter == nil || filter.IsEmpty() {
		return wrapError("delete_by_filter", fmt.Errorf("filter cannot be empty"))
	}
	if tenantID == "" {
		return wrapError("delete_by_filter", ErrTenantRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete_by_filter", ErrStoreClosed)
	}

	whereClause, params := filter.ToSQL()
	if whereClause == "" {
		return wrapError("delete_by_filter", fmt.Errorf("failed to build filter"))
	}
	whereClause = "tenant_id = ? AND (" + whereClause + ")"
	params = append([]interface{}{tenantID}, params...)

	idQuery := fmt.Sprintf("SELECT id FROM artifacts WHERE %s", whereClause)
	rows, err := s.db.QueryContext(ctx, idQuery, params...)
	if err != nil {
		return wrapError("delete_by_filter", fmt.Errorf("failed to query artifacts: %w", err))
	}

	var idsToDelete []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			idsToDelete = append(idsToDelete, id)
		}
	}
	if closeErr := rows.Close(); closeErr != nil {
		s.logger.Warn("failed to close rows during delete by filter", "error", closeErr)
	}

	if len(idsToDelete) == 0 {
		return nil
	}

	deleteQuery := fmt.Sprintf("DELETE FROM artifacts WHERE %s", whereClause)
	_, err = s.db.ExecContext(ctx, deleteQuery, params...)
	if err != nil {
		return wrapError("delete_by_filter", fmt.Errorf("failed to delete artifacts: %w", err))
	}

	if s.hnswIndex != nil {
		for _, id := range idsToDelete {
			if err := s.hnswIndex.Delete(id); err != nil {
				s.logger.Warn("failed to delete vector from HNSW index during filter delete", "id", id, "error", err)
			}
		}
	}
	if s.ivfIndex != nil {
		for _, id := range idsToDelete {
			if err := s.ivfIndex.Delete(id); err != nil {
				s.logger.Warn("failed to delete vector from IVF index during filter delete", "id", id, "error", err)
			}
		}
	}

	s.logger.Debug("delete by filter completed", "deleted", len(idsToDelete))

	return nil
}

// UpdateAccessStatsBatch increments usage_count and last_used_at for every
// artifact surfaced by a retrieval request, in one transaction.
func (s *SQLiteStore) UpdateAccessStatsBatch(ctx context.Context, tenantID string, ids []string, at time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("update_access_stats", ErrStoreClosed)
	}
	if tenantID == "" {
		return wrapError("update_access_stats", ErrTenantRequired)
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("update_access_stats", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE artifacts SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ? AND tenant_id = ?")
	if err != nil {
		return wrapError("update_access_stats", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, at, id, tenantID); err != nil {
			return wrapError("update_access_stats", err)
		}
	}

	return wrapError("update_access_stats", tx.Commit())
}

// AdjustImportanceByDelta applies a decay or reinforcement delta atomically,
// clamping the result to [0.01, 1.0], and returns the new value.
func (s *SQLiteStore) AdjustImportanceByDelta(ctx context.Context, tenantID, id string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, wrapError("adjust_importance", ErrStoreClosed)
	}
	if tenantID == "" {
		return 0, wrapError("adjust_importance", ErrTenantRequired)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapError("adjust_importance", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current float64
	err = tx.QueryRowContext(ctx, "SELECT importance FROM artifacts WHERE id = ? AND tenant_id = ?", id, tenantID).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, wrapError("adjust_importance", ErrNotFound)
	}
	if err != nil {
		return 0, wrapError("adjust_importance", err)
	}

	next := clampImportance(current + delta)

	if _, err := tx.ExecContext(ctx, "UPDATE artifacts SET importance = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND tenant_id = ?", next, id, tenantID); err != nil {
		return 0, wrapError("adjust_importance", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapError("adjust_importance", err)
	}

	return next, nil
}

// Clear removes all artifacts from the store (all tenants). Intended for
// test fixtures and local tooling, never exposed through pkg/rae.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("clear", ErrStoreClosed)
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM artifacts")
	if err != nil {
		return wrapError("clear", fmt.Errorf("failed to clear artifacts: %w", err))
	}

	s.logger.Info("cleared all artifacts")

	return nil
}

// ClearByDocID removes all artifacts for specific document IDs (all tenants).
func (s *SQLiteStore) ClearByDocID(ctx context.Context, docIDs []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("clear_by_doc_id", ErrStoreClosed)
	}
	if len(docIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("clear_by_doc_id", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if rollErr := tx.Rollback(); rollErr != nil {
			s.logger.Warn("failed to rollback transaction during clear by doc ID", "error", rollErr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM artifacts WHERE doc_id = ?")
	if err != nil {
		return wrapError("clear_by_doc_id", fmt.Errorf("failed to prepare statement: %w", err))
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			s.logger.Warn("failed to close statement during clear by doc ID", "error", closeErr)
		}
	}()

	for _, docID := range docIDs {
		if docID == "" {
			continue
		}
		if _, err = stmt.ExecContext(ctx, docID); err != nil {
			return wrapError("clear_by_doc_id", fmt.Errorf("failed to delete artifacts for doc_id %s: %w", docID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapError("clear_by_doc_id", fmt.Errorf("failed to commit transaction: %w", err))
	}

	s.logger.Debug("cleared artifacts by doc IDs", "count", len(docIDs))

	return nil
}
