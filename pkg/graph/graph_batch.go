package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// BatchResult reports the outcome of a batch operation.
type BatchResult struct {
	SuccessCount int
	FailedCount  int
	Errors       []error
}

// UpsertEntitiesBatch inserts or updates multiple entities in one transaction.
func (g *GraphStore) UpsertEntitiesBatch(ctx context.Context, tenantID string, entities []*Entity) (*BatchResult, error) {
	if len(entities) == 0 {
		return &BatchResult{}, nil
	}

	result := &BatchResult{Errors: make([]error, 0)}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO graph_entities (id, tenant_id, name, entity_type, importance, properties, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			entity_type = excluded.entity_type,
			properties = excluded.properties,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		if e == nil || e.ID == "" || e.Name == "" {
			result.Errors = append(result.Errors, fmt.Errorf("invalid entity: missing ID or Name"))
			result.FailedCount++
			continue
		}

		var propertiesJSON []byte
		if e.Properties != nil {
			propertiesJSON, err = json.Marshal(e.Properties)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("failed to encode properties for %s: %w", e.ID, err))
				result.FailedCount++
				continue
			}
		}

		if _, err := stmt.ExecContext(ctx, e.ID, tenantID, e.Name, e.Type, e.Importance, string(propertiesJSON)); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to insert entity %s: %w", e.ID, err))
			result.FailedCount++
		} else {
			result.SuccessCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// DeleteEntitiesBatch deletes multiple entities in one transaction.
func (g *GraphStore) DeleteEntitiesBatch(ctx context.Context, tenantID string, entityIDs []string) (*BatchResult, error) {
	if len(entityIDs) == 0 {
		return &BatchResult{}, nil
	}

	placeholders := make([]string, len(entityIDs))
	args := make([]interface{}, 0, len(entityIDs)+1)
	args = append(args, tenantID)
	for i, id := range entityIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM graph_entities WHERE tenant_id = ? AND id IN (%s)", strings.Join(placeholders, ","))
	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete entities: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return &BatchResult{
		SuccessCount: int(rowsAffected),
		FailedCount:  len(entityIDs) - int(rowsAffected),
	}, nil
}

// UpsertTriplesBatch inserts or updates multiple triples in one transaction,
// applying the same highest-confidence-wins dedup rule as UpsertTriple.
func (g *GraphStore) UpsertTriplesBatch(ctx context.Context, tenantID string, triples []*GraphTriple) (*BatchResult, error) {
	if len(triples) == 0 {
		return &BatchResult{}, nil
	}

	result := &BatchResult{Errors: make([]error, 0)}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	selectStmt, err := tx.PrepareContext(ctx, `
		SELECT id, confidence FROM graph_triples
		WHERE tenant_id = ? AND subject_id = ? AND predicate = ? AND object_id = ?
	`)
	if err != nil {
		return nil, err
	}
	defer selectStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO graph_triples (id, tenant_id, subject_id, predicate, object_id, confidence, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer insertStmt.Close()

	updateStmt, err := tx.PrepareContext(ctx, `
		UPDATE graph_triples SET confidence = ?, source_id = ? WHERE tenant_id = ? AND id = ?
	`)
	if err != nil {
		return nil, err
	}
	defer updateStmt.Close()

	for _, tr := range triples {
		if tr == nil || tr.ID == "" || tr.Subject == "" || tr.Object == "" || tr.Predicate == "" {
			result.Errors = append(result.Errors, fmt.Errorf("invalid triple: missing required field"))
			result.FailedCount++
			continue
		}

		var existingID string
		var existingConfidence float64
		err := selectStmt.QueryRowContext(ctx, tenantID, tr.Subject, tr.Predicate, tr.Object).Scan(&existingID, &existingConfidence)

		switch {
		case err == sql.ErrNoRows:
			if _, err := insertStmt.ExecContext(ctx, tr.ID, tenantID, tr.Subject, tr.Predicate, tr.Object, tr.Confidence, tr.SourceID); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("failed to insert triple %s: %w", tr.ID, err))
				result.FailedCount++
				continue
			}
		case err != nil:
			result.Errors = append(result.Errors, fmt.Errorf("failed to check triple %s: %w", tr.ID, err))
			result.FailedCount++
			continue
		case tr.Confidence > existingConfidence:
			if _, err := updateStmt.ExecContext(ctx, tr.Confidence, tr.SourceID, tenantID, existingID); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("failed to update triple %s: %w", existingID, err))
				result.FailedCount++
				continue
			}
		}

		result.SuccessCount++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// DeleteTriplesBatch deletes multiple triples in one transaction.
func (g *GraphStore) DeleteTriplesBatch(ctx context.Context, tenantID string, tripleIDs []string) (*BatchResult, error) {
	if len(tripleIDs) == 0 {
		return &BatchResult{}, nil
	}

	placeholders := make([]string, len(tripleIDs))
	args := make([]interface{}, 0, len(tripleIDs)+1)
	args = append(args, tenantID)
	for i, id := range tripleIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM graph_triples WHERE tenant_id = ? AND id IN (%s)", strings.Join(placeholders, ","))
	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete triples: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return &BatchResult{
		SuccessCount: int(rowsAffected),
		FailedCount:  len(tripleIDs) - int(rowsAffected),
	}, nil
}
