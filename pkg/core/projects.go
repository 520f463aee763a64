package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Project represents a logical grouping of artifacts within a tenant.
// Project names are unique per tenant, not globally.
type Project struct {
	ID          int                    `json:"id"`
	TenantID    string                 `json:"tenant_id"`
	Name        string                 `json:"name"`
	Dimensions  int                    `json:"dimensions"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ProjectStats represents statistics for a project.
type ProjectStats struct {
	Name           string    `json:"name"`
	Count          int64     `json:"count"`
	Dimensions     int       `json:"dimensions"`
	Size           int64     `json:"size"`
	CreatedAt      time.Time `json:"created_at"`
	LastInsertedAt time.Time `json:"last_inserted_at,omitempty"`
}

// CreateProject creates a new project scoped to tenantID.
func (s *SQLiteStore) CreateProject(ctx context.Context, tenantID, name string, dimensions int) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, wrapError("create_project", ErrStoreClosed)
	}
	if tenantID == "" {
		return nil, wrapError("create_project", ErrTenantRequired)
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM projects WHERE tenant_id = ? AND name = ?)", tenantID, name).Scan(&exists)
	if err != nil {
		return nil, wrapError("create_project", fmt.Errorf("failed to check project existence: %w", err))
	}
	if exists {
		return nil, wrapError("create_project", fmt.Errorf("project '%s' already exists for tenant '%s'", name, tenantID))
	}

	if dimensions < 0 {
		return nil, wrapError("create_project", fmt.Errorf("dimensions must be non-negative"))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (tenant_id, name, dimensions, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, tenantID, name, dimensions)
	if err != nil {
		return nil, wrapError("create_project", fmt.Errorf("failed to create project: %w", err))
	}

	// GetProject takes the read lock itself; release the write lock first.
	s.mu.Unlock()
	defer s.mu.Lock()
	return s.GetProject(ctx, tenantID, name)
}

// GetProject retrieves a project by name within tenantID.
func (s *SQLiteStore) GetProject(ctx context.Context, tenantID, name string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_project", ErrStoreClosed)
	}

	project := &Project{}
	var metadataJSON sql.NullString
	var description sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, dimensions, description, metadata, created_at, updated_at
		FROM projects WHERE tenant_id = ? AND name = ?
	`, tenantID, name).Scan(
		&project.ID,
		&project.TenantID,
		&project.Name,
		&project.Dimensions,
		&description,
		&metadataJSON,
		&project.CreatedAt,
		&project.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("get_project", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get_project", fmt.Errorf("failed to get project: %w", err))
	}

	if description.Valid {
		project.Description = description.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &project.Metadata); err != nil {
			project.Metadata = nil
		}
	}

	return project, nil
}

// ListProjects lists all projects for tenantID.
func (s *SQLiteStore) ListProjects(ctx context.Context, tenantID string) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("list_projects", ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, dimensions, description, metadata, created_at, updated_at
		FROM projects WHERE tenant_id = ? ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, wrapError("list_projects", fmt.Errorf("failed to list projects: %w", err))
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project := &Project{}
		var metadataJSON sql.NullString
		var description sql.NullString

		err := rows.Scan(
			&project.ID,
			&project.TenantID,
			&project.Name,
			&project.Dimensions,
			&description,
			&metadataJSON,
			&project.CreatedAt,
			&project.UpdatedAt,
		)
		if err != nil {
			return nil, wrapError("list_projects", fmt.Errorf("failed to scan project: %w", err))
		}

		if description.Valid {
			project.Description = description.String
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &project.Metadata); err != nil {
				project.Metadata = nil
			}
		}

		projects = append(projects, project)
	}

	return projects, nil
}

// DeleteProject deletes a project and all of its artifacts within tenantID.
func (s *SQLiteStore) DeleteProject(ctx context.Context, tenantID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("delete_project", ErrStoreClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("delete_project", fmt.Errorf("failed to start transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	var projectID int
	err = tx.QueryRowContext(ctx, "SELECT id FROM projects WHERE tenant_id = ? AND name = ?", tenantID, name).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return wrapError("delete_project", ErrNotFound)
	}
	if err != nil {
		return wrapError("delete_project", fmt.Errorf("failed to find project: %w", err))
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM artifacts WHERE project_id = ? AND tenant_id = ?", projectID, tenantID); err != nil {
		return wrapError("delete_project", fmt.Errorf("failed to delete artifacts: %w", err))
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", projectID); err != nil {
		return wrapError("delete_project", fmt.Errorf("failed to delete project: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return wrapError("delete_project", fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// GetProjectStats returns statistics for a project within tenantID.
func (s *SQLiteStore) GetProjectStats(ctx context.Context, tenantID, name string) (*ProjectStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get_project_stats", ErrStoreClosed)
	}

	project, err := s.GetProject(ctx, tenantID, name)
	if err != nil {
		return nil, err
	}

	stats := &ProjectStats{
		Name:       project.Name,
		Dimensions: project.Dimensions,
		CreatedAt:  project.CreatedAt,
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(vector)), 0)
		FROM artifacts WHERE project_id = ? AND tenant_id = ?
	`, project.ID, tenantID).Scan(&stats.Count, &stats.Size)
	if err != nil {
		return nil, wrapError("get_project_stats", fmt.Errorf("failed to get stats: %w", err))
	}

	if stats.Count > 0 {
		err = s.db.QueryRowContext(ctx, `
			SELECT MAX(created_at) FROM artifacts WHERE project_id = ? AND tenant_id = ?
		`, project.ID, tenantID).Scan(&stats.LastInsertedAt)
		if err != nil {
			stats.LastInsertedAt = time.Time{}
		}
	}

	return stats, nil
}

// getDefaultProject gets or creates the tenant's default project. Callers
// hold s.mu for reading, so the row is inserted here directly rather than
// through CreateProject, which takes the write lock.
func (s *SQLiteStore) getDefaultProject(ctx context.Context, tenantID string) (*Project, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO projects (tenant_id, name, dimensions, created_at, updated_at)
		VALUES (?, 'default', ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, tenantID, s.config.VectorDim); err != nil {
		return nil, fmt.Errorf("failed to create default project: %w", err)
	}
	return s.GetProject(ctx, tenantID, "default")
}
