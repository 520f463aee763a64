package core

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/index"
)

// DumpFormat represents the format for data export
type DumpFormat string

const (
	// DumpFormatJSON exports data as JSON
	DumpFormatJSON DumpFormat = "json"
	// DumpFormatJSONL exports data as JSON Lines (one JSON object per line)
	DumpFormatJSONL DumpFormat = "jsonl"
	// DumpFormatCSV exports data as CSV (vectors as JSON arrays)
	DumpFormatCSV DumpFormat = "csv"
)

// DumpOptions defines options for data export
type DumpOptions struct {
	TenantID       string          // Tenant whose artifacts are exported
	Format         DumpFormat      // Export format
	IncludeVectors bool            // Include vector data (can be large)
	IncludeIndex   bool            // Not read by Dump; index data is written by ExportIndex
	Filter         *MetadataFilter // Optional filter for selective export
	BatchSize      int             // Batch size for export (default: 1000)
}

// DefaultDumpOptions returns default dump options.
func DefaultDumpOptions(tenantID string) DumpOptions {
	return DumpOptions{
		TenantID:       tenantID,
		Format:         DumpFormatJSON,
		IncludeVectors: true,
		IncludeIndex:   false,
		Filter:         nil,
		BatchSize:      1000,
	}
}

// DumpStats provides statistics about the export operation
type DumpStats struct {
	TotalEmbeddings int    `json:"total_artifacts"`
	TotalDocuments  int    `json:"total_documents"`
	TotalCollections int   `json:"total_projects"`
	BytesWritten    int64  `json:"bytes_written"`
}

// ExportMetadata contains metadata about the export
type ExportMetadata struct {
	Version     string    `json:"version"`
	Dimensions  int       `json:"dimensions"`
	Count       int       `json:"count"`
	ExportedAt  string    `json:"exported_at"`
	Config      Config    `json:"config"`
}

// ImportStats provides statistics about the import operation
type ImportStats struct {
	TotalEmbeddings int      `json:"total_artifacts"`
	TotalDocuments  int      `json:"total_documents"`
	FailedCount     int      `json:"failed_count"`
	SkippedCount    int      `json:"skipped_count"`
}

// Dump exports all artifacts to a writer in the specified format
func (s *SQLiteStore) Dump(ctx context.Context, w io.Writer, opts DumpOptions) (*DumpStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("dump", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("dump", ErrTenantRequired)
	}

	switch opts.Format {
	case DumpFormatJSON:
		return s.dumpJSON(ctx, w, opts)
	case DumpFormatJSONL:
		return s.dumpJSONL(ctx, w, opts)
	case DumpFormatCSV:
		return s.dumpCSV(ctx, w, opts)
	default:
		return nil, wrapError("dump", fmt.Errorf("unsupported format: %s", opts.Format))
	}
}

// dumpJSON exports data as a JSON array
func (s *SQLiteStore) dumpJSON(ctx context.Context, w io.Writer, opts DumpOptions) (*DumpStats, error) {
	stats := &DumpStats{}

	// Get all artifacts
	artifacts, err := s.getAllEmbeddings(ctx, opts)
	if err != nil {
		return nil, err
	}
	stats.TotalEmbeddings = len(artifacts)

	// Get metadata
	schemaStats, _ := s.Stats(ctx)
	stats.TotalDocuments = int(schemaStats.Count)

	// Build export structure
	export := struct {
		Metadata   ExportMetadata `json:"metadata"`
		Embeddings []*MemoryArtifact   `json:"artifacts"`
	}{
		Metadata: ExportMetadata{
			Version:    "1.0",
			Dimensions: schemaStats.Dimensions,
			Count:      len(artifacts),
			ExportedAt: currentTimeStr(),
			Config:     s.config,
		},
		Embeddings: artifacts,
	}

	// Encode and write
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return nil, wrapError("dump_json", fmt.Errorf("failed to encode JSON: %w", err))
	}

	return stats, nil
}

// dumpJSONL exports data as JSON Lines (one JSON per line)
func (s *SQLiteStore) dumpJSONL(ctx context.Context, w io.Writer, opts DumpOptions) (*DumpStats, error) {
	stats := &DumpStats{}

	artifacts, err := s.getAllEmbeddings(ctx, opts)
	if err != nil {
		return nil, err
	}
	stats.TotalEmbeddings = len(artifacts)

	encoder := json.NewEncoder(w)
	for _, emb := range artifacts {
		if err := encoder.Encode(emb); err != nil {
			return stats, wrapError("dump_jsonl", fmt.Errorf("failed to encode: %w", err))
		}
	}

	return stats, nil
}

// dumpCSV exports data as CSV
func (s *SQLiteStore) dumpCSV(ctx context.Context, w io.Writer, opts DumpOptions) (*DumpStats, error) {
	stats := &DumpStats{}

	artifacts, err := s.getAllEmbeddings(ctx, opts)
	if err != nil {
		return nil, err
	}
	stats.TotalEmbeddings = len(artifacts)

	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Write header
	headers := []string{"id", "content", "doc_id", "metadata"}
	if opts.IncludeVectors {
		headers = append(headers, "vector")
	}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}

	// Write data
	for _, emb := range artifacts {
		row := []string{emb.ID, emb.Content, emb.DocID}
		if emb.Metadata != nil {
			metaJSON, _ := json.Marshal(emb.Metadata)
			row = append(row, string(metaJSON))
		} else {
			row = append(row, "")
		}
		if opts.IncludeVectors {
			vecJSON, _ := json.Marshal(emb.Vector)
			row = append(row, string(vecJSON))
		}
		if err := writer.Write(row); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// getAllEmbeddings retrieves all artifacts for opts.TenantID, with optional filtering.
func (s *SQLiteStore) getAllEmbeddings(ctx context.Context, opts DumpOptions) ([]*MemoryArtifact, error) {
	query := `
		SELECT a.id, a.tenant_id, a.project_id, p.name, a.layer, a.vector, a.content, a.doc_id, a.metadata,
			a.importance, a.rating, a.usage_count, a.consolidated, a.provenance, a.token_count,
			a.created_at, a.updated_at, a.last_used_at
		FROM artifacts a
		LEFT JOIN projects p ON a.project_id = p.id
		WHERE a.tenant_id = ?
	`
	args := []interface{}{opts.TenantID}

	if opts.Filter != nil && !opts.Filter.IsEmpty() {
		whereClause, params := opts.Filter.ToSQL()
		if whereClause != "" {
			whereClause = strings.ReplaceAll(whereClause, "json_extract(metadata", "json_extract(a.metadata")
			query += " AND (" + whereClause + ")"
			args = append(args, params...)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("get_all_artifacts", fmt.Errorf("failed to query: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var artifacts []*MemoryArtifact
	for rows.Next() {
		scored, err := s.scanArtifact(rows)
		if err != nil {
			continue
		}

		emb := scored.MemoryArtifact
		if !opts.IncludeVectors {
			emb.Vector = nil
		}

		artifacts = append(artifacts, &emb)
	}

	return artifacts, rows.Err()
}

// Load imports artifacts from a reader
func (s *SQLiteStore) Load(ctx context.Context, r io.Reader, opts LoadOptions) (*ImportStats, error) {
	if s.closed {
		return nil, wrapError("load", ErrStoreClosed)
	}
	if opts.TenantID == "" {
		return nil, wrapError("load", ErrTenantRequired)
	}

	switch opts.Format {
	case DumpFormatJSON:
		return s.loadJSON(ctx, r, opts)
	case DumpFormatJSONL:
		return s.loadJSONL(ctx, r, opts)
	default:
		return nil, wrapError("load", fmt.Errorf("unsupported format: %s", opts.Format))
	}
}

// LoadOptions defines options for data import
type LoadOptions struct {
	TenantID     string     // Tenant new artifacts are assigned to if unset on the record
	Format       DumpFormat // Import format
	SkipExisting bool       // Skip existing artifacts (by ID)
	Replace      bool       // Not read; Load always upserts, replacing existing artifacts
	BatchSize    int        // Batch size for import (default: 100)
	Upsert       bool       // Not read; Load always upserts
}

// DefaultLoadOptions returns default load options.
func DefaultLoadOptions(tenantID string) LoadOptions {
	return LoadOptions{
		TenantID:     tenantID,
		Format:       DumpFormatJSON,
		SkipExisting: true,
		Replace:      false,
		BatchSize:    100,
		Upsert:       true,
	}
}

// loadJSON imports data from JSON format
func (s *SQLiteStore) loadJSON(ctx context.Context, r io.Reader, opts LoadOptions) (*ImportStats, error) {
	stats := &ImportStats{}

	var export struct {
		Metadata   ExportMetadata `json:"metadata"`
		Embeddings []*MemoryArtifact   `json:"artifacts"`
	}

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&export); err != nil {
		return nil, wrapError("load_json", fmt.Errorf("failed to decode JSON: %w", err))
	}

	// Batch upsert
	for _, emb := range export.Embeddings {
		skipped, err := s.processImportEmbedding(ctx, emb, opts)
		if err != nil {
			stats.FailedCount++
			continue
		}
		if skipped {
			stats.SkippedCount++
		} else {
			stats.TotalEmbeddings++
		}
	}

	return stats, nil
}

// loadJSONL imports data from JSON Lines format
func (s *SQLiteStore) loadJSONL(ctx context.Context, r io.Reader, opts LoadOptions) (*ImportStats, error) {
	stats := &ImportStats{}

	decoder := json.NewDecoder(r)
	for {
		var emb MemoryArtifact
		if err := decoder.Decode(&emb); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			stats.FailedCount++
			continue
		}

		skipped, err := s.processImportEmbedding(ctx, &emb, opts)
		if err != nil {
			stats.FailedCount++
			continue
		}
		if skipped {
			stats.SkippedCount++
		} else {
			stats.TotalEmbeddings++
		}
	}

	return stats, nil
}

// processImportEmbedding processes a single embedding during import
func (s *SQLiteStore) processImportEmbedding(ctx context.Context, emb *MemoryArtifact, opts LoadOptions) (skipped bool, err error) {
	tenantID := emb.TenantID
	if tenantID == "" {
		tenantID = opts.TenantID
	}
	if tenantID == "" {
		return false, wrapError("process_import_embedding", ErrTenantRequired)
	}
	emb.TenantID = tenantID

	// Check if exists
	if opts.SkipExisting {
		existing, _ := s.Get(ctx, tenantID, emb.ID)
		if existing != nil {
			return true, nil
		}
	}

	// Both branches upsert; there is no insert-only path
	if opts.Upsert {
		return false, s.Upsert(ctx, emb)
	}

	return false, s.Upsert(ctx, emb)
}

// DumpToFile exports data to a file
func (s *SQLiteStore) DumpToFile(ctx context.Context, filepath string, opts DumpOptions) (*DumpStats, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, wrapError("dump_to_file", fmt.Errorf("failed to create file: %w", err))
	}
	defer func() { _ = file.Close() }()

	stats, err := s.Dump(ctx, file, opts)
	if err != nil {
		// Remove partial file on error
		_ = os.Remove(filepath)
		return nil, err
	}

	return stats, nil
}

// LoadFromFile imports data from a file
func (s *SQLiteStore) LoadFromFile(ctx context.Context, filepath string, opts LoadOptions) (*ImportStats, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, wrapError("load_from_file", fmt.Errorf("failed to open file: %w", err))
	}
	defer func() { _ = file.Close() }()

	return s.Load(ctx, file, opts)
}

// ExportIndex exports the index data (HNSW/IVF) to a file
func (s *SQLiteStore) ExportIndex(ctx context.Context, filepath string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("export_index", ErrStoreClosed)
	}

	file, err := os.Create(filepath)
	if err != nil {
		return wrapError("export_index", fmt.Errorf("failed to create file: %w", err))
	}
	defer func() { _ = file.Close() }()

	// Export HNSW index if available
	if s.hnswIndex != nil {
		if err := s.hnswIndex.Save(file); err != nil {
			return wrapError("export_index", fmt.Errorf("failed to save HNSW: %w", err))
		}
		return nil
	}

	// Export IVF index if available
	if s.ivfIndex != nil {
		if err := s.ivfIndex.Save(file); err != nil {
			return wrapError("export_index", fmt.Errorf("failed to save IVF: %w", err))
		}
		return nil
	}

	return wrapError("export_index", fmt.Errorf("no index to export"))
}

// ImportIndex imports index data from a file
func (s *SQLiteStore) ImportIndex(ctx context.Context, filepath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("import_index", ErrStoreClosed)
	}

	file, err := os.Open(filepath)
	if err != nil {
		return wrapError("import_index", fmt.Errorf("failed to open file: %w", err))
	}
	defer func() { _ = file.Close() }()

	// Try to load as HNSW first
	if s.config.HNSW.Enabled {
		if s.hnswIndex == nil {
			// Initialize index if not exists
			// HNSW needs distance function, use cosine similarity as default
			s.hnswIndex = index.NewHNSW(s.config.HNSW.M, s.config.HNSW.EfConstruction, func(a, b []float32) float32 {
				// Convert cosine similarity to distance (1 - similarity)
				return float32(1.0 - CosineSimilarity(a, b))
			})
		}

		if err := s.hnswIndex.Load(file); err != nil {
			// Try IVF format
			file.Seek(0, 0)
			if s.ivfIndex == nil {
				s.ivfIndex = index.NewIVFIndex(s.config.VectorDim, s.config.IVF.NCentroids)
			}
			if err := s.ivfIndex.Load(file); err != nil {
				return wrapError("import_index", fmt.Errorf("failed to load index: %w", err))
			}
		}
		return nil
	}

	return wrapError("import_index", fmt.Errorf("no index enabled in config"))
}

// Backup creates a full backup of the database to a file
func (s *SQLiteStore) Backup(ctx context.Context, filepath string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("backup", ErrStoreClosed)
	}

	// Copy the database with VACUUM INTO
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", filepath))
	if err != nil {
		return wrapError("backup", fmt.Errorf("failed to create backup: %w", err))
	}

	return nil
}

// currentTimeStr returns current time as ISO string
func currentTimeStr() string {
	return time.Now().Format(time.RFC3339)
}

// Helper to convert import stats to string
func (s *ImportStats) String() string {
	return fmt.Sprintf("ImportStats{Total: %d, Failed: %d, Skipped: %d}",
		s.TotalEmbeddings, s.FailedCount, s.SkippedCount)
}
