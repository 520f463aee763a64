package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
)

// Entity is a canonical node in a tenant's knowledge graph: a person, place,
// concept, or other noun the extractor has recognized across one or more
// memory artifacts. Importance is not set at creation time — it is updated
// in place by PageRank.
type Entity struct {
	ID         string                 `json:"id"`
	TenantID   string                 `json:"tenant_id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type,omitempty"`
	Importance float64                `json:"importance"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// GraphTriple is a directed, confidence-weighted relation between two
// entities, attributed to the memory artifact it was extracted from.
type GraphTriple struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Subject    string    `json:"subject"`   // Entity.ID
	Predicate  string    `json:"predicate"` // relation type, e.g. "IMPORTS"
	Object     string    `json:"object"`    // Entity.ID
	Confidence float64   `json:"confidence"`
	SourceID   string    `json:"source_id"` // MemoryArtifact.ID, for provenance
	CreatedAt  time.Time `json:"created_at"`
}

// GraphFilter narrows traversal and listing queries.
type GraphFilter struct {
	EntityTypes []string `json:"entity_types,omitempty"`
	Predicates  []string `json:"predicates,omitempty"`
	MaxDepth    int      `json:"max_depth,omitempty"`
}

// GraphResult is a subgraph: a set of entities and the triples among them.
type GraphResult struct {
	Entities []*Entity      `json:"entities"`
	Triples  []*GraphTriple `json:"triples"`
}

// GraphStore provides tenant-scoped knowledge graph operations backed by the
// same SQLite database as the vector store.
type GraphStore struct {
	store *core.SQLiteStore
	db    *sql.DB
}

// NewGraphStore creates a graph store layered over an existing vector store.
func NewGraphStore(s *core.SQLiteStore) *GraphStore {
	return &GraphStore{
		store: s,
		db:    s.GetDB(),
	}
}

// InitGraphSchema creates the graph tables if they don't exist.
func (g *GraphStore) InitGraphSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS graph_entities (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		entity_type TEXT,
		importance REAL DEFAULT 0,
		properties TEXT, -- JSON
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS graph_triples (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object_id TEXT NOT NULL,
		confidence REAL DEFAULT 1.0,
		source_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, id),
		FOREIGN KEY (tenant_id, subject_id) REFERENCES graph_entities(tenant_id, id) ON DELETE CASCADE,
		FOREIGN KEY (tenant_id, object_id) REFERENCES graph_entities(tenant_id, id) ON DELETE CASCADE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_name ON graph_entities(tenant_id, name);
	CREATE INDEX IF NOT EXISTS idx_triples_subject ON graph_triples(tenant_id, subject_id);
	CREATE INDEX IF NOT EXISTS idx_triples_object ON graph_triples(tenant_id, object_id);
	CREATE INDEX IF NOT EXISTS idx_triples_predicate ON graph_triples(tenant_id, predicate);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_triples_spo ON graph_triples(tenant_id, subject_id, predicate, object_id);
	`

	_, err := g.db.ExecContext(ctx, schema)
	return err
}

// UpsertEntity inserts or updates an entity, keyed by (tenant, id). Entity
// names are unique per tenant: inserting a second entity with a name already
// taken by a different ID fails rather than silently merging.
func (g *GraphStore) UpsertEntity(ctx context.Context, e *Entity) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("invalid entity: missing ID")
	}
	if e.TenantID == "" {
		return fmt.Errorf("invalid entity: missing TenantID")
	}
	if e.Name == "" {
		return fmt.Errorf("invalid entity: missing Name")
	}

	var propertiesJSON []byte
	var err error
	if e.Properties != nil {
		propertiesJSON, err = json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("failed to encode properties: %w", err)
		}
	}

	var existingID string
	err = g.db.QueryRowContext(ctx,
		`SELECT id FROM graph_entities WHERE tenant_id = ? AND name = ?`,
		e.TenantID, e.Name,
	).Scan(&existingID)
	if err == nil && existingID != e.ID {
		return fmt.Errorf("entity name %q already used by entity %s", e.Name, existingID)
	}
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	_, err = g.db.ExecContext(ctx, `
		INSERT INTO graph_entities (id, tenant_id, name, entity_type, importance, properties, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			entity_type = excluded.entity_type,
			properties = excluded.properties,
			updated_at = CURRENT_TIMESTAMP
	`, e.ID, e.TenantID, e.Name, e.Type, e.Importance, string(propertiesJSON))
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}
	return nil
}

// GetEntity retrieves an entity by ID, scoped to tenantID.
func (g *GraphStore) GetEntity(ctx context.Context, tenantID, id string) (*Entity, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, entity_type, importance, properties, created_at, updated_at
		FROM graph_entities WHERE tenant_id = ? AND id = ?
	`, tenantID, id)
	return scanEntity(row)
}

// GetEntityByName looks up an entity by its canonical (case-folded) name.
func (g *GraphStore) GetEntityByName(ctx context.Context, tenantID, name string) (*Entity, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, entity_type, importance, properties, created_at, updated_at
		FROM graph_entities WHERE tenant_id = ? AND name = ?
	`, tenantID, name)
	return scanEntity(row)
}

func scanEntity(row *sql.Row) (*Entity, error) {
	var e Entity
	var propertiesJSON sql.NullString
	err := row.Scan(&e.ID, &e.TenantID, &e.Name, &e.Type, &e.Importance, &propertiesJSON, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity not found")
	}
	if err != nil {
		return nil, err
	}
	if propertiesJSON.Valid && propertiesJSON.String != "" {
		if err := json.Unmarshal([]byte(propertiesJSON.String), &e.Properties); err != nil {
			return nil, fmt.Errorf("failed to decode properties: %w", err)
		}
	}
	return &e, nil
}

// DeleteEntity removes an entity and, via FK cascade, every triple that
// references it.
func (g *GraphStore) DeleteEntity(ctx context.Context, tenantID, id string) error {
	_, err := g.db.ExecContext(ctx, `DELETE FROM graph_entities WHERE tenant_id = ? AND id = ?`, tenantID, id)
	return err
}

// GetAllEntities lists entities for a tenant, optionally filtered by type.
func (g *GraphStore) GetAllEntities(ctx context.Context, tenantID string, filter *GraphFilter) ([]*Entity, error) {
	query := `SELECT id, tenant_id, name, entity_type, importance, properties, created_at, updated_at
		FROM graph_entities WHERE tenant_id = ?`
	args := []interface{}{tenantID}

	if filter != nil && len(filter.EntityTypes) > 0 {
		placeholders := make([]string, len(filter.EntityTypes))
		for i, t := range filter.EntityTypes {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += ` AND entity_type IN (` + strings.Join(placeholders, ",") + `)`
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var e Entity
		var propertiesJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Name, &e.Type, &e.Importance, &propertiesJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if propertiesJSON.Valid && propertiesJSON.String != "" {
			if err := json.Unmarshal([]byte(propertiesJSON.String), &e.Properties); err != nil {
				return nil, fmt.Errorf("failed to decode properties: %w", err)
			}
		}
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}

// UpsertTriple inserts or updates a relation between two entities. Triples
// are deduplicated by (subject, predicate, object): if a triple with that
// exact key already exists, the higher-confidence version wins.
func (g *GraphStore) UpsertTriple(ctx context.Context, tr *GraphTriple) error {
	if tr == nil || tr.ID == "" {
		return fmt.Errorf("invalid triple: missing ID")
	}
	if tr.TenantID == "" {
		return fmt.Errorf("invalid triple: missing TenantID")
	}
	if tr.Subject == "" || tr.Object == "" {
		return fmt.Errorf("invalid triple: missing subject or object")
	}
	if tr.Predicate == "" {
		return fmt.Errorf("invalid triple: missing predicate")
	}

	var existingID string
	var existingConfidence float64
	err := g.db.QueryRowContext(ctx, `
		SELECT id, confidence FROM graph_triples
		WHERE tenant_id = ? AND subject_id = ? AND predicate = ? AND object_id = ?
	`, tr.TenantID, tr.Subject, tr.Predicate, tr.Object).Scan(&existingID, &existingConfidence)

	if err == nil {
		if tr.Confidence <= existingConfidence {
			return nil
		}
		_, err = g.db.ExecContext(ctx, `
			UPDATE graph_triples SET confidence = ?, source_id = ?
			WHERE tenant_id = ? AND id = ?
		`, tr.Confidence, tr.SourceID, tr.TenantID, existingID)
		return err
	}
	if err != sql.ErrNoRows {
		return err
	}

	_, err = g.db.ExecContext(ctx, `
		INSERT INTO graph_triples (id, tenant_id, subject_id, predicate, object_id, confidence, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tr.ID, tr.TenantID, tr.Subject, tr.Predicate, tr.Object, tr.Confidence, tr.SourceID)
	if err != nil {
		return fmt.Errorf("failed to insert triple: %w", err)
	}
	return nil
}

// GetTriples returns the triples touching entityID in the given direction:
// "out" (entityID is subject), "in" (entityID is object), or "both".
func (g *GraphStore) GetTriples(ctx context.Context, tenantID, entityID, direction string) ([]*GraphTriple, error) {
	if direction == "" {
		direction = "both"
	}

	var query string
	var args []interface{}
	switch direction {
	case "out":
		query = `SELECT id, tenant_id, subject_id, predicate, object_id, confidence, source_id, created_at
			FROM graph_triples WHERE tenant_id = ? AND subject_id = ?`
		args = []interface{}{tenantID, entityID}
	case "in":
		query = `SELECT id, tenant_id, subject_id, predicate, object_id, confidence, source_id, created_at
			FROM graph_triples WHERE tenant_id = ? AND object_id = ?`
		args = []interface{}{tenantID, entityID}
	default:
		query = `SELECT id, tenant_id, subject_id, predicate, object_id, confidence, source_id, created_at
			FROM graph_triples WHERE tenant_id = ? AND (subject_id = ? OR object_id = ?)`
		args = []interface{}{tenantID, entityID, entityID}
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triples []*GraphTriple
	for rows.Next() {
		var tr GraphTriple
		var sourceID sql.NullString
		if err := rows.Scan(&tr.ID, &tr.TenantID, &tr.Subject, &tr.Predicate, &tr.Object, &tr.Confidence, &sourceID, &tr.CreatedAt); err != nil {
			return nil, err
		}
		tr.SourceID = sourceID.String
		triples = append(triples, &tr)
	}
	return triples, rows.Err()
}

// TriplesBySource returns every triple attributed to sourceID (a
// MemoryArtifact.ID), i.e. the entities that artifact mentions. Used by the
// retrieval pipeline's graph-expansion stage to seed traversal from a
// surviving artifact.
func (g *GraphStore) TriplesBySource(ctx context.Context, tenantID, sourceID string) ([]*GraphTriple, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, tenant_id, subject_id, predicate, object_id, confidence, source_id, created_at
		FROM graph_triples WHERE tenant_id = ? AND source_id = ?
	`, tenantID, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triples []*GraphTriple
	for rows.Next() {
		var tr GraphTriple
		var src sql.NullString
		if err := rows.Scan(&tr.ID, &tr.TenantID, &tr.Subject, &tr.Predicate, &tr.Object, &tr.Confidence, &src, &tr.CreatedAt); err != nil {
			return nil, err
		}
		tr.SourceID = src.String
		triples = append(triples, &tr)
	}
	return triples, rows.Err()
}

// getTripleByID retrieves a single triple, used when reconstructing a path.
func (g *GraphStore) getTripleByID(ctx context.Context, tenantID, id string) (*GraphTriple, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, subject_id, predicate, object_id, confidence, source_id, created_at
		FROM graph_triples WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	var tr GraphTriple
	var sourceID sql.NullString
	err := row.Scan(&tr.ID, &tr.TenantID, &tr.Subject, &tr.Predicate, &tr.Object, &tr.Confidence, &sourceID, &tr.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("triple not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	tr.SourceID = sourceID.String
	return &tr, nil
}

// DeleteTriple removes a single triple by ID.
func (g *GraphStore) DeleteTriple(ctx context.Context, tenantID, id string) error {
	_, err := g.db.ExecContext(ctx, `DELETE FROM graph_triples WHERE tenant_id = ? AND id = ?`, tenantID, id)
	return err
}

// contains reports whether slice contains value.
func contains(slice []string, value string) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}
