package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Init initializes the SQLite database and creates necessary tables
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}

	// _journal_mode=WAL: better read concurrency across tenants sharing a file
	// _synchronous=NORMAL: good balance of durability and speed
	// _busy_timeout=5000: wait up to 5s for lock instead of failing immediately
	// _cache_size=-2000: use 2MB of memory for cache (negative value = kb)
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", s.config.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	s.db = db

	if _, err := s.db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return wrapError("init", fmt.Errorf("failed to enable foreign keys: %w", err))
	}

	if err := s.createTables(ctx); err != nil {
		return wrapError("init", err)
	}

	if err := s.initHNSWIndex(ctx); err != nil {
		return wrapError("init", err)
	}

	if err := s.initIVFIndex(ctx); err != nil {
		return wrapError("init", err)
	}

	s.logger.Info("database initialized", "path", s.config.Path)

	return nil
}

// createTables creates the necessary database tables.
func (s *SQLiteStore) createTables(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL DEFAULT 'default',
		name TEXT NOT NULL,
		dimensions INTEGER NOT NULL DEFAULT 0,
		description TEXT,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(tenant_id, name)
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		project_id INTEGER DEFAULT 1,
		layer TEXT NOT NULL DEFAULT 'episodic',
		vector BLOB NOT NULL,
		content TEXT NOT NULL,
		doc_id TEXT,
		metadata TEXT,
		acl TEXT, -- JSON list of allowed users/groups
		importance REAL NOT NULL DEFAULT 0.5,
		rating REAL NOT NULL DEFAULT 0,
		usage_count INTEGER NOT NULL DEFAULT 0,
		consolidated INTEGER NOT NULL DEFAULT 0,
		provenance TEXT, -- JSON list of source artifact IDs
		token_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_tenant_id ON artifacts(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_project_id ON artifacts(project_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_doc_id ON artifacts(doc_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_layer ON artifacts(tenant_id, layer);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at);
	CREATE INDEX IF NOT EXISTS idx_artifacts_importance ON artifacts(tenant_id, importance);
	CREATE INDEX IF NOT EXISTS idx_projects_tenant_name ON projects(tenant_id, name);

	-- SemanticView rows hold the long (high-fidelity) embedding produced by
	-- a particular model for an artifact. One artifact may carry several
	-- views across its lifetime as the embedding model used by the caller
	-- changes; the short vector on the artifacts row is always the
	-- currently active one for cheap ANN recall.
	CREATE TABLE IF NOT EXISTS semantic_views (
		tenant_id TEXT NOT NULL,
		artifact_id TEXT NOT NULL,
		model_id TEXT NOT NULL,
		vector BLOB NOT NULL,
		dimensions INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (artifact_id, model_id),
		FOREIGN KEY (artifact_id) REFERENCES artifacts(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_semantic_views_tenant ON semantic_views(tenant_id, artifact_id);

	CREATE TABLE IF NOT EXISTS index_snapshots (
		type TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- FTS5 virtual table backing the lexical (Match-1) prefilter stage.
	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(content, content='artifacts', content_rowid='rowid');

	CREATE TRIGGER IF NOT EXISTS artifacts_ai AFTER INSERT ON artifacts BEGIN
	  INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	CREATE TRIGGER IF NOT EXISTS artifacts_ad AFTER DELETE ON artifacts BEGIN
	  INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
	END;
	CREATE TRIGGER IF NOT EXISTS artifacts_au AFTER UPDATE ON artifacts BEGIN
	  INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
	  INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	`

	_, err := s.db.ExecContext(ctx, createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO projects (id, tenant_id, name, dimensions, description, created_at, updated_at)
		VALUES (1, 'default', 'default', ?, 'Default project', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, s.config.VectorDim)
	if err != nil {
		return fmt.Errorf("failed to create default project: %w", err)
	}

	return nil
}
