package rs

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// Store is a single RS connection namespace: one schema per process per
// data directory. It is safe for concurrent use; SQLite
// access is serialized through a single *sql.DB connection, matching
// the reference single-writer pattern for WAL-mode SQLite.
type Store struct {
	db   *sql.DB
	path string

	spCounter int64 // nested savepoint name counter
}

// Open opens (or creates) the relational store at <dataDir>/state.db and
// ensures the schema exists. Schema creation is idempotent: CREATE TABLE
// IF NOT EXISTS statements are safe to run on every Open.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, ccerrors.IoError("failed to create data directory", err)
	}
	path := filepath.Join(dataDir, "state.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to open state.db", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, ccerrors.SqliteError("failed to set pragma: "+p, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory RS instance, used for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, ccerrors.SqliteError("failed to open in-memory state db", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, path: ":memory:"}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying connection so internal/vs's SQLite backend
// can share this connection namespace for the semantic_vectors tables,
// rather than opening a second database file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS projects (
	project_id     TEXT PRIMARY KEY,
	repo_root      TEXT NOT NULL,
	default_ref    TEXT NOT NULL,
	vcs_mode       INTEGER NOT NULL DEFAULT 0,
	schema_version INTEGER NOT NULL DEFAULT 1,
	parser_version TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_manifest (
	project_id   TEXT NOT NULL,
	ref          TEXT NOT NULL,
	path         TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	language     TEXT NOT NULL DEFAULT '',
	mtime_ns     INTEGER NOT NULL DEFAULT 0,
	content_head TEXT NOT NULL DEFAULT '',
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (project_id, ref, path)
);
CREATE INDEX IF NOT EXISTS idx_file_manifest_ref ON file_manifest(project_id, ref);

CREATE TABLE IF NOT EXISTS symbol_relations (
	symbol_id        TEXT NOT NULL,
	symbol_stable_id TEXT NOT NULL,
	project_id       TEXT NOT NULL,
	ref              TEXT NOT NULL,
	path             TEXT NOT NULL,
	kind             TEXT NOT NULL,
	qualified_name   TEXT NOT NULL,
	name             TEXT NOT NULL,
	signature        TEXT NOT NULL DEFAULT '',
	line_start       INTEGER NOT NULL,
	line_end         INTEGER NOT NULL,
	parent_symbol_id TEXT NOT NULL DEFAULT '',
	content_hash     TEXT NOT NULL DEFAULT '',
	language         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (symbol_id)
);
CREATE INDEX IF NOT EXISTS idx_symbol_relations_ref ON symbol_relations(project_id, ref);
CREATE INDEX IF NOT EXISTS idx_symbol_relations_path ON symbol_relations(project_id, ref, path);
CREATE INDEX IF NOT EXISTS idx_symbol_relations_qn ON symbol_relations(project_id, ref, qualified_name);
CREATE INDEX IF NOT EXISTS idx_symbol_relations_name ON symbol_relations(project_id, ref, name);

CREATE TABLE IF NOT EXISTS symbol_edges (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id      TEXT NOT NULL,
	ref             TEXT NOT NULL,
	from_symbol_id  TEXT NOT NULL,
	to_symbol_id    TEXT NOT NULL DEFAULT '',
	to_name         TEXT NOT NULL DEFAULT '',
	edge_type       TEXT NOT NULL,
	confidence      TEXT NOT NULL,
	provider        TEXT NOT NULL DEFAULT '',
	outcome         TEXT NOT NULL DEFAULT '',
	weight          REAL NOT NULL DEFAULT 1.0,
	source_file     TEXT NOT NULL DEFAULT '',
	source_line     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_symbol_edges_from ON symbol_edges(from_symbol_id, edge_type);
CREATE INDEX IF NOT EXISTS idx_symbol_edges_to ON symbol_edges(to_symbol_id, edge_type);
CREATE INDEX IF NOT EXISTS idx_symbol_edges_ref ON symbol_edges(project_id, ref);
CREATE INDEX IF NOT EXISTS idx_symbol_edges_source ON symbol_edges(project_id, ref, source_file);

CREATE TABLE IF NOT EXISTS index_jobs (
	id              TEXT PRIMARY KEY,
	project_id      TEXT NOT NULL,
	ref             TEXT NOT NULL,
	status          TEXT NOT NULL,
	mode            TEXT NOT NULL DEFAULT 'full',
	files_total     INTEGER NOT NULL DEFAULT 0,
	files_processed INTEGER NOT NULL DEFAULT 0,
	progress_token  TEXT NOT NULL DEFAULT '',
	error_message   TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_index_jobs_ref ON index_jobs(project_id, ref);
CREATE INDEX IF NOT EXISTS idx_index_jobs_status ON index_jobs(status);

CREATE TABLE IF NOT EXISTS branch_state (
	project_id           TEXT NOT NULL,
	ref                  TEXT NOT NULL,
	last_indexed_commit  TEXT NOT NULL DEFAULT '',
	merge_base_commit    TEXT NOT NULL DEFAULT '',
	overlay_dir          TEXT NOT NULL DEFAULT '',
	is_default_branch    INTEGER NOT NULL DEFAULT 0,
	status               TEXT NOT NULL DEFAULT 'ready',
	file_count           INTEGER NOT NULL DEFAULT 0,
	symbol_count         INTEGER NOT NULL DEFAULT 0,
	updated_at           TEXT NOT NULL,
	PRIMARY KEY (project_id, ref)
);

CREATE TABLE IF NOT EXISTS tombstones (
	project_id TEXT NOT NULL,
	ref        TEXT NOT NULL,
	path       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (project_id, ref, path)
);

CREATE TABLE IF NOT EXISTS known_workspaces (
	path       TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	allowed    INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS semantic_vector_meta (
	project_id            TEXT NOT NULL,
	ref                   TEXT NOT NULL,
	embedding_model_version TEXT NOT NULL,
	dimensions            INTEGER NOT NULL,
	row_count             INTEGER NOT NULL DEFAULT 0,
	updated_at            TEXT NOT NULL,
	PRIMARY KEY (project_id, ref, embedding_model_version)
);

CREATE TABLE IF NOT EXISTS semantic_vectors (
	project_id              TEXT NOT NULL,
	ref                     TEXT NOT NULL,
	symbol_stable_id        TEXT NOT NULL,
	snippet_hash            TEXT NOT NULL,
	embedding_model_version TEXT NOT NULL,
	dim                     INTEGER NOT NULL,
	vector_blob             BLOB NOT NULL,
	content_hash            TEXT NOT NULL,
	line_start              INTEGER NOT NULL,
	line_end                INTEGER NOT NULL,
	language                TEXT NOT NULL DEFAULT '',
	path                    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (project_id, ref, embedding_model_version, symbol_stable_id, snippet_hash)
);
CREATE INDEX IF NOT EXISTS idx_semantic_vectors_partition
	ON semantic_vectors(project_id, ref, embedding_model_version);
`

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return ccerrors.SqliteError("failed to initialize schema", err)
	}
	return nil
}

// WithSavepoint runs fn inside a SQL savepoint with a unique,
// counter-derived name so nested calls compose safely inside an outer
// transaction the caller might already hold. On error the savepoint is rolled back; on success it is
// released.
func (s *Store) WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	n := atomic.AddInt64(&s.spCounter, 1)
	name := fmt.Sprintf("sp_%d", n)

	if _, err := s.db.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return ccerrors.SqliteError("failed to create savepoint", err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := s.db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return ccerrors.SqliteError("failed to roll back savepoint", rbErr)
		}
		_, _ = s.db.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		return err
	}
	if _, err := s.db.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return ccerrors.SqliteError("failed to release savepoint", err)
	}
	return nil
}
