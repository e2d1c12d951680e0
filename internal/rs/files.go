package rs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// UpsertFiles replaces or inserts a batch of manifest entries in a single
// auto-committed statement group (no outer transaction), so progress is
// visible to concurrent readers as the indexing pipeline runs.
func (s *Store) UpsertFiles(ctx context.Context, files []*FileRecord) error {
	if len(files) == 0 {
		return nil
	}
	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO file_manifest (project_id, ref, path, content_hash, size_bytes, language, mtime_ns, content_head, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, ref, path) DO UPDATE SET
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			language = excluded.language,
			mtime_ns = excluded.mtime_ns,
			content_head = excluded.content_head,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return ccerrors.SqliteError("failed to prepare file upsert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, f.ProjectID, f.Ref, f.Path, f.ContentHash, f.SizeBytes, f.Language, f.MTimeNanos, f.ContentHead, now); err != nil {
			return ccerrors.SqliteError("failed to upsert file "+f.Path, err)
		}
	}
	return nil
}

// GetFile returns a single manifest entry, or nil if absent.
func (s *Store) GetFile(ctx context.Context, projectID, ref, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, ref, path, content_hash, size_bytes, language, mtime_ns, content_head, updated_at
		FROM file_manifest WHERE project_id = ? AND ref = ? AND path = ?`, projectID, ref, path)
	return scanFileRow(row)
}

func scanFileRow(row *sql.Row) (*FileRecord, error) {
	var f FileRecord
	var updated string
	err := row.Scan(&f.ProjectID, &f.Ref, &f.Path, &f.ContentHash, &f.SizeBytes, &f.Language, &f.MTimeNanos, &f.ContentHead, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ccerrors.SqliteError("failed to scan file row", err)
	}
	f.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &f, nil
}

// ListManifest returns all manifest entries for (project, ref). The
// returned set is exactly the file manifest for that ref (invariant 3).
func (s *Store) ListManifest(ctx context.Context, projectID, ref string) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, ref, path, content_hash, size_bytes, language, mtime_ns, content_head, updated_at
		FROM file_manifest WHERE project_id = ? AND ref = ? ORDER BY path`, projectID, ref)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to list manifest", err)
	}
	defer rows.Close()

	var out []*FileRecord
	for rows.Next() {
		var f FileRecord
		var updated string
		if err := rows.Scan(&f.ProjectID, &f.Ref, &f.Path, &f.ContentHash, &f.SizeBytes, &f.Language, &f.MTimeNanos, &f.ContentHead, &updated); err != nil {
			return nil, ccerrors.SqliteError("failed to scan manifest row", err)
		}
		f.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// DeleteFile removes a manifest entry and all rows that key off its
// (project_id, ref, path): symbols, edges sourced from it, and manifest
// row itself. Vectors are removed by the caller via internal/vs (vector
// deletes are keyed by symbol_stable_id, resolved first). This satisfies
// invariant 3: removing a file removes all its symbols/snippets/edges.
func (s *Store) DeleteFile(ctx context.Context, projectID, ref, path string) error {
	return s.WithSavepoint(ctx, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM symbol_edges WHERE project_id = ? AND ref = ? AND source_file = ?`, projectID, ref, path); err != nil {
			return ccerrors.SqliteError("failed to delete edges for file", err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM symbol_relations WHERE project_id = ? AND ref = ? AND path = ?`, projectID, ref, path); err != nil {
			return ccerrors.SqliteError("failed to delete symbols for file", err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM file_manifest WHERE project_id = ? AND ref = ? AND path = ?`, projectID, ref, path); err != nil {
			return ccerrors.SqliteError("failed to delete file manifest row", err)
		}
		return nil
	})
}

// WipeRef removes every manifest, symbol, and edge row for (project,
// ref) in one savepoint, used when an overlay is rebuilt from scratch
// after the merge base shifts.
func (s *Store) WipeRef(ctx context.Context, projectID, ref string) error {
	return s.WithSavepoint(ctx, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM symbol_edges WHERE project_id = ? AND ref = ?`, projectID, ref); err != nil {
			return ccerrors.SqliteError("failed to wipe edges for ref", err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM symbol_relations WHERE project_id = ? AND ref = ?`, projectID, ref); err != nil {
			return ccerrors.SqliteError("failed to wipe symbols for ref", err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM file_manifest WHERE project_id = ? AND ref = ?`, projectID, ref); err != nil {
			return ccerrors.SqliteError("failed to wipe manifest for ref", err)
		}
		return nil
	})
}

// ManifestPaths returns the set of paths currently in the manifest for
// (project, ref), used by the pipeline to detect removed files.
func (s *Store) ManifestPaths(ctx context.Context, projectID, ref string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM file_manifest WHERE project_id = ? AND ref = ?`, projectID, ref)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to list manifest paths", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, ccerrors.SqliteError("failed to scan manifest path", err)
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}
