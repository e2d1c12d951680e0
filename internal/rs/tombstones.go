package rs

import (
	"context"
	"time"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// UpsertTombstones marks a batch of base paths as deleted in ref,
// recording that the overlay for ref must hide them even though they
// exist in the shared base.
func (s *Store) UpsertTombstones(ctx context.Context, projectID, ref string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO tombstones (project_id, ref, path, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, ref, path) DO NOTHING
	`)
	if err != nil {
		return ccerrors.SqliteError("failed to prepare tombstone insert", err)
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, projectID, ref, p, now); err != nil {
			return ccerrors.SqliteError("failed to insert tombstone for "+p, err)
		}
	}
	return nil
}

// ClearTombstone removes a tombstone, used when a file that was deleted
// relative to base reappears in a later commit on ref.
func (s *Store) ClearTombstone(ctx context.Context, projectID, ref, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tombstones WHERE project_id = ? AND ref = ? AND path = ?`, projectID, ref, path)
	if err != nil {
		return ccerrors.SqliteError("failed to clear tombstone", err)
	}
	return nil
}

// ListTombstones returns every tombstoned path for (project, ref).
func (s *Store) ListTombstones(ctx context.Context, projectID, ref string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM tombstones WHERE project_id = ? AND ref = ?`, projectID, ref)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to list tombstones", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, ccerrors.SqliteError("failed to scan tombstone row", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClearAllTombstones removes every tombstone for (project, ref), used
// when an overlay ref is rebuilt from scratch against a new base.
func (s *Store) ClearAllTombstones(ctx context.Context, projectID, ref string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tombstones WHERE project_id = ? AND ref = ?`, projectID, ref)
	if err != nil {
		return ccerrors.SqliteError("failed to clear all tombstones", err)
	}
	return nil
}
