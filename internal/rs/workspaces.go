package rs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// RegisterWorkspace records a workspace path as known, associating it
// with a project and an allow/deny decision.
func (s *Store) RegisterWorkspace(ctx context.Context, w *Workspace) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO known_workspaces (path, project_id, allowed, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET project_id = excluded.project_id, allowed = excluded.allowed
	`, w.Path, w.ProjectID, boolToInt(w.Allowed), now)
	if err != nil {
		return ccerrors.SqliteError("failed to register workspace", err)
	}
	return nil
}

// GetWorkspace returns the registry row for path, or nil if unknown.
func (s *Store) GetWorkspace(ctx context.Context, path string) (*Workspace, error) {
	row := s.db.QueryRowContext(ctx, `SELECT path, project_id, allowed, created_at FROM known_workspaces WHERE path = ?`, path)

	var w Workspace
	var allowed int
	var created string
	err := row.Scan(&w.Path, &w.ProjectID, &allowed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ccerrors.SqliteError("failed to query workspace", err)
	}
	w.Allowed = allowed != 0
	w.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &w, nil
}

// ListWorkspaces returns every registered workspace, ordered by path.
func (s *Store) ListWorkspaces(ctx context.Context) ([]*Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, project_id, allowed, created_at FROM known_workspaces ORDER BY path`)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to list workspaces", err)
	}
	defer rows.Close()

	var out []*Workspace
	for rows.Next() {
		var w Workspace
		var allowed int
		var created string
		if err := rows.Scan(&w.Path, &w.ProjectID, &allowed, &created); err != nil {
			return nil, ccerrors.SqliteError("failed to scan workspace row", err)
		}
		w.Allowed = allowed != 0
		w.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, &w)
	}
	return out, rows.Err()
}
