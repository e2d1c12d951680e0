package rs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// UpsertProject creates or updates a project record.
func (s *Store) UpsertProject(ctx context.Context, p *Project) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (project_id, repo_root, default_ref, vcs_mode, schema_version, parser_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			repo_root = excluded.repo_root,
			default_ref = excluded.default_ref,
			vcs_mode = excluded.vcs_mode,
			schema_version = excluded.schema_version,
			parser_version = excluded.parser_version,
			updated_at = excluded.updated_at
	`, p.ID, p.RepoRoot, p.DefaultRef, boolToInt(p.VCSMode), p.SchemaVersion, p.ParserVersion, now, now)
	if err != nil {
		return ccerrors.SqliteError("failed to upsert project", err)
	}
	return nil
}

// GetProject returns a project by ID, or ProjectNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, repo_root, default_ref, vcs_mode, schema_version, parser_version, created_at, updated_at
		FROM projects WHERE project_id = ?`, id)

	var p Project
	var vcsMode int
	var created, updated string
	err := row.Scan(&p.ID, &p.RepoRoot, &p.DefaultRef, &vcsMode, &p.SchemaVersion, &p.ParserVersion, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ccerrors.ProjectNotFound(id)
	}
	if err != nil {
		return nil, ccerrors.SqliteError("failed to query project", err)
	}
	p.VCSMode = vcsMode != 0
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &p, nil
}

// ListProjects returns every registered project, ordered by ID, used by
// the health surface to enumerate the fleet without requiring the
// caller to already know project IDs.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, repo_root, default_ref, vcs_mode, schema_version, parser_version, created_at, updated_at
		FROM projects ORDER BY project_id`)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to list projects", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		var p Project
		var vcsMode int
		var created, updated string
		if err := rows.Scan(&p.ID, &p.RepoRoot, &p.DefaultRef, &vcsMode, &p.SchemaVersion, &p.ParserVersion, &created, &updated); err != nil {
			return nil, ccerrors.SqliteError("failed to scan project row", err)
		}
		p.VCSMode = vcsMode != 0
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
