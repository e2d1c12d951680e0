package rs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// UpsertBranchState creates or updates the sync/status record for
// (project, ref).
func (s *Store) UpsertBranchState(ctx context.Context, b *BranchState) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO branch_state (project_id, ref, last_indexed_commit, merge_base_commit, overlay_dir, is_default_branch, status, file_count, symbol_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, ref) DO UPDATE SET
			last_indexed_commit = excluded.last_indexed_commit,
			merge_base_commit = excluded.merge_base_commit,
			overlay_dir = excluded.overlay_dir,
			is_default_branch = excluded.is_default_branch,
			status = excluded.status,
			file_count = excluded.file_count,
			symbol_count = excluded.symbol_count,
			updated_at = excluded.updated_at
	`, b.ProjectID, b.Ref, b.LastIndexedCommit, b.MergeBaseCommit, b.OverlayDir, boolToInt(b.IsDefaultBranch),
		string(b.Status), b.FileCount, b.SymbolCount, now)
	if err != nil {
		return ccerrors.SqliteError("failed to upsert branch state", err)
	}
	return nil
}

// GetBranchState returns the sync/status record for (project, ref), or
// nil if the ref has never been indexed. Legacy status strings are
// normalized to their current equivalent on read.
func (s *Store) GetBranchState(ctx context.Context, projectID, ref string) (*BranchState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, ref, last_indexed_commit, merge_base_commit, overlay_dir, is_default_branch, status, file_count, symbol_count, updated_at
		FROM branch_state WHERE project_id = ? AND ref = ?`, projectID, ref)

	var b BranchState
	var isDefault int
	var status, updated string
	err := row.Scan(&b.ProjectID, &b.Ref, &b.LastIndexedCommit, &b.MergeBaseCommit, &b.OverlayDir, &isDefault, &status, &b.FileCount, &b.SymbolCount, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ccerrors.SqliteError("failed to query branch state", err)
	}
	b.IsDefaultBranch = isDefault != 0
	b.Status = normalizeBranchStatus(status)
	b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &b, nil
}

// ListBranches returns every indexed ref for a project, ordered by ref.
func (s *Store) ListBranches(ctx context.Context, projectID string) ([]*BranchState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, ref, last_indexed_commit, merge_base_commit, overlay_dir, is_default_branch, status, file_count, symbol_count, updated_at
		FROM branch_state WHERE project_id = ? ORDER BY ref`, projectID)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to list branches", err)
	}
	defer rows.Close()

	var out []*BranchState
	for rows.Next() {
		var b BranchState
		var isDefault int
		var status, updated string
		if err := rows.Scan(&b.ProjectID, &b.Ref, &b.LastIndexedCommit, &b.MergeBaseCommit, &b.OverlayDir, &isDefault, &status, &b.FileCount, &b.SymbolCount, &updated); err != nil {
			return nil, ccerrors.SqliteError("failed to scan branch row", err)
		}
		b.IsDefaultBranch = isDefault != 0
		b.Status = normalizeBranchStatus(status)
		b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, &b)
	}
	return out, rows.Err()
}

// DeleteBranchState removes the sync record for (project, ref), used
// when an overlay ref is pruned entirely.
func (s *Store) DeleteBranchState(ctx context.Context, projectID, ref string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM branch_state WHERE project_id = ? AND ref = ?`, projectID, ref)
	if err != nil {
		return ccerrors.SqliteError("failed to delete branch state", err)
	}
	return nil
}
