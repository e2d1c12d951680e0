package rs

import (
	"context"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// ReplaceEdgesForFile atomically replaces all edges sourced from
// (project, ref, path). Edges are re-derived from scratch on every
// index of the file they originate from, so the old set is dropped
// wholesale before the new one is inserted.
func (s *Store) ReplaceEdgesForFile(ctx context.Context, projectID, ref, path string, edges []*EdgeRecord) error {
	return s.WithSavepoint(ctx, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM symbol_edges WHERE project_id = ? AND ref = ? AND source_file = ?`, projectID, ref, path); err != nil {
			return ccerrors.SqliteError("failed to clear edges for file", err)
		}
		if len(edges) == 0 {
			return nil
		}
		stmt, err := s.db.PrepareContext(ctx, `
			INSERT INTO symbol_edges (project_id, ref, from_symbol_id, to_symbol_id, to_name, edge_type, confidence, provider, outcome, weight, source_file, source_line)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return ccerrors.SqliteError("failed to prepare edge insert", err)
		}
		defer stmt.Close()

		for _, e := range edges {
			if _, err := stmt.ExecContext(ctx, e.ProjectID, e.Ref, e.FromSymbolID, e.ToSymbolID, e.ToName,
				e.EdgeType, e.Confidence, e.Provider, e.Outcome, e.Weight, e.SourceFile, e.SourceLine); err != nil {
				return ccerrors.SqliteError("failed to insert edge", err)
			}
		}
		return nil
	})
}

// ResolveEdgeTarget sets to_symbol_id/confidence/outcome on previously
// unresolved edges pointing at to_name, used by the pipeline's second
// pass once the full symbol table for the ref is known.
func (s *Store) ResolveEdgeTarget(ctx context.Context, projectID, ref, toName, toSymbolID, confidence, outcome string, weight float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE symbol_edges SET to_symbol_id = ?, confidence = ?, outcome = ?, weight = ?
		WHERE project_id = ? AND ref = ? AND to_name = ? AND to_symbol_id = ''`,
		toSymbolID, confidence, outcome, weight, projectID, ref, toName)
	if err != nil {
		return ccerrors.SqliteError("failed to resolve edge target", err)
	}
	return nil
}

// ListUnresolvedEdges returns every edge for (project, ref) still
// lacking a resolved to_symbol_id, for the pipeline's second-pass
// resolver.
func (s *Store) ListUnresolvedEdges(ctx context.Context, projectID, ref string) ([]*EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, ref, from_symbol_id, to_symbol_id, to_name, edge_type, confidence, provider, outcome, weight, source_file, source_line
		FROM symbol_edges WHERE project_id = ? AND ref = ? AND to_symbol_id = '' AND to_name <> '' ORDER BY id`, projectID, ref)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to list unresolved edges", err)
	}
	defer rows.Close()
	return scanEdgeRows(rows)
}

// DowngradeUnresolvedEdges sets confidence=low on every edge still
// unresolved after the second pass completes.
func (s *Store) DowngradeUnresolvedEdges(ctx context.Context, projectID, ref string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE symbol_edges SET confidence = 'low'
		WHERE project_id = ? AND ref = ? AND to_symbol_id = '' AND to_name <> ''`, projectID, ref)
	if err != nil {
		return ccerrors.SqliteError("failed to downgrade unresolved edges", err)
	}
	return nil
}

// GetEdgesFrom returns edges originating at fromSymbolID, optionally
// filtered by edgeType (empty string matches all types).
func (s *Store) GetEdgesFrom(ctx context.Context, fromSymbolID, edgeType string) ([]*EdgeRecord, error) {
	query := `SELECT id, project_id, ref, from_symbol_id, to_symbol_id, to_name, edge_type, confidence, provider, outcome, weight, source_file, source_line
		FROM symbol_edges WHERE from_symbol_id = ?`
	args := []any{fromSymbolID}
	if edgeType != "" {
		query += " AND edge_type = ?"
		args = append(args, edgeType)
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to query outgoing edges", err)
	}
	defer rows.Close()
	return scanEdgeRows(rows)
}

// GetEdgesTo returns edges that resolved to toSymbolID, optionally
// filtered by edgeType. Used by find_references.
func (s *Store) GetEdgesTo(ctx context.Context, toSymbolID, edgeType string) ([]*EdgeRecord, error) {
	query := `SELECT id, project_id, ref, from_symbol_id, to_symbol_id, to_name, edge_type, confidence, provider, outcome, weight, source_file, source_line
		FROM symbol_edges WHERE to_symbol_id = ?`
	args := []any{toSymbolID}
	if edgeType != "" {
		query += " AND edge_type = ?"
		args = append(args, edgeType)
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to query incoming edges", err)
	}
	defer rows.Close()
	return scanEdgeRows(rows)
}

func scanEdgeRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*EdgeRecord, error) {
	var out []*EdgeRecord
	for rows.Next() {
		var e EdgeRecord
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Ref, &e.FromSymbolID, &e.ToSymbolID, &e.ToName,
			&e.EdgeType, &e.Confidence, &e.Provider, &e.Outcome, &e.Weight, &e.SourceFile, &e.SourceLine); err != nil {
			return nil, ccerrors.SqliteError("failed to scan edge row", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
