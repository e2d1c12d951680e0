package rs

import (
	"context"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

// ReplaceSymbolsForFile atomically replaces all symbols for (project,
// ref, path): symbols are fully replaced per-file per-job; their IDs are
// never mutated in place.
func (s *Store) ReplaceSymbolsForFile(ctx context.Context, projectID, ref, path string, symbols []*SymbolRecord) error {
	return s.WithSavepoint(ctx, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM symbol_relations WHERE project_id = ? AND ref = ? AND path = ?`, projectID, ref, path); err != nil {
			return ccerrors.SqliteError("failed to clear symbols for file", err)
		}
		if len(symbols) == 0 {
			return nil
		}
		stmt, err := s.db.PrepareContext(ctx, `
			INSERT INTO symbol_relations (symbol_id, symbol_stable_id, project_id, ref, path, kind, qualified_name, name, signature, line_start, line_end, parent_symbol_id, content_hash, language)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return ccerrors.SqliteError("failed to prepare symbol insert", err)
		}
		defer stmt.Close()

		for _, sym := range symbols {
			if _, err := stmt.ExecContext(ctx, sym.SymbolID, sym.SymbolStableID, sym.ProjectID, sym.Ref, sym.Path, sym.Kind,
				sym.QualifiedName, sym.Name, sym.Signature, sym.LineStart, sym.LineEnd, sym.ParentSymbolID, sym.ContentHash, sym.Language); err != nil {
				return ccerrors.SqliteError("failed to insert symbol "+sym.Name, err)
			}
		}
		return nil
	})
}

// GetSymbol returns a symbol by its ref-local ID.
func (s *Store) GetSymbol(ctx context.Context, symbolID string) (*SymbolRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol_id, symbol_stable_id, project_id, ref, path, kind, qualified_name, name, signature, line_start, line_end, parent_symbol_id, content_hash, language
		FROM symbol_relations WHERE symbol_id = ?`, symbolID)
	return scanSymbolRow(row)
}

// GetSymbolByStableID resolves a vector-store hit (keyed by the
// cross-ref-stable `symbol_stable_id`) back to its current ref-local
// symbol row, used by the retrieval engine to attach path/line/kind
// metadata to semantic search results.
func (s *Store) GetSymbolByStableID(ctx context.Context, projectID, ref, stableID string) (*SymbolRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol_id, symbol_stable_id, project_id, ref, path, kind, qualified_name, name, signature, line_start, line_end, parent_symbol_id, content_hash, language
		FROM symbol_relations WHERE project_id = ? AND ref = ? AND symbol_stable_id = ? LIMIT 1`, projectID, ref, stableID)
	return scanSymbolRow(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSymbolRow(row rowScanner) (*SymbolRecord, error) {
	var sym SymbolRecord
	err := row.Scan(&sym.SymbolID, &sym.SymbolStableID, &sym.ProjectID, &sym.Ref, &sym.Path, &sym.Kind,
		&sym.QualifiedName, &sym.Name, &sym.Signature, &sym.LineStart, &sym.LineEnd, &sym.ParentSymbolID, &sym.ContentHash, &sym.Language)
	if err != nil {
		return nil, nil //nolint:nilerr // sql.ErrNoRows handled by caller via nil check
	}
	return &sym, nil
}

// SearchSymbolsByName finds symbols matching name exactly (case-sensitive),
// ordered by insertion (rowid) for deterministic short-name resolution.
func (s *Store) SearchSymbolsByName(ctx context.Context, projectID, ref, name string, limit int) ([]*SymbolRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol_id, symbol_stable_id, project_id, ref, path, kind, qualified_name, name, signature, line_start, line_end, parent_symbol_id, content_hash, language
		FROM symbol_relations WHERE project_id = ? AND ref = ? AND name = ? ORDER BY rowid LIMIT ?`, projectID, ref, name, limit)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to search symbols by name", err)
	}
	defer rows.Close()
	return scanSymbolRows(rows)
}

// ListSymbolsForRef returns every symbol in (project, ref), used to build
// the qualified_name/short_name resolution maps in the pipeline's second
// pass.
func (s *Store) ListSymbolsForRef(ctx context.Context, projectID, ref string) ([]*SymbolRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol_id, symbol_stable_id, project_id, ref, path, kind, qualified_name, name, signature, line_start, line_end, parent_symbol_id, content_hash, language
		FROM symbol_relations WHERE project_id = ? AND ref = ? ORDER BY rowid`, projectID, ref)
	if err != nil {
		return nil, ccerrors.SqliteError("failed to list symbols for ref", err)
	}
	defer rows.Close()
	return scanSymbolRows(rows)
}

func scanSymbolRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*SymbolRecord, error) {
	var out []*SymbolRecord
	for rows.Next() {
		var sym SymbolRecord
		if err := rows.Scan(&sym.SymbolID, &sym.SymbolStableID, &sym.ProjectID, &sym.Ref, &sym.Path, &sym.Kind,
			&sym.QualifiedName, &sym.Name, &sym.Signature, &sym.LineStart, &sym.LineEnd, &sym.ParentSymbolID, &sym.ContentHash, &sym.Language); err != nil {
			return nil, ccerrors.SqliteError("failed to scan symbol row", err)
		}
		out = append(out, &sym)
	}
	return out, rows.Err()
}
