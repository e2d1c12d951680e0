package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/signalridge/codecompass/internal/ids"
)

// resolveEdges is the second-pass resolution stage: after every file for the job is visible, resolve pending
// call/import edges against a preloaded qualified_name and short_name
// lookup built in file-scan (insertion) order, so name collisions
// resolve deterministically.
func (p *Pipeline) resolveEdges(ctx context.Context, opts Options) error {
	symbols, err := p.RS.ListSymbolsForRef(ctx, opts.ProjectID, opts.Ref)
	if err != nil {
		return err
	}

	byQualifiedName := make(map[string]string, len(symbols)) // qualified_name -> symbol_stable_id
	byShortName := make(map[string][]string)                 // short name -> []symbol_stable_id, insertion order
	for _, sym := range symbols {
		if sym.QualifiedName != "" {
			if _, exists := byQualifiedName[sym.QualifiedName]; !exists {
				byQualifiedName[sym.QualifiedName] = sym.SymbolStableID
			}
		}
		short := lastSegment(sym.QualifiedName)
		if short == "" {
			short = sym.Name
		}
		byShortName[short] = append(byShortName[short], sym.SymbolStableID)
	}

	unresolved, err := p.RS.ListUnresolvedEdges(ctx, opts.ProjectID, opts.Ref)
	if err != nil {
		return err
	}

	for _, e := range unresolved {
		target := stripTurbofish(e.ToName)

		if stableID, ok := byQualifiedName[target]; ok {
			if err := p.RS.ResolveEdgeTarget(ctx, opts.ProjectID, opts.Ref, e.ToName, stableID,
				string(ids.ConfidenceHigh), "resolved_exact", 1.0); err != nil {
				return err
			}
			continue
		}

		short := lastSegment(target)
		candidates, ok := byShortName[short]
		if !ok || len(candidates) == 0 {
			continue // stays unresolved; downgraded to low confidence below
		}
		confidence := ids.ConfidenceMedium
		if len(candidates) > 1 {
			slog.Debug("ambiguous short-name call resolution",
				"to_name", e.ToName, "resolved_to", candidates[0], "candidate_count", len(candidates))
			confidence = ids.ConfidenceLow
		}
		if err := p.RS.ResolveEdgeTarget(ctx, opts.ProjectID, opts.Ref, e.ToName, candidates[0],
			string(confidence), "resolved_short_name", 1.0); err != nil {
			return err
		}
	}

	return p.RS.DowngradeUnresolvedEdges(ctx, opts.ProjectID, opts.Ref)
}

// lastSegment returns the final "::" or "." separated component of a
// qualified name, used for short-name call resolution.
func lastSegment(qualifiedName string) string {
	s := qualifiedName
	if i := strings.LastIndex(s, "::"); i >= 0 {
		s = s[i+2:]
	}
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// stripTurbofish removes a trailing "::<...>" generic-instantiation
// suffix from a call target so "auth::validate_token::<Claims>"
// matches the symbol "auth::validate_token".
func stripTurbofish(name string) string {
	if i := strings.Index(name, "::<"); i >= 0 {
		return name[:i]
	}
	return name
}
