package retrieval

import "strings"

// Boost weights applied on top of raw BM25 scores. Calibration is a tunable,
// not a correctness requirement, so the exact magnitudes are chosen to
// keep boosts additive and bounded rather than overwhelming the
// underlying BM25 signal.
const (
	boostExactName      = 0.40
	boostQualifiedMatch = 0.25
	boostPathAffinity   = 0.10
	boostDefinitionKind = 0.15
	boostKindMatch      = 0.10
)

// definitionKinds are symbol kinds that define a new name rather than
// reference or alias one (internal/ids.SymbolKind's closed set).
var definitionKinds = map[string]bool{
	"function": true, "method": true, "struct": true, "class": true,
	"enum": true, "trait": true, "interface": true, "type_alias": true,
}

// applyScoringBoosts mutates row.Score in place, adding the factor
// contributions that fired. wantKind is the caller's requested symbol
// kind filter, if any (used for the kind-match bonus).
func applyScoringBoosts(row *Row, queryTokens []string, wantKind string) []string {
	var reasons []string

	if row.Name != "" {
		for _, t := range queryTokens {
			if strings.EqualFold(t, row.Name) {
				row.Score += boostExactName
				reasons = append(reasons, "exact_name_match")
				break
			}
		}
	}

	if row.QualifiedName != "" {
		ql := strings.ToLower(row.QualifiedName)
		for _, t := range queryTokens {
			if strings.Contains(ql, strings.ToLower(t)) && len(t) > 2 {
				row.Score += boostQualifiedMatch
				reasons = append(reasons, "qualified_name_match")
				break
			}
		}
	}

	if row.Path != "" {
		pl := strings.ToLower(row.Path)
		for _, t := range queryTokens {
			if len(t) > 2 && strings.Contains(pl, strings.ToLower(t)) {
				row.Score += boostPathAffinity
				reasons = append(reasons, "path_affinity")
				break
			}
		}
	}

	if row.SymbolKind != "" && definitionKinds[row.SymbolKind] {
		row.Score += boostDefinitionKind
		reasons = append(reasons, "definition_kind")
	}

	if wantKind != "" && strings.EqualFold(row.SymbolKind, wantKind) {
		row.Score += boostKindMatch
		reasons = append(reasons, "kind_match")
	}

	return reasons
}

// queryTokens splits a query into boost-comparison tokens: whitespace
// plus common identifier separators, so "foo_bar baz" and
// "fooBar.baz()" both yield token-level matches against symbol names.
func queryTokens(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '.', '(', ')', ':', ',', '_', '-', '/':
			return true
		}
		return false
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
