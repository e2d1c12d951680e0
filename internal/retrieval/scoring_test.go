package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyScoringBoosts_ExactNameMatch_AddsExactNameBoost(t *testing.T) {
	row := &Row{Name: "ParseConfig", SymbolKind: "function"}
	reasons := applyScoringBoosts(row, queryTokens("ParseConfig"), "")
	assert.Contains(t, reasons, "exact_name_match")
	assert.Contains(t, reasons, "definition_kind")
	assert.InDelta(t, boostExactName+boostDefinitionKind, row.Score, 1e-9)
}

func TestApplyScoringBoosts_QualifiedNameSubstring_AddsQualifiedMatchBoost(t *testing.T) {
	row := &Row{QualifiedName: "internal/config.ParseConfig", SymbolKind: "function"}
	reasons := applyScoringBoosts(row, queryTokens("config.Parse"), "")
	assert.Contains(t, reasons, "qualified_name_match")
}

func TestApplyScoringBoosts_PathAffinity_AddsPathBoost(t *testing.T) {
	row := &Row{Path: "internal/config/loader.go"}
	reasons := applyScoringBoosts(row, queryTokens("config loader"), "")
	assert.Contains(t, reasons, "path_affinity")
}

func TestApplyScoringBoosts_NonDefinitionKind_NoDefinitionBonus(t *testing.T) {
	row := &Row{SymbolKind: "variable"}
	reasons := applyScoringBoosts(row, queryTokens("anything"), "")
	assert.NotContains(t, reasons, "definition_kind")
}

func TestApplyScoringBoosts_KindMatchesRequestedKind_AddsKindMatchBoost(t *testing.T) {
	row := &Row{SymbolKind: "struct"}
	reasons := applyScoringBoosts(row, nil, "struct")
	assert.Contains(t, reasons, "kind_match")
}

func TestApplyScoringBoosts_NoMatches_ReturnsNoReasons(t *testing.T) {
	row := &Row{Name: "foo", SymbolKind: "variable", Path: "x/y.go"}
	reasons := applyScoringBoosts(row, queryTokens("unrelated query text"), "interface")
	assert.Empty(t, reasons)
}

func TestQueryTokens_SplitsOnIdentifierSeparators(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar", "baz"}, queryTokens("foo_bar.baz()"))
}
