package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalridge/codecompass/internal/rs"
)

func TestResolveEdges_ExactQualifiedNameMatch_IsHighConfidence(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	opts := Options{ProjectID: "p1", Ref: "main"}

	require.NoError(t, p.RS.ReplaceSymbolsForFile(ctx, "p1", "main", "a.go", []*rs.SymbolRecord{
		{SymbolID: "s1", SymbolStableID: "stable-s1", ProjectID: "p1", Ref: "main", Path: "a.go", Kind: "function", Name: "Handle", QualifiedName: "pkg.Handle"},
	}))
	require.NoError(t, p.RS.ReplaceEdgesForFile(ctx, "p1", "main", "b.go", []*rs.EdgeRecord{
		{ProjectID: "p1", Ref: "main", FromSymbolID: "s2", ToName: "pkg.Handle", EdgeType: "calls", Confidence: "low", SourceFile: "b.go"},
	}))

	require.NoError(t, p.resolveEdges(ctx, opts))

	edges, err := p.RS.GetEdgesTo(ctx, "stable-s1", "calls")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "high", edges[0].Confidence)
	assert.Equal(t, "resolved_exact", edges[0].Outcome)
}

func TestResolveEdges_UnambiguousShortName_IsMediumConfidence(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	opts := Options{ProjectID: "p1", Ref: "main"}

	require.NoError(t, p.RS.ReplaceSymbolsForFile(ctx, "p1", "main", "a.go", []*rs.SymbolRecord{
		{SymbolID: "s1", SymbolStableID: "stable-s1", ProjectID: "p1", Ref: "main", Path: "a.go", Kind: "function", Name: "Validate", QualifiedName: "auth.Validate"},
	}))
	require.NoError(t, p.RS.ReplaceEdgesForFile(ctx, "p1", "main", "b.go", []*rs.EdgeRecord{
		{ProjectID: "p1", Ref: "main", FromSymbolID: "s2", ToName: "Validate", EdgeType: "calls", Confidence: "low", SourceFile: "b.go"},
	}))

	require.NoError(t, p.resolveEdges(ctx, opts))

	edges, err := p.RS.GetEdgesTo(ctx, "stable-s1", "calls")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "medium", edges[0].Confidence)
	assert.Equal(t, "resolved_short_name", edges[0].Outcome)
}

func TestResolveEdges_AmbiguousShortName_IsLowConfidence_FirstInsertionWins(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	opts := Options{ProjectID: "p1", Ref: "main"}

	require.NoError(t, p.RS.ReplaceSymbolsForFile(ctx, "p1", "main", "a.go", []*rs.SymbolRecord{
		{SymbolID: "s1", SymbolStableID: "stable-a", ProjectID: "p1", Ref: "main", Path: "a.go", Kind: "function", Name: "Handle", QualifiedName: "pkg.Handle"},
	}))
	require.NoError(t, p.RS.ReplaceSymbolsForFile(ctx, "p1", "main", "b.go", []*rs.SymbolRecord{
		{SymbolID: "s2", SymbolStableID: "stable-b", ProjectID: "p1", Ref: "main", Path: "b.go", Kind: "function", Name: "Handle", QualifiedName: "pkg2.Handle"},
	}))
	require.NoError(t, p.RS.ReplaceEdgesForFile(ctx, "p1", "main", "c.go", []*rs.EdgeRecord{
		{ProjectID: "p1", Ref: "main", FromSymbolID: "s3", ToName: "Handle", EdgeType: "calls", Confidence: "low", SourceFile: "c.go"},
	}))

	require.NoError(t, p.resolveEdges(ctx, opts))

	edges, err := p.RS.GetEdgesTo(ctx, "stable-a", "calls")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "low", edges[0].Confidence)
	assert.Equal(t, "resolved_short_name", edges[0].Outcome)
}

func TestResolveEdges_TurbofishSuffix_StrippedBeforeMatch(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	opts := Options{ProjectID: "p1", Ref: "main"}

	require.NoError(t, p.RS.ReplaceSymbolsForFile(ctx, "p1", "main", "a.go", []*rs.SymbolRecord{
		{SymbolID: "s1", SymbolStableID: "stable-s1", ProjectID: "p1", Ref: "main", Path: "a.go", Kind: "function", Name: "validate_token", QualifiedName: "auth::validate_token"},
	}))
	require.NoError(t, p.RS.ReplaceEdgesForFile(ctx, "p1", "main", "b.go", []*rs.EdgeRecord{
		{ProjectID: "p1", Ref: "main", FromSymbolID: "s2", ToName: "auth::validate_token::<Claims>", EdgeType: "calls", Confidence: "low", SourceFile: "b.go"},
	}))

	require.NoError(t, p.resolveEdges(ctx, opts))

	edges, err := p.RS.GetEdgesTo(ctx, "stable-s1", "calls")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "high", edges[0].Confidence)
}

func TestResolveEdges_NoMatch_IsDowngradedToLow(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	opts := Options{ProjectID: "p1", Ref: "main"}

	require.NoError(t, p.RS.ReplaceEdgesForFile(ctx, "p1", "main", "a.go", []*rs.EdgeRecord{
		{ProjectID: "p1", Ref: "main", FromSymbolID: "s1", ToName: "Nonexistent", EdgeType: "calls", Confidence: "medium", SourceFile: "a.go"},
	}))

	require.NoError(t, p.resolveEdges(ctx, opts))

	unresolved, err := p.RS.ListUnresolvedEdges(ctx, "p1", "main")
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "low", unresolved[0].Confidence)
}
