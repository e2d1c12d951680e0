package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signalridge/codecompass/internal/retrieval"
)

func TestToRowOutput_Nil_ReturnsZeroValue(t *testing.T) {
	assert.Equal(t, RowOutput{}, toRowOutput(nil))
}

func TestToRowOutput_FlattensFields(t *testing.T) {
	row := &retrieval.Row{
		ID: "sym-1", Kind: retrieval.RowSymbol, SymbolKind: "function", Path: "svc/parser.go",
		Name: "ParseConfig", Signature: "func ParseConfig() error", Language: "go",
		LineStart: 10, LineEnd: 20, Score: 0.9, SourceLayer: retrieval.LayerOverlay,
	}
	out := toRowOutput(row)
	assert.Equal(t, "sym-1", out.ID)
	assert.Equal(t, "symbol", out.Kind)
	assert.Equal(t, "overlay", out.SourceLayer)
	assert.Equal(t, 10, out.LineStart)
}

func TestToRowOutputs_PreservesOrder(t *testing.T) {
	rows := []*retrieval.Row{
		{ID: "a", Path: "a.go"},
		{ID: "b", Path: "b.go"},
	}
	out := toRowOutputs(rows)
	assert.Equal(t, []string{"a", "b"}, []string{out[0].ID, out[1].ID})
}

func TestPolicyModeOf_InvalidString_ReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", string(policyModeOf("not-a-mode")))
}

func TestPolicyModeOf_ValidString_Parses(t *testing.T) {
	assert.Equal(t, "strict", string(policyModeOf("strict")))
}
