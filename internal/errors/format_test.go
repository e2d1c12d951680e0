package errors

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatJSON_RoundTrips(t *testing.T) {
	err := SymbolNotFound("validate").WithDetail("ref", "main")
	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "SymbolNotFound", decoded["kind"])
	assert.Equal(t, err.Code, decoded["code"])
}

func TestFormatForCLI_IncludesSuggestion(t *testing.T) {
	err := SchemaIncompatible("bleve index version 3, expected 4")
	out := FormatForCLI(err)
	assert.Contains(t, out, "reindex with --force")
	assert.Contains(t, out, err.Code)
}

func TestFormatForLog_FlattensDetails(t *testing.T) {
	err := RefNotIndexed("p1", "main")
	log := FormatForLog(err)
	assert.Equal(t, "p1", log["detail_project_id"])
	assert.Equal(t, "main", log["detail_ref"])
	assert.Equal(t, true, log["retryable"])
}
