package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFreshnessPolicy_LegacyAliasNeverReserializes(t *testing.T) {
	p, ok := ParseFreshnessPolicy("best-effort")
	assert.True(t, ok)
	assert.Equal(t, FreshnessBestEffort, p)
	assert.Equal(t, "best_effort", p.String())
}

func TestParsePolicyMode_RoundTrip(t *testing.T) {
	for _, s := range []PolicyMode{PolicyOff, PolicyAuditOnly, PolicyBalanced, PolicyStrict} {
		p, ok := ParsePolicyMode(s.String())
		assert.True(t, ok)
		assert.Equal(t, s, p)
	}
}

func TestPolicyMode_Tighten_NeverLoosensBelowConfiguredFloor(t *testing.T) {
	assert.Equal(t, PolicyStrict, PolicyStrict.Tighten(PolicyOff))
	assert.Equal(t, PolicyStrict, PolicyBalanced.Tighten(PolicyStrict))
	assert.Equal(t, PolicyBalanced, PolicyBalanced.Tighten(""))
	assert.Equal(t, PolicyAuditOnly, PolicyOff.Tighten(PolicyAuditOnly))
}

func TestParseSemanticMode_LegacyHyphenAlias(t *testing.T) {
	m, ok := ParseSemanticMode("rerank-only")
	assert.True(t, ok)
	assert.Equal(t, SemanticRerankOnly, m)
}

func TestParseRankingExplainLevel_Unknown(t *testing.T) {
	_, ok := ParseRankingExplainLevel("verbose")
	assert.False(t, ok)
}
