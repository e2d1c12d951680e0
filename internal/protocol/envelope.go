package protocol

import "encoding/json"

// ProtocolVersion is embedded in every tool response's metadata object.
const ProtocolVersion = "codecompass/1"

// Request is the abstract JSON-RPC envelope. Transport
// framing (stdio/HTTP) is out of scope; this type exists so
// internal/mcpserver and tests can construct and inspect requests
// without depending on a specific SDK's wire type.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ToolCallParams is the params payload of a "tools/call" request.
type ToolCallParams struct {
	Name            string          `json:"name"`
	Arguments       json.RawMessage `json:"arguments,omitempty"`
	Workspace       string          `json:"workspace,omitempty"`
	Ref             string          `json:"ref,omitempty"`
	FreshnessPolicy string          `json:"freshness_policy,omitempty"`
	DetailLevel     string          `json:"detail_level,omitempty"`
	RankingExplain  string          `json:"ranking_explain,omitempty"`
	SemanticMode    string          `json:"semantic_mode,omitempty"`
}

// Response is the abstract {result|error, id} envelope.
type Response struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// ErrorPayload is the canonical error shape used for both transport and
// tool-level errors. Workspace routing errors are
// carried here as a tool-level payload error, never a transport error.
type ErrorPayload struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category,omitempty"`
	Severity   string            `json:"severity,omitempty"`
	Retryable  bool              `json:"retryable"`
	Suggestion string            `json:"suggestion,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// PolicyCounters summarizes policy-layer enforcement applied to a
// result set.
type PolicyCounters struct {
	BlockedCount   int `json:"blocked_count"`
	RedactedCount  int `json:"redacted_count"`
}

// Metadata is embedded in every tool payload: protocol
// version, ref, schema/freshness status, completeness, and — when
// configured — ranking reasons and policy counters.
type Metadata struct {
	CodeCompassProtocolVersion string              `json:"codecompass_protocol_version"`
	Ref                        string              `json:"ref"`
	SchemaStatus               SchemaStatus        `json:"schema_status"`
	FreshnessStatus            FreshnessStatus     `json:"freshness_status"`
	ResultCompleteness         ResultCompleteness  `json:"result_completeness"`
	RankingReasons             []string            `json:"ranking_reasons,omitempty"`
	Policy                     *PolicyCounters     `json:"policy,omitempty"`
	SemanticTriggered          *bool               `json:"semantic_triggered,omitempty"`
	SemanticSkippedReason      string              `json:"semantic_skipped_reason,omitempty"`
	SemanticRatioUsed          *float64            `json:"semantic_ratio_used,omitempty"`
	AdapterUnavailable         bool                `json:"adapter_unavailable,omitempty"`
	FreshnessPolicy            FreshnessPolicy     `json:"freshness_policy,omitempty"`
}

// NewMetadata builds the baseline metadata object every query tool
// response embeds.
func NewMetadata(ref string, schema SchemaStatus, freshness FreshnessStatus, completeness ResultCompleteness) *Metadata {
	return &Metadata{
		CodeCompassProtocolVersion: ProtocolVersion,
		Ref:                        ref,
		SchemaStatus:               schema,
		FreshnessStatus:            freshness,
		ResultCompleteness:         completeness,
	}
}

// SessionID extracts the log-correlation session identifier from
// request headers/metadata: "mcp-session-id" with a fallback to
// "x-codecompass-session". Identity is for log
// correlation only and is never used for authorization decisions.
func SessionID(headers map[string]string) string {
	if v, ok := headers["mcp-session-id"]; ok && v != "" {
		return v
	}
	if v, ok := headers["x-codecompass-session"]; ok && v != "" {
		return v
	}
	return ""
}
