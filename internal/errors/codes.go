// Package errors provides the structured, closed error taxonomy used
// end-to-end by CodeCompass. Every error surfaced by the
// indexing pipeline, overlay engine, retrieval engine, policy layer, or
// VCS adapter carries a stable Kind and string Code for programmatic
// handling by callers (CLI, MCP tool responses, health payloads).
package errors

// Category classifies an error for coarse-grained handling and logging.
type Category string

const (
	CategoryInput     Category = "INPUT"
	CategoryWorkspace Category = "WORKSPACE"
	CategoryCoverage  Category = "COVERAGE"
	CategorySchema    Category = "SCHEMA"
	CategoryEmpty     Category = "EMPTY"
	CategoryFreshness Category = "FRESHNESS"
	CategoryPolicy    Category = "POLICY"
	CategoryVCS       Category = "VCS"
	CategoryProvider  Category = "PROVIDER"
	CategoryStorage   Category = "STORAGE"
	CategoryInternal  Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Kind is the closed set of error kinds. Every
// CodeCompassError carries exactly one Kind; Code is derived from it.
type Kind string

const (
	KindInvalidInput           Kind = "InvalidInput"
	KindWorkspaceNotRegistered Kind = "WorkspaceNotRegistered"
	KindWorkspaceNotAllowed    Kind = "WorkspaceNotAllowed"
	KindAllowedRootRequired    Kind = "AllowedRootRequired"
	KindProjectNotFound        Kind = "ProjectNotFound"
	KindRefNotIndexed          Kind = "RefNotIndexed"
	KindOverlayNotReady        Kind = "OverlayNotReady"
	KindSchemaIncompatible     Kind = "SchemaIncompatible"
	KindNoEdgesAvailable       Kind = "NoEdgesAvailable"
	KindSymbolNotFound         Kind = "SymbolNotFound"
	KindResultNotFound         Kind = "ResultNotFound"
	KindStaleIndex             Kind = "StaleIndex"
	KindPolicyViolation        Kind = "PolicyViolation"
	KindMergeBaseFailed        Kind = "MergeBaseFailed"
	KindVcsError               Kind = "VcsError"
	KindExternalProviderError  Kind = "ExternalProviderError"
	KindSqlite                 Kind = "Sqlite"
	KindIo                     Kind = "Io"
	KindInternal               Kind = "Internal"
)

// kindMeta bundles the static properties derived from a Kind: its stable
// code, category, severity, and whether the operation is retryable by
// the caller without any state change.
type kindMeta struct {
	code      string
	category  Category
	severity  Severity
	retryable bool
}

var metaTable = map[Kind]kindMeta{
	KindInvalidInput:           {"ERR_INVALID_INPUT", CategoryInput, SeverityError, false},
	KindWorkspaceNotRegistered: {"ERR_WORKSPACE_NOT_REGISTERED", CategoryWorkspace, SeverityError, false},
	KindWorkspaceNotAllowed:    {"ERR_WORKSPACE_NOT_ALLOWED", CategoryWorkspace, SeverityError, false},
	KindAllowedRootRequired:    {"ERR_ALLOWED_ROOT_REQUIRED", CategoryWorkspace, SeverityError, false},
	KindProjectNotFound:        {"ERR_PROJECT_NOT_FOUND", CategoryCoverage, SeverityError, false},
	KindRefNotIndexed:          {"ERR_REF_NOT_INDEXED", CategoryCoverage, SeverityError, false},
	KindOverlayNotReady:        {"ERR_OVERLAY_NOT_READY", CategoryCoverage, SeverityWarning, true},
	KindSchemaIncompatible:     {"ERR_SCHEMA_INCOMPATIBLE", CategorySchema, SeverityFatal, false},
	KindNoEdgesAvailable:       {"ERR_NO_EDGES_AVAILABLE", CategoryEmpty, SeverityInfo, false},
	KindSymbolNotFound:         {"ERR_SYMBOL_NOT_FOUND", CategoryEmpty, SeverityInfo, false},
	KindResultNotFound:         {"ERR_RESULT_NOT_FOUND", CategoryEmpty, SeverityInfo, false},
	KindStaleIndex:             {"ERR_STALE_INDEX", CategoryFreshness, SeverityWarning, true},
	KindPolicyViolation:        {"ERR_POLICY_VIOLATION", CategoryPolicy, SeverityError, false},
	KindMergeBaseFailed:        {"ERR_MERGE_BASE_FAILED", CategoryVCS, SeverityError, true},
	KindVcsError:               {"ERR_VCS_ERROR", CategoryVCS, SeverityError, true},
	KindExternalProviderError:  {"ERR_EXTERNAL_PROVIDER", CategoryProvider, SeverityWarning, true},
	KindSqlite:                 {"ERR_SQLITE", CategoryStorage, SeverityFatal, true},
	KindIo:                     {"ERR_IO", CategoryStorage, SeverityError, true},
	KindInternal:               {"ERR_INTERNAL", CategoryInternal, SeverityFatal, false},
}

func lookupMeta(k Kind) kindMeta {
	if m, ok := metaTable[k]; ok {
		return m
	}
	return metaTable[KindInternal]
}
