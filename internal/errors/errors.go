package errors

import "fmt"

// CodeCompassError is the structured error type used across the engine.
// It carries a stable code, category, severity, retryability, an
// optional remediation suggestion, and free-form detail pairs for
// (project_id, ref) context.
type CodeCompassError struct {
	Kind       Kind
	Code       string
	Message    string
	Category   Category
	Severity   Severity
	Details    map[string]string
	Cause      error
	Retryable  bool
	Suggestion string
}

// Error implements the error interface.
func (e *CodeCompassError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CodeCompassError) Unwrap() error {
	return e.Cause
}

// Is matches by Kind, so errors.Is(err, &CodeCompassError{Kind: KindX})
// works regardless of message/details.
func (e *CodeCompassError) Is(target error) bool {
	t, ok := target.(*CodeCompassError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail (e.g. "project_id", "ref") and
// returns the error for chaining.
func (e *CodeCompassError) WithDetail(key, value string) *CodeCompassError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches a remediation hint.
func (e *CodeCompassError) WithSuggestion(s string) *CodeCompassError {
	e.Suggestion = s
	return e
}

// New creates a CodeCompassError of the given Kind. Code, category,
// severity, and retryability are derived from the Kind.
func New(kind Kind, message string, cause error) *CodeCompassError {
	m := lookupMeta(kind)
	return &CodeCompassError{
		Kind:      kind,
		Code:      m.code,
		Message:   message,
		Category:  m.category,
		Severity:  m.severity,
		Cause:     cause,
		Retryable: m.retryable,
	}
}

// Wrap creates a CodeCompassError of the given kind from an existing
// error, reusing its message. Returns nil if err is nil.
func Wrap(kind Kind, err error) *CodeCompassError {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// Convenience constructors mirroring the error taxonomy above.

func InvalidInput(message string, cause error) *CodeCompassError {
	return New(KindInvalidInput, message, cause)
}

func WorkspaceNotRegistered(workspace string) *CodeCompassError {
	return New(KindWorkspaceNotRegistered, "workspace is not registered: "+workspace, nil).
		WithSuggestion("run `codecompass init <path>` to register this workspace")
}

func WorkspaceNotAllowed(path string) *CodeCompassError {
	return New(KindWorkspaceNotAllowed, "workspace path is outside any allowlisted root: "+path, nil)
}

func AllowedRootRequired() *CodeCompassError {
	return New(KindAllowedRootRequired, "no allowlisted root configured for auto-discovery", nil)
}

func ProjectNotFound(projectID string) *CodeCompassError {
	return New(KindProjectNotFound, "project not found", nil).WithDetail("project_id", projectID)
}

func RefNotIndexed(projectID, ref string) *CodeCompassError {
	return New(KindRefNotIndexed, "ref has not been indexed", nil).
		WithDetail("project_id", projectID).WithDetail("ref", ref).
		WithSuggestion("run `codecompass index --ref " + ref + "`")
}

func OverlayNotReady(ref string) *CodeCompassError {
	return New(KindOverlayNotReady, "overlay is not yet synced for ref: "+ref, nil).WithDetail("ref", ref)
}

func SchemaIncompatible(detail string) *CodeCompassError {
	return New(KindSchemaIncompatible, "index schema is incompatible: "+detail, nil).
		WithSuggestion("reindex with --force")
}

func NoEdgesAvailable(symbol string) *CodeCompassError {
	return New(KindNoEdgesAvailable, "no incoming edges for symbol: "+symbol, nil)
}

func SymbolNotFound(name string) *CodeCompassError {
	return New(KindSymbolNotFound, "symbol not found: "+name, nil)
}

func ResultNotFound(detail string) *CodeCompassError {
	return New(KindResultNotFound, "no matching result: "+detail, nil)
}

func StaleIndex(projectID, ref string) *CodeCompassError {
	return New(KindStaleIndex, "index is stale under strict freshness policy", nil).
		WithDetail("project_id", projectID).WithDetail("ref", ref)
}

func PolicyViolation(detail string) *CodeCompassError {
	return New(KindPolicyViolation, "policy violation: "+detail, nil)
}

func MergeBaseFailed(baseRef, headRef string, cause error) *CodeCompassError {
	return New(KindMergeBaseFailed, "failed to compute merge base", cause).
		WithDetail("base_ref", baseRef).WithDetail("head_ref", headRef)
}

func VcsError(message string, cause error) *CodeCompassError {
	return New(KindVcsError, message, cause)
}

func ExternalProviderError(provider, reason string, cause error) *CodeCompassError {
	return New(KindExternalProviderError, "external provider failed: "+reason, cause).
		WithDetail("provider", provider).WithDetail("reason", reason)
}

func SqliteError(message string, cause error) *CodeCompassError {
	return New(KindSqlite, message, cause)
}

func IoError(message string, cause error) *CodeCompassError {
	return New(KindIo, message, cause)
}

func InternalError(message string, cause error) *CodeCompassError {
	return New(KindInternal, message, cause)
}

// IsRetryable reports whether err is a CodeCompassError with Retryable set.
func IsRetryable(err error) bool {
	if ce, ok := err.(*CodeCompassError); ok {
		return ce.Retryable
	}
	return false
}

// IsFatal reports whether err is a CodeCompassError with fatal severity.
func IsFatal(err error) bool {
	if ce, ok := err.(*CodeCompassError); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetKind extracts the Kind from err, or "" if not a CodeCompassError.
func GetKind(err error) Kind {
	if ce, ok := err.(*CodeCompassError); ok {
		return ce.Kind
	}
	return ""
}

// GetCode extracts the stable string code from err, or "" otherwise.
func GetCode(err error) string {
	if ce, ok := err.(*CodeCompassError); ok {
		return ce.Code
	}
	return ""
}
