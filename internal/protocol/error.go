package protocol

import ccerrors "github.com/signalridge/codecompass/internal/errors"

// ErrorFromCodeCompassError converts the engine's structured error type
// into the wire-level ErrorPayload. Workspace routing
// errors are reported as tool-level payload errors, never as a JSON-RPC
// transport error, so every caller of a query tool should route through
// this rather than constructing a transport fault.
func ErrorFromCodeCompassError(err error) *ErrorPayload {
	if err == nil {
		return nil
	}
	ce, ok := err.(*ccerrors.CodeCompassError)
	if !ok {
		return &ErrorPayload{
			Code:    "ERR_INTERNAL",
			Message: err.Error(),
		}
	}
	return &ErrorPayload{
		Code:       ce.Code,
		Message:    ce.Message,
		Category:   string(ce.Category),
		Severity:   string(ce.Severity),
		Retryable:  ce.Retryable,
		Suggestion: ce.Suggestion,
		Details:    ce.Details,
	}
}
