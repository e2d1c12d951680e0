package mcpserver

import (
	"context"
	"errors"
	"fmt"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
	"github.com/signalridge/codecompass/internal/protocol"
)

// Custom JSON-RPC error codes for query-tool failures that don't map to
// a standard code, in the implementation-defined -3200x range.
const (
	ErrCodeProjectNotFound  = -32001
	ErrCodeRefNotIndexed    = -32002
	ErrCodeTimeout          = -32003
	ErrCodeResultNotFound   = -32004
	ErrCodePolicyViolation  = -32005
	ErrCodeInvalidRequest   = -32600
	ErrCodeMethodNotFound   = -32601
	ErrCodeInvalidParams    = -32602
	ErrCodeInternalError    = -32603
)

// MCPError is the {code, message} shape returned as a tool error,
// layered with the protocol.ErrorPayload fields every query tool
// response embeds on failure.
type MCPError struct {
	Code    int
	Message string

	Payload protocol.ErrorPayload
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// MapError converts a retrieval/rs/li/policy error into an MCPError,
// classifying CodeCompassError by Kind and falling back to the standard
// JSON-RPC codes for context cancellation and anything unrecognized.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ce *ccerrors.CodeCompassError
	if errors.As(err, &ce) {
		return mapCodeCompassError(ce)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out", Payload: protocol.ErrorPayload{
			Code: "ERR_TIMEOUT", Message: "request timed out", Retryable: true,
		}}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request was canceled", Payload: protocol.ErrorPayload{
			Code: "ERR_TIMEOUT", Message: "request was canceled", Retryable: true,
		}}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error(), Payload: protocol.ErrorPayload{
			Code: "ERR_INTERNAL", Message: err.Error(),
		}}
	}
}

func mapCodeCompassError(ce *ccerrors.CodeCompassError) *MCPError {
	payload := protocol.ErrorPayload{
		Code:       ce.Code,
		Message:    ce.Message,
		Category:   string(ce.Category),
		Severity:   string(ce.Severity),
		Retryable:  ce.Retryable,
		Suggestion: ce.Suggestion,
		Details:    ce.Details,
	}

	switch ce.Kind {
	case ccerrors.KindProjectNotFound:
		return &MCPError{Code: ErrCodeProjectNotFound, Message: ce.Message, Payload: payload}
	case ccerrors.KindRefNotIndexed, ccerrors.KindOverlayNotReady, ccerrors.KindStaleIndex:
		return &MCPError{Code: ErrCodeRefNotIndexed, Message: ce.Message, Payload: payload}
	case ccerrors.KindSymbolNotFound, ccerrors.KindResultNotFound, ccerrors.KindNoEdgesAvailable:
		return &MCPError{Code: ErrCodeResultNotFound, Message: ce.Message, Payload: payload}
	case ccerrors.KindPolicyViolation, ccerrors.KindWorkspaceNotAllowed, ccerrors.KindWorkspaceNotRegistered,
		ccerrors.KindAllowedRootRequired:
		return &MCPError{Code: ErrCodePolicyViolation, Message: ce.Message, Payload: payload}
	case ccerrors.KindInvalidInput, ccerrors.KindSchemaIncompatible:
		return &MCPError{Code: ErrCodeInvalidParams, Message: ce.Message, Payload: payload}
	case ccerrors.KindVcsError, ccerrors.KindMergeBaseFailed, ccerrors.KindExternalProviderError:
		return &MCPError{Code: ErrCodeTimeout, Message: ce.Message, Payload: payload}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: ce.Message, Payload: payload}
	}
}

// NewInvalidParamsError builds an MCPError for malformed tool input.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg, Payload: protocol.ErrorPayload{
		Code: "ERR_INVALID_PARAMS", Message: msg,
	}}
}
