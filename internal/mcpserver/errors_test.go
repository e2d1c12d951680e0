package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ccerrors "github.com/signalridge/codecompass/internal/errors"
)

func TestMapError_Nil_ReturnsNil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_ProjectNotFound_MapsToCustomCode(t *testing.T) {
	err := ccerrors.ProjectNotFound("p1")
	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeProjectNotFound, mapped.Code)
	assert.Equal(t, "ERR_PROJECT_NOT_FOUND", mapped.Payload.Code)
}

func TestMapError_SymbolNotFound_MapsToResultNotFoundCode(t *testing.T) {
	mapped := MapError(ccerrors.SymbolNotFound("Foo"))
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeResultNotFound, mapped.Code)
}

func TestMapError_ContextDeadlineExceeded_MapsToTimeout(t *testing.T) {
	mapped := MapError(context.DeadlineExceeded)
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeTimeout, mapped.Code)
	assert.True(t, mapped.Payload.Retryable)
}

func TestMapError_UnrecognizedError_MapsToInternal(t *testing.T) {
	mapped := MapError(errors.New("boom"))
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodeInternalError, mapped.Code)
}

func TestMapError_PolicyViolation_MapsToPolicyCode(t *testing.T) {
	mapped := MapError(ccerrors.PolicyViolation("blocked secret"))
	require.NotNil(t, mapped)
	assert.Equal(t, ErrCodePolicyViolation, mapped.Code)
}
