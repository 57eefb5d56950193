package error

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(ConnectionError, "failed to dial", cause)

	assert.Equal(t, "failed to dial: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestAppError_WithoutCause(t *testing.T) {
	err := New(ValidationError, "host is required", nil)
	assert.Equal(t, "host is required", err.Error())
}

func TestIs_FindsTypeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("sync aborted: %w", New(TransferError, "upload failed", nil))

	assert.True(t, Is(err, TransferError))
	assert.False(t, Is(err, AuthError))
	assert.False(t, Is(errors.New("plain"), TransferError))
}

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "auth", AuthError.String())
	assert.Equal(t, "unknown", ErrorType(42).String())
}
