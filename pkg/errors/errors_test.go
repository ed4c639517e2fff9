package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeRegistry, "double reserve"),
			expected: "[REGISTRY_INVARIANT] double reserve",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeFieldAccess, "read Node.next", errors.New("boom")),
			expected: "[FIELD_ACCESS_ERROR] read Node.next: boom",
		},
		{
			name:     "formatted",
			err:      Newf(CodeRootEnumeration, "no holders match %q", "game/*"),
			expected: `[ROOT_ENUMERATION_ERROR] no holders match "game/*"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeSerialize, "encode", underlying)

	assert.Equal(t, underlying, err.Unwrap())
	assert.True(t, errors.Is(err, underlying))
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeRegistry, "error 1")
	err2 := New(CodeRegistry, "error 2")
	err3 := New(CodeLayout, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"registry", Wrap(CodeRegistry, "finalize without reserve", nil), true},
		{"root enumeration", ErrRootEnumeration, true},
		{"wrapped with fmt", fmt.Errorf("run: %w", ErrRegistry), true},
		{"field access", ErrFieldAccess, false},
		{"layout", ErrLayout, false},
		{"plain", errors.New("x"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsFieldAccessError(Wrap(CodeFieldAccess, "f", nil)))
	assert.True(t, IsRegistryError(ErrRegistry))
	assert.True(t, IsNotFound(New(CodeNotFound, "dump 42")))
	assert.False(t, IsNotFound(ErrLayout))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeLayout, GetErrorCode(ErrLayout))
	assert.Equal(t, CodeStorageError, GetErrorCode(fmt.Errorf("upload: %w", ErrStorageError)))
	assert.Equal(t, CodeUnknown, GetErrorCode(errors.New("plain")))
	assert.Equal(t, CodeUnknown, GetErrorCode(nil))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "a dump is already running", GetErrorMessage(ErrDumpInProgress))
	assert.Equal(t, "plain", GetErrorMessage(errors.New("plain")))
	assert.Equal(t, "", GetErrorMessage(nil))
}
