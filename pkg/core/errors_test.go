package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionError_Error(t *testing.T) {
	assert.Equal(t, "element not found", ErrElementNotFound.Error())

	err := ErrSessionInit.WithMessage("failed to initialize session at http://127.0.0.1:4723").
		WithCause(errors.New("connection refused"))
	assert.Equal(t, "failed to initialize session at http://127.0.0.1:4723: connection refused", err.Error())
}

func TestExecutionError_CopiesLeaveTemplate(t *testing.T) {
	cause := errors.New("timeout after 240s")
	err := ErrInstallFailed.WithCause(cause).WithMessagef("shift.exe did not appear in %s", `C:\Users\ci`)

	assert.Same(t, cause, err.Unwrap())
	assert.Equal(t, ErrInstallFailed.Code, err.Code)
	assert.Nil(t, ErrInstallFailed.Cause)
	assert.Equal(t, "application install failed", ErrInstallFailed.Message)
}

func TestExecutionError_WithDetails(t *testing.T) {
	base := ErrVersionMismatch.WithDetails(map[string]any{"expected": "9.3.1.0"})
	err := base.WithDetails(map[string]any{"displayed": "Version 9.2.0.0"})

	assert.Equal(t, map[string]any{"expected": "9.3.1.0", "displayed": "Version 9.2.0.0"}, err.Details)
	assert.Len(t, base.Details, 1)
	assert.Nil(t, ErrVersionMismatch.Details)
}

func TestExecutionError_Is(t *testing.T) {
	cause := errors.New("root cause")
	err := fmt.Errorf("open session: %w", ErrSessionInit.WithMessage("failed").WithCause(cause))

	assert.ErrorIs(t, err, ErrSessionInit)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNoSession)
	assert.NotErrorIs(t, &ExecutionError{}, &ExecutionError{})
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
	}{
		{ErrElementNotFound, ErrCategoryAssertion},
		{ErrVersionMismatch, ErrCategoryAssertion},
		{ErrBookmarkNotFound, ErrCategoryAssertion},
		{ErrCheckboxNotToggled, ErrCategoryAssertion},
		{ErrConditionNotMet, ErrCategoryAssertion},
		{ErrWaitTimeout, ErrCategoryTimeout},
		{ErrSessionInit, ErrCategoryConnection},
		{ErrNoSession, ErrCategoryConnection},
		{ErrAppNotInstalled, ErrCategoryApp},
		{ErrInstallFailed, ErrCategoryApp},
		{ErrInvalidConfig, ErrCategoryConfig},
		{ErrMissingRequired, ErrCategoryConfig},
	}
	seen := map[string]bool{}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.NotEmpty(t, tt.err.Message)
			require.False(t, seen[tt.err.Code], "duplicate code")
			seen[tt.err.Code] = true
		})
	}
}

func TestCategoryOf(t *testing.T) {
	wrapped := fmt.Errorf("verify: %w", ErrVersionMismatch.WithCause(errors.New("x")))
	assert.Equal(t, ErrCategoryAssertion, CategoryOf(wrapped))
	assert.Equal(t, ErrCategoryNone, CategoryOf(errors.New("plain")))
	assert.Equal(t, ErrCategoryNone, CategoryOf(nil))
	assert.Equal(t, ErrCategoryTimeout, CategoryOf(errors.Join(errors.New("a"), ErrWaitTimeout)))
}
