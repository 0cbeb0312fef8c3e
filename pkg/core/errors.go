package core

import (
	"errors"
	"fmt"
	"maps"
)

// ExecutionError is a classified failure. Predefined values below act as
// templates: the With* methods return copies that still satisfy errors.Is
// against the template because matching is by Code.
type ExecutionError struct {
	Category ErrorCategory
	Code     string         // element_not_found, session_init, ...
	Message  string         // shown in reports and the console
	Details  map[string]any // e.g. expected and displayed version
	Cause    error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// Is matches any ExecutionError with the same non-empty Code.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	return ok && t.Code != "" && t.Code == e.Code
}

func (e *ExecutionError) clone() *ExecutionError {
	c := *e
	return &c
}

// WithCause returns a copy wrapping cause.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage returns a copy with msg replacing the template message.
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithMessagef is WithMessage with formatting.
func (e *ExecutionError) WithMessagef(format string, args ...any) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy with details merged over the existing ones.
func (e *ExecutionError) WithDetails(details map[string]any) *ExecutionError {
	c := e.clone()
	c.Details = make(map[string]any, len(e.Details)+len(details))
	maps.Copy(c.Details, e.Details)
	maps.Copy(c.Details, details)
	return c
}

func newError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{Category: category, Code: code, Message: message}
}

// Assertion failures: the browser was reachable but not in the expected state.
var (
	ErrElementNotFound    = newError(ErrCategoryAssertion, "element_not_found", "element not found")
	ErrVersionMismatch    = newError(ErrCategoryAssertion, "version_mismatch", "version mismatch")
	ErrBookmarkNotFound   = newError(ErrCategoryAssertion, "bookmark_not_found", "bookmark not found in bookmarks bar")
	ErrCheckboxNotToggled = newError(ErrCategoryAssertion, "checkbox_not_toggled", "checkbox did not become checked")
	ErrConditionNotMet    = newError(ErrCategoryAssertion, "condition_not_met", "condition was not met")
)

// Infrastructure failures.
var (
	ErrWaitTimeout     = newError(ErrCategoryTimeout, "wait_timeout", "wait condition timed out")
	ErrSessionInit     = newError(ErrCategoryConnection, "session_init", "failed to start automation session")
	ErrNoSession       = newError(ErrCategoryConnection, "no_session", "no active automation session")
	ErrAppNotInstalled = newError(ErrCategoryApp, "app_not_installed", "application is not installed")
	ErrInstallFailed   = newError(ErrCategoryApp, "install_failed", "application install failed")
	ErrInvalidConfig   = newError(ErrCategoryConfig, "invalid_config", "invalid configuration")
	ErrMissingRequired = newError(ErrCategoryConfig, "missing_required", "missing required field")
)

// CategoryOf returns the category of the first ExecutionError in err's
// chain, or ErrCategoryNone.
func CategoryOf(err error) ErrorCategory {
	var e *ExecutionError
	if errors.As(err, &e) {
		return e.Category
	}
	return ErrCategoryNone
}
