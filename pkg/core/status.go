package core

// StepStatus is the outcome of a step or a whole scenario.
type StepStatus int

const (
	StatusPending StepStatus = iota
	StatusRunning
	StatusPassed
	StatusFailed  // assertion: version mismatch, bookmark missing
	StatusErrored // infrastructure: server unreachable, wait timed out
	StatusSkipped // deselected or the run was cancelled
	StatusWarned  // an optional step failed
)

var statusNames = [...]string{
	StatusPending: "pending",
	StatusRunning: "running",
	StatusPassed:  "passed",
	StatusFailed:  "failed",
	StatusErrored: "errored",
	StatusSkipped: "skipped",
	StatusWarned:  "warned",
}

func (s StepStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText renders the status by name in JSON reports.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether the status is final.
func (s StepStatus) IsTerminal() bool {
	return s >= StatusPassed && s <= StatusWarned
}

// IsSuccess reports passed or warned.
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// StatusForError maps nil to passed, assertion failures to failed and
// everything else to errored.
func StatusForError(err error) StepStatus {
	switch {
	case err == nil:
		return StatusPassed
	case CategoryOf(err) == ErrCategoryAssertion:
		return StatusFailed
	default:
		return StatusErrored
	}
}

// ErrorCategory groups failures for reports (Allure categories, JUnit types).
type ErrorCategory int

const (
	ErrCategoryNone ErrorCategory = iota
	ErrCategoryAssertion
	ErrCategoryTimeout
	ErrCategoryConnection // WinAppDriver unreachable, session lost
	ErrCategoryApp        // not installed, installer failed
	ErrCategoryConfig
)

var categoryNames = [...]string{
	ErrCategoryNone:       "none",
	ErrCategoryAssertion:  "assertion",
	ErrCategoryTimeout:    "timeout",
	ErrCategoryConnection: "connection",
	ErrCategoryApp:        "app",
	ErrCategoryConfig:     "config",
}

func (c ErrorCategory) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// MarshalText renders the category by name in JSON reports.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
