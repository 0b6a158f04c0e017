// Package errs carries the engine's error taxonomy. Configuration errors are
// fatal at construction time; invalid-state errors indicate logic bugs and are
// surfaced immediately rather than recovered from.
package errs

import "fmt"

const (
	CodeConfiguration = "CONFIGURATION"
	CodeInvalidState  = "INVALID_STATE"
	CodeProtocol      = "PROTOCOL"
)

type Error struct {
	Code    string
	Message string
}

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func NewConfiguration(format string, parts ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, parts...)}
}

func NewInvalidState(format string, parts ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, parts...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on error code so callers can test categories with errors.Is
// against the exported sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	// ErrConfiguration is the match target for construction-time failures.
	ErrConfiguration = New(CodeConfiguration, "invalid configuration")

	// ErrInvalidState is the match target for API misuse, e.g. recording a
	// trial before opening a score block.
	ErrInvalidState = New(CodeInvalidState, "invalid state")
)
