package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an indexing failure so callers can branch on it, for
// example the CLI treating a missing default config as no config.
type ErrorCode string

const (
	// CodeNotFound marks a missing config file, source file or search path.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeValidationError marks bad input: config values, flags, misuse of a
	// session or sink.
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	// CodeNotSupported marks input newer than this build understands, such
	// as a config version.
	CodeNotSupported ErrorCode = "NOT_SUPPORTED"
	// CodeParse marks a file tree-sitter could not produce a tree for.
	// Syntax errors inside a tree are recorded in the index instead.
	CodeParse ErrorCode = "PARSE_ERROR"
	// CodeStorage marks a failed write to the index database.
	CodeStorage ErrorCode = "STORAGE_ERROR"
)

// Context keys attached with AddContext.
const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxMode      = "mode"
)

// DomainError is an error with an ErrorCode and key/value context.
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Newf(code ErrorCode, format string, args ...interface{}) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns nil for a nil err.
func Wrap(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext sets key on the nearest DomainError in err's chain. A plain
// error is wrapped as CodeInternal.
func AddContext(err error, key string, value interface{}) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if !errors.As(err, &de) {
		return &DomainError{
			Code:    CodeInternal,
			Message: "wrapped error",
			Err:     err,
			Context: map[string]interface{}{key: value},
		}
	}
	if de.Context == nil {
		de.Context = make(map[string]interface{})
	}
	de.Context[key] = value
	return err
}

func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == code
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}
