// Package request translates loosely typed JSON into a typed execution
// request, with a precise error taxonomy for every way the translation can
// fail.
package request

import "fmt"

// Code is a machine-readable error code, stable across releases so HTTP
// clients can branch on it instead of parsing the human message.
type Code string

const (
	CodeMissingRequiredField  Code = "MISSING_REQUIRED_FIELD"
	CodeInvalidCommand        Code = "INVALID_COMMAND"
	CodeInvalidTimeout        Code = "INVALID_TIMEOUT"
	CodeInvalidType           Code = "INVALID_TYPE"
	CodeInvalidPath           Code = "INVALID_PATH"
	CodeInvalidFileFormat     Code = "INVALID_FILE_FORMAT"
	CodeInvalidFilePayload    Code = "INVALID_FILE_PAYLOAD"
	CodeMissingEnvironment    Code = "MISSING_ENVIRONMENT"
	CodeEnvironmentNotFound   Code = "ENVIRONMENT_NOT_FOUND"
	CodeEnvironmentExists     Code = "ENVIRONMENT_EXISTS"
	CodeInvalidConcurrency    Code = "INVALID_CONCURRENCY_MODE"
	CodeEnvironmentLocked     Code = "ENVIRONMENT_LOCKED"
	CodeSpawnFailed           Code = "SPAWN_FAILED"
	CodeFileWriteError        Code = "FILE_WRITE_ERROR"
	CodeFileReadError         Code = "FILE_READ_ERROR"
	CodeStreamError           Code = "STREAM_ERROR"
)

// Error is the single error type returned by request validation, workspace
// materialization, environment checkout and command spawning. Status is the
// HTTP status the API layer should respond with; Code is the machine string
// exposed in the response body's "code" field.
type Error struct {
	Code    Code
	Status  int
	Message string
	// Err is the underlying cause, if any, preserved for logging.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusForCode maps each code to its default HTTP status.
var statusForCode = map[Code]int{
	CodeMissingRequiredField: 400,
	CodeInvalidCommand:       400,
	CodeInvalidTimeout:       400,
	CodeInvalidType:          400,
	CodeInvalidPath:          400,
	CodeInvalidFileFormat:    400,
	CodeInvalidFilePayload:   400,
	CodeMissingEnvironment:   400,
	CodeEnvironmentNotFound:  404,
	CodeEnvironmentExists:    409,
	CodeInvalidConcurrency:   400,
	CodeEnvironmentLocked:    423,
	CodeSpawnFailed:          500,
	CodeFileWriteError:       500,
	CodeFileReadError:        500,
	CodeStreamError:          500,
}

// NewError builds an *Error using the code's default HTTP status.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Status:  statusForCode[code],
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap builds an *Error carrying an underlying cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Status:  statusForCode[code],
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
