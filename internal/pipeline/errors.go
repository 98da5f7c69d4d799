package pipeline

import "fmt"

// Code is the stable machine-readable error category returned to callers.
type Code string

const (
	CodeMissingCredential Code = "MISSING_CREDENTIAL"
	CodeInvalidCredential Code = "INVALID_CREDENTIAL"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeGuardrailBlocked  Code = "GUARDRAIL_BLOCKED"
	CodeVersionNotFound   Code = "VERSION_NOT_FOUND"
	CodeSchemaValidation  Code = "SCHEMA_VALIDATION_FAILED"
	CodeUpstreamError     Code = "UPSTREAM_PROVIDER_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// Error is the tagged failure type flowing out of the pipeline. Admission
// failures are terminal and never retried; only upstream exhaustion maps
// to a 500.
type Error struct {
	Code    Code
	Status  int
	Message string
	Debug   map[string]any
	Err     error
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

func newError(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}
