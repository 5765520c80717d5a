// Package errors provides structured error types for stagectl.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies error conditions for remediation purposes
type ErrorCode string

const (
	ErrCodePrerequisiteNotMet ErrorCode = "PREREQUISITE_NOT_MET"
	ErrCodeConflictDetected   ErrorCode = "CONFLICT_DETECTED"
	ErrCodeTransientProvider  ErrorCode = "TRANSIENT_PROVIDER_ERROR"
	ErrCodeConvergencePending ErrorCode = "CONVERGENCE_PENDING"
	ErrCodeResourceStillInUse ErrorCode = "RESOURCE_STILL_IN_USE"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeParse              ErrorCode = "PARSE_ERROR"
	ErrCodeBackend            ErrorCode = "BACKEND_ERROR"
	ErrCodeCredentials        ErrorCode = "CREDENTIALS_ERROR"
	ErrCodeFatal              ErrorCode = "FATAL_ERROR"
)

// Error is the base error type for stagectl
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Wrap creates a new error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a single detail to an error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// PrerequisiteNotMet indicates a dependency stage has not completed.
func PrerequisiteNotMet(stage, reason string) *Error {
	return &Error{
		Code:    ErrCodePrerequisiteNotMet,
		Message: fmt.Sprintf("prerequisite stage %q not met: %s", stage, reason),
		Details: map[string]interface{}{
			"stage":  stage,
			"reason": reason,
		},
	}
}

// MissingField indicates a prerequisite outputs document lacks a field the
// current stage declared it needs.
func MissingField(stage, field string) *Error {
	return &Error{
		Code:    ErrCodePrerequisiteNotMet,
		Message: fmt.Sprintf("prerequisite stage %q outputs missing required field %q", stage, field),
		Details: map[string]interface{}{
			"stage": stage,
			"field": field,
		},
	}
}

// ConflictDetected indicates existing resources collide with names the
// stage is about to create.
func ConflictDetected(prefix string, count int) *Error {
	return &Error{
		Code:    ErrCodeConflictDetected,
		Message: fmt.Sprintf("%d existing resource(s) match the name prefix %q", count, prefix),
		Details: map[string]interface{}{
			"prefix": prefix,
			"count":  count,
		},
	}
}

// TransientProvider indicates a throttled or timed-out provider call that
// may succeed on retry.
func TransientProvider(operation string, cause error) *Error {
	return &Error{
		Code:    ErrCodeTransientProvider,
		Message: fmt.Sprintf("provider call %s failed transiently", operation),
		Cause:   cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// ConvergencePending indicates an external resource did not reach a
// terminal state within the polling budget.
func ConvergencePending(resource string) *Error {
	return &Error{
		Code:    ErrCodeConvergencePending,
		Message: fmt.Sprintf("%s has not converged yet", resource),
		Details: map[string]interface{}{
			"resource": resource,
		},
	}
}

// ResourceStillInUse indicates a delete was rejected because something
// still references the resource.
func ResourceStillInUse(resource string, cause error) *Error {
	return &Error{
		Code:    ErrCodeResourceStillInUse,
		Message: fmt.Sprintf("%s is still in use", resource),
		Cause:   cause,
		Details: map[string]interface{}{
			"resource": resource,
		},
	}
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, name string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resourceType, name),
		Details: map[string]interface{}{
			"resource_type": resourceType,
			"name":          name,
		},
	}
}

// ValidationError creates a validation error
func ValidationError(message string, details map[string]interface{}) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: message,
		Details: details,
	}
}

// ParseError creates a parse error for a stored document
func ParseError(path string, err error) *Error {
	return &Error{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("failed to parse %s", path),
		Cause:   err,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// BackendError creates a backend error
func BackendError(backend string, operation string, err error) *Error {
	return &Error{
		Code:    ErrCodeBackend,
		Message: fmt.Sprintf("backend %s failed during %s", backend, operation),
		Cause:   err,
		Details: map[string]interface{}{
			"backend":   backend,
			"operation": operation,
		},
	}
}

// CredentialsError indicates a credential context could not be validated.
func CredentialsError(role string, err error) *Error {
	return &Error{
		Code:    ErrCodeCredentials,
		Message: fmt.Sprintf("unable to authenticate the %s credential context", role),
		Cause:   err,
		Details: map[string]interface{}{
			"role": role,
		},
	}
}

// Fatal wraps an unclassified error; the runner halts on these without
// attempting rollback.
func Fatal(message string, cause error) *Error {
	return &Error{
		Code:    ErrCodeFatal,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// Is checks if the error (or anything it wraps) carries the given code
func Is(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the classification of err, or ErrCodeFatal when the
// error carries no classification.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeFatal
}

// remediation text keyed by classification, rendered alongside failures
var remediations = map[ErrorCode]string{
	ErrCodePrerequisiteNotMet: "deploy the prerequisite stage to completion, then re-run this command",
	ErrCodeConflictDetected:   "rename or remove the conflicting resources, or re-run with --auto-approve to proceed anyway",
	ErrCodeTransientProvider:  "the provider throttled or timed out; re-run the same command",
	ErrCodeConvergencePending: "the resource is still propagating; wait a few minutes and re-run to re-validate",
	ErrCodeResourceStillInUse: "wait for the referencing change to propagate, then re-run the rollback",
	ErrCodeNotFound:           "verify the stage has been deployed and the backend configuration points at the right location",
	ErrCodeValidation:         "correct the named input field and re-run",
	ErrCodeParse:              "the stored document is malformed; restore it from a known-good copy or roll the stage back",
	ErrCodeBackend:            "check backend connectivity and configuration, then re-run",
	ErrCodeCredentials:        "verify the named profile exists and can authenticate, then re-run",
	ErrCodeFatal:              "inspect the underlying error; if resources were partially created, run rollback for this stage",
}

// Remediation returns the operator guidance for an error's classification.
func Remediation(err error) string {
	return remediations[CodeOf(err)]
}
