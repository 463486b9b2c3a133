// Package migration defines the migration data model: plans, phases,
// tasks, rollback procedures, validation steps, and the status and error
// taxonomy shared across the orchestration engine.
package migration

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an orchestration error for propagation and
// recovery decisions.
type ErrorClass string

const (
	// ErrorClassNotFound indicates a referenced plan, phase or task does not exist.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassValidation indicates a structural or pre/post-execution check failed.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassTimeout indicates an execution attempt exceeded its deadline.
	// The underlying work is abandoned, not interrupted.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassExecution indicates an executor returned a failure.
	ErrorClassExecution ErrorClass = "execution"

	// ErrorClassRollback indicates a rollback or recovery step failed.
	// Rollback errors are recorded, never re-thrown.
	ErrorClassRollback ErrorClass = "rollback"
)

// Error represents a classified orchestration error carrying the
// plan/phase/task context it occurred in.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// PlanID is the plan the error relates to, if applicable.
	PlanID string `json:"plan_id,omitempty"`

	// PhaseID is the phase the error relates to, if applicable.
	PhaseID string `json:"phase_id,omitempty"`

	// TaskID is the task the error relates to, if applicable.
	TaskID string `json:"task_id,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	scope := e.scope()
	if scope != "" && e.Err != nil {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Class, e.Message, scope, e.Err)
	}
	if scope != "" {
		return fmt.Sprintf("[%s] %s (%s)", e.Class, e.Message, scope)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Class, e.Message)
}

func (e *Error) scope() string {
	switch {
	case e.TaskID != "":
		return fmt.Sprintf("plan=%s, phase=%s, task=%s", e.PlanID, e.PhaseID, e.TaskID)
	case e.PhaseID != "":
		return fmt.Sprintf("plan=%s, phase=%s", e.PlanID, e.PhaseID)
	case e.PlanID != "":
		return fmt.Sprintf("plan=%s", e.PlanID)
	default:
		return ""
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithPlan adds plan context to an error.
func (e *Error) WithPlan(planID string) *Error {
	e.PlanID = planID
	return e
}

// WithPhase adds phase context to an error.
func (e *Error) WithPhase(planID, phaseID string) *Error {
	e.PlanID = planID
	e.PhaseID = phaseID
	return e
}

// WithTask adds task context to an error.
func (e *Error) WithTask(planID, phaseID, taskID string) *Error {
	e.PlanID = planID
	e.PhaseID = phaseID
	e.TaskID = taskID
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *Error {
	return &Error{Class: ErrorClassNotFound, Message: message, Err: err, Code: ErrCodeNotFound}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *Error {
	return &Error{Class: ErrorClassValidation, Message: message, Err: err, Code: ErrCodeValidation}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, err error) *Error {
	return &Error{Class: ErrorClassTimeout, Message: message, Err: err, Code: ErrCodeTimeout}
}

// NewExecutionError creates a new execution error.
func NewExecutionError(message string, err error) *Error {
	return &Error{Class: ErrorClassExecution, Message: message, Err: err, Code: ErrCodeExecutionFailed}
}

// NewRollbackError creates a new rollback error.
func NewRollbackError(message string, err error) *Error {
	return &Error{Class: ErrorClassRollback, Message: message, Err: err, Code: ErrCodeRollbackFailed}
}

// IsNotFound returns true if the error is classified as not-found.
func IsNotFound(err error) bool {
	return hasClass(err, ErrorClassNotFound)
}

// IsValidation returns true if the error is classified as a validation failure.
func IsValidation(err error) bool {
	return hasClass(err, ErrorClassValidation)
}

// IsTimeout returns true if the error is classified as a timeout.
func IsTimeout(err error) bool {
	return hasClass(err, ErrorClassTimeout)
}

// IsExecution returns true if the error is classified as an execution failure.
func IsExecution(err error) bool {
	return hasClass(err, ErrorClassExecution)
}

// IsRollback returns true if the error is classified as a rollback failure.
func IsRollback(err error) bool {
	return hasClass(err, ErrorClassRollback)
}

func hasClass(err error, class ErrorClass) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// Common error codes.
const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeExecutionFailed = "EXECUTION_FAILED"
	ErrCodeRollbackFailed  = "ROLLBACK_FAILED"
	ErrCodeNoExecutor      = "NO_EXECUTOR"
	ErrCodeRetryExhausted  = "RETRY_EXHAUSTED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)
