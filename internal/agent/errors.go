package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateHandler is matched by errors returned from Register when a
	// handler name is already taken.
	ErrDuplicateHandler = errors.New("duplicate handler")
	// ErrHandlerExecution is matched by HandlerExecutionError.
	ErrHandlerExecution = errors.New("handler execution failed")
	// ErrContractViolation is matched by ContractViolationError.
	ErrContractViolation = errors.New("contract violation")

	errNilResponse = errors.New("handler returned nil response")
)

// DuplicateHandlerError is returned when registering a name twice.
type DuplicateHandlerError struct {
	Name string
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("handler %q already registered", e.Name)
}

func (e *DuplicateHandlerError) Is(target error) bool {
	return target == ErrDuplicateHandler
}

// HandlerExecutionError wraps a failure raised by a handler's Handle method,
// either a returned error or a recovered panic.
type HandlerExecutionError struct {
	Handler string
	Err     error
	Panic   any
}

func (e *HandlerExecutionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %s panicked: %v", e.Handler, e.Panic)
	}
	return fmt.Sprintf("handler %s failed: %v", e.Handler, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error {
	return e.Err
}

func (e *HandlerExecutionError) Is(target error) bool {
	return target == ErrHandlerExecution
}

// ContractViolationError reports malformed input from a caller.
type ContractViolationError struct {
	Field  string
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("contract violation: %s %s", e.Field, e.Reason)
}

func (e *ContractViolationError) Is(target error) bool {
	return target == ErrContractViolation
}
