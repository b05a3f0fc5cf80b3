package exitcodes

import "errors"

// Exit codes for the fsguard CLI
// These codes form the contract with scripts and operators
const (
	Success         = 0 // Successful execution
	InvalidConfig   = 2 // Configuration file invalid
	PolicyRejection = 3 // Safety policy rejected the operation
	RuntimeError    = 4 // Runtime error during execution
)

// Error carries the process exit code for err.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with code. A nil err stays nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// FromError returns the exit code for err. Untagged errors are runtime
// errors.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RuntimeError
}
