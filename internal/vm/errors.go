package vm

import (
	"fmt"
)

// ErrorCode identifies misuse of the runtime model.
type ErrorCode int

// Stable codes - do not change values.
const (
	ErrUnknownSetter   ErrorCode = 1001 // VM1001: setter name not in descriptor
	ErrBindingMismatch ErrorCode = 1002 // VM1002: host functions do not fit the descriptor
	ErrTypeMismatch    ErrorCode = 1003 // VM1003: value not assignable to slot
	ErrMissingDefault  ErrorCode = 1004 // VM1004: optional slot without default function
	ErrNotAnInstance   ErrorCode = 1005 // VM1005: ToBuilder on a value of another type
	ErrNoToBuilder     ErrorCode = 1006 // VM1006: descriptor has no ToBuilder
)

// String returns the code as "VM1001".
func (c ErrorCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// VMError is a usage error of the runtime model. Generated Go code rejects
// the same mistakes at compile time.
type VMError struct {
	Code    ErrorCode
	Message string
}

func (e *VMError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errorf(code ErrorCode, format string, args ...any) *VMError {
	return &VMError{Code: code, Message: fmt.Sprintf(format, args...)}
}
