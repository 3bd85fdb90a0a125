// Package prismerr distinguishes the two ways a PageUnit can fail, per
// spec.md §7's error-kind table: a transient infrastructure error a
// Worker already retried and gave up on (UnitError), and an invalid
// input the Worker never should retry at all (FatalUnitError). Both
// wrap an underlying error with the operation name that failed, the
// way this module's other packages use fmt.Errorf's %w throughout.
package prismerr

import "fmt"

// UnitError reports a PageUnit failure after a retryable operation
// exhausted its attempts (spec.md §7 error kind 1: transient infra).
// A Worker records it as the unit's error_message and moves on to the
// next message; it is never a reason to stop the worker loop.
type UnitError struct {
	Op  string
	Err error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// NewUnitError wraps err as a UnitError for the named operation.
func NewUnitError(op string, err error) *UnitError {
	return &UnitError{Op: op, Err: err}
}

// FatalUnitError reports a PageUnit failure a Worker must not retry at
// all (spec.md §7 error kind 4: invalid input). It causes an immediate
// failed status with no attempt made.
type FatalUnitError struct {
	Op  string
	Err error
}

func (e *FatalUnitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalUnitError) Unwrap() error {
	return e.Err
}

// NewFatalUnitError wraps err as a FatalUnitError for the named
// operation.
func NewFatalUnitError(op string, err error) *FatalUnitError {
	return &FatalUnitError{Op: op, Err: err}
}
