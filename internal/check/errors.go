package check

import (
	"fmt"
	"runtime/debug"
)

// ModuleError is a module failure: a check returned an error or panicked.
// It is fatal for the walk of the current file.
type ModuleError struct {
	Module string
	Phase  string // begin, visit, leave, finish
	Kind   string // вид узла; пусто для begin/finish
	Line   int
	Column int
	Err    error
}

func (e *ModuleError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s: %s failed: %v", e.Module, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s: %s failed at %d:%d (%s): %v", e.Module, e.Phase, e.Line, e.Column, e.Kind, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

// PanicError carries a panic recovered from check code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panic value that is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Call runs fn and converts a panic into *PanicError.
func Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
