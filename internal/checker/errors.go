package checker

import (
	"fmt"

	"arbor/internal/trace"
)

// FileError wraps a failure while processing one file: a module failure,
// a parse error or an I/O error.
type FileError struct {
	Path string
	Err  error
	// Trace holds the file's events kept by the trace ring, if any.
	Trace []trace.Event
}

func (e *FileError) Error() string {
	return fmt.Sprintf("Exception was thrown while processing %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
