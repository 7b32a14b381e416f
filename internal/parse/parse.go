// Package parse is the front end: it turns a source file into an arena tree.
package parse

import (
	"context"
	"errors"
	"fmt"

	"arbor/internal/ast"
	"arbor/internal/source"
)

// ErrSyntax is wrapped by every *SyntaxError.
var ErrSyntax = errors.New("syntax error")

// SyntaxError reports the first malformed region of a file.
type SyntaxError struct {
	Path    string
	Line    int // 1-based
	Column  int // 1-based, в символах
	Missing string
}

func (e *SyntaxError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("%s:%d:%d: missing %s", e.Path, e.Line, e.Column, e.Missing)
	}
	return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, ErrSyntax)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Parser produces trees whose kinds are interned in Kinds. Implementations
// are safe for concurrent use unless they implement SingleThreaded.
type Parser interface {
	Parse(ctx context.Context, file *source.File) (*ast.Tree, error)
	Kinds() *ast.KindTable
}

// SingleThreaded marks a Parser that must be called from one goroutine at a
// time. Such a parser cannot serve more than one checker thread.
type SingleThreaded interface {
	SingleThreaded()
}
