package audit

import (
	"sync"

	"arbor/internal/ast"
	"arbor/internal/check"
	"arbor/internal/source"
)

// Locator computes path expressions for a position in a tree.
// Implemented by suppress.Locator.
type Locator interface {
	Locate(tree *ast.Tree, file *source.File, line, column int, kind ast.Kind) []string
}

// Event wraps one violation with the file and tree it was found in.
// Events are immutable; the path expressions are computed on first use.
type Event struct {
	fileName  string
	file      *source.File
	tree      *ast.Tree
	violation check.Violation

	locator Locator
	once    sync.Once
	paths   []string
}

// NewEvent creates an event without a locator; Paths returns nil for it.
// file and tree may be nil for violations raised after the last file.
func NewEvent(fileName string, file *source.File, tree *ast.Tree, v check.Violation) *Event {
	return &Event{fileName: fileName, file: file, tree: tree, violation: v}
}

func (e *Event) FileName() string           { return e.fileName }
func (e *Event) File() *source.File         { return e.file }
func (e *Event) Tree() *ast.Tree            { return e.tree }
func (e *Event) Violation() check.Violation { return e.violation }
func (e *Event) Line() int                  { return e.violation.Line }
func (e *Event) Column() int                { return e.violation.Column }
func (e *Event) Message() string            { return e.violation.Message }
func (e *Event) Severity() check.Severity   { return e.violation.Severity }
func (e *Event) ModuleID() string           { return e.violation.ModuleID }
func (e *Event) ModuleName() string         { return e.violation.ModuleName }
func (e *Event) Kind() ast.Kind             { return e.violation.Kind }

// Identifier is the module id if set, else the short module name.
func (e *Event) Identifier() string {
	if e.violation.ModuleID != "" {
		return e.violation.ModuleID
	}
	return check.ShortName(e.violation.ModuleName)
}

// Paths returns path expressions of the nodes at the event position, most
// specific first. Events without a tree or a locator have no paths.
func (e *Event) Paths() []string {
	e.once.Do(func() {
		if e.locator == nil || e.tree == nil || e.violation.Column <= 0 {
			return
		}
		e.paths = e.locator.Locate(e.tree, e.file, e.violation.Line, e.violation.Column, e.violation.Kind)
	})
	return e.paths
}
