package check

import (
	"fmt"

	"arbor/internal/ast"
	"arbor/internal/source"
)

// Context is handed to a check for one unit of work. It is never shared
// between goroutines: the engine creates a fresh Context per dispatched call
// and collects its violations at the barrier.
type Context struct {
	File     *source.File
	Tree     *ast.Tree
	TabWidth int

	reg        *Registration
	violations []Violation
}

// NewContext binds file, tree and registration for one call.
func NewContext(file *source.File, tree *ast.Tree, tabWidth int, reg *Registration) *Context {
	return &Context{
		File:     file,
		Tree:     tree,
		TabWidth: tabWidth,
		reg:      reg,
	}
}

// Registration returns the registration of the called check.
func (c *Context) Registration() *Registration {
	return c.reg
}

// Node is a shortcut for c.Tree.Node.
func (c *Context) Node(id ast.NodeID) *ast.Node {
	return c.Tree.Node(id)
}

// KindName returns the kind name of node id.
func (c *Context) KindName(id ast.NodeID) string {
	return c.Tree.KindName(id)
}

// Log records a violation at the start of node id.
func (c *Context) Log(id ast.NodeID, key, format string, args ...any) {
	n := c.Tree.Node(id)
	if n == nil {
		c.LogAt(0, -1, key, format, args...)
		return
	}
	c.logAt(int(n.Line), int(n.Col), n.Kind, key, format, args...)
}

// LogAt records a violation at line (1-based) and character index (0-based).
// A negative charIdx records a line-only violation.
func (c *Context) LogAt(line, charIdx int, key, format string, args ...any) {
	c.logAt(line, charIdx, ast.AnyKind, key, format, args...)
}

func (c *Context) logAt(line, charIdx int, kind ast.Kind, key, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	column := 0
	if charIdx >= 0 && line > 0 && c.File != nil {
		column = 1 + source.ExpandedTabsLength(c.File.GetLine(uint32(line)), charIdx, c.TabWidth)
	}
	v := Violation{
		Line:            line,
		Column:          column,
		ColumnCharIndex: max(charIdx, 0),
		Kind:            kind,
		Key:             key,
		Message:         msg,
	}
	if c.reg != nil {
		v.ModuleName = c.reg.Name
		v.ModuleID = c.reg.ID
		v.Severity = c.reg.Severity
	}
	c.violations = append(c.violations, v)
}

// Violations returns what was logged through this context.
func (c *Context) Violations() []Violation {
	return c.violations
}

// RunViolation is a violation raised after the last file, attributed to a path.
type RunViolation struct {
	Path string
	Violation
}

// RunContext is passed to RunFinisher.FinishRun on the coordinating goroutine.
type RunContext struct {
	reg        *Registration
	violations []RunViolation
}

func NewRunContext(reg *Registration) *RunContext {
	return &RunContext{reg: reg}
}

// Log records a violation for path at line; line 0 attaches it to the file.
func (c *RunContext) Log(path string, line int, key, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	v := Violation{Line: line, Key: key, Message: msg}
	if c.reg != nil {
		v.ModuleName = c.reg.Name
		v.ModuleID = c.reg.ID
		v.Severity = c.reg.Severity
	}
	c.violations = append(c.violations, RunViolation{Path: path, Violation: v})
}

func (c *RunContext) Violations() []RunViolation {
	return c.violations
}
