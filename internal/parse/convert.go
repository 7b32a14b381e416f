package parse

import (
	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/text/unicode/norm"

	"arbor/internal/ast"
	"arbor/internal/source"
)

// Converter maps a tree-sitter tree onto an arena tree.
type Converter interface {
	Convert(b *ast.Builder, file *source.File, root *sitter.Node) error
}

// NamedConverter keeps named nodes only; anonymous tokens such as
// punctuation are dropped. Text is recorded for kinds marked in the table.
type NamedConverter struct {
	Kinds *ast.KindTable
}

type frame struct {
	node   *sitter.Node
	parent ast.NodeID
}

func (c NamedConverter) Convert(b *ast.Builder, file *source.File, root *sitter.Node) error {
	if root.HasError() {
		if bad := firstError(root); bad != nil {
			return syntaxError(file, bad)
		}
	}
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := top.node
		line, col := position(file, n)
		kind := c.Kinds.Intern(n.Type())
		text := ""
		if c.Kinds.HasText(kind) {
			text = norm.NFC.String(n.Content(file.Content))
		}
		id := b.Add(top.parent, kind, line, col, text)

		// дети в обратном порядке, чтобы снимать со стека слева направо
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: n.NamedChild(i), parent: id})
		}
	}
	return nil
}

// firstError finds the first ERROR or MISSING node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := range int(n.ChildCount()) {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			if bad := firstError(child); bad != nil {
				return bad
			}
		}
	}
	return nil
}

func syntaxError(file *source.File, n *sitter.Node) error {
	line, col := position(file, n)
	e := &SyntaxError{Path: file.Path, Line: int(line), Column: int(col) + 1}
	if n.IsMissing() {
		e.Missing = n.Type()
	}
	return e
}

// position returns the 1-based line and the 0-based character column.
func position(file *source.File, n *sitter.Node) (line, col uint32) {
	pos := file.Resolve(n.StartByte())
	return pos.Line, pos.Col - 1
}
