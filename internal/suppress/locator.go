// Package suppress locates tree nodes by position, renders path expressions
// for them and filters events against persisted suppression rules.
package suppress

import (
	"slices"
	"strconv"
	"strings"

	"arbor/internal/ast"
	"arbor/internal/source"
)

// Locator builds path expressions for the nodes at a position.
// It implements audit.Locator.
type Locator struct {
	TabWidth int
}

func NewLocator(tabWidth int) *Locator {
	if tabWidth <= 0 {
		tabWidth = source.DefaultTabWidth
	}
	return &Locator{TabWidth: tabWidth}
}

// Locate returns one expression per node starting at (line, column) with the
// given kind, deepest node first. kind AnyKind matches every kind. column is
// 1-based and counted with tabs expanded.
func (l *Locator) Locate(tree *ast.Tree, file *source.File, line, column int, kind ast.Kind) []string {
	nodes := l.matching(tree, file, line, column, kind)
	if len(nodes) == 0 {
		return nil
	}
	out := make([]string, 0, len(nodes))
	for _, id := range slices.Backward(nodes) {
		out = append(out, Query(tree, id))
	}
	return out
}

// matching returns the nodes at the position in document order.
func (l *Locator) matching(tree *ast.Tree, file *source.File, line, column int, kind ast.Kind) []ast.NodeID {
	if tree == nil || !tree.Root.IsValid() || line <= 0 {
		return nil
	}
	text := lineText(file, line)
	var res []ast.NodeID
	for id := range tree.Preorder(tree.Root) {
		if nodeAt(tree.Node(id), text, line, column, kind, l.TabWidth) {
			res = append(res, id)
		}
	}
	return res
}

func lineText(file *source.File, line int) string {
	if file == nil || line <= 0 {
		return ""
	}
	return file.GetLine(uint32(line))
}

// nodeAt compares the node start with a 1-based expanded column.
func nodeAt(n *ast.Node, text string, line, column int, kind ast.Kind, tabWidth int) bool {
	if int(n.Line) != line {
		return false
	}
	if kind != ast.AnyKind && n.Kind != kind {
		return false
	}
	return 1+source.ExpandedTabsLength(text, int(n.Col), tabWidth) == column
}

// Query renders the absolute path expression of id.
func Query(tree *ast.Tree, id ast.NodeID) string {
	var sb strings.Builder
	sb.WriteString(relative(tree, ast.NoNodeID, id))
	if accurate(tree, id) {
		return sb.String()
	}
	sb.WriteByte('[')
	if child := textDescendant(tree, id); child.IsValid() {
		sb.WriteByte('.')
		sb.WriteString(relative(tree, id, child))
	} else {
		sb.WriteString(strconv.Itoa(position(tree, id)))
	}
	sb.WriteByte(']')
	return sb.String()
}

// relative renders the steps from below root down to id.
// Each step carries the text of the node or of a direct child with text.
func relative(tree *ast.Tree, root, id ast.NodeID) string {
	var steps []string
	for cur := id; cur != root && cur.IsValid(); cur = tree.Node(cur).Parent {
		n := tree.Node(cur)
		step := "/" + tree.Kinds.Name(n.Kind)
		if tree.Kinds.HasText(n.Kind) {
			step += "[@text='" + encode(n.Text) + "']"
		} else if child := textChild(tree, cur); child.IsValid() && child != id {
			step += "[." + relative(tree, cur, child) + "]"
		}
		steps = append(steps, step)
	}
	slices.Reverse(steps)
	return strings.Join(steps, "")
}

// textChild returns the first direct child whose kind carries text.
func textChild(tree *ast.Tree, id ast.NodeID) ast.NodeID {
	for c := range tree.Children(id) {
		if tree.Kinds.HasText(tree.Node(c).Kind) {
			return c
		}
	}
	return ast.NoNodeID
}

// textDescendant searches direct children first, then each child subtree in order.
func textDescendant(tree *ast.Tree, id ast.NodeID) ast.NodeID {
	if c := textChild(tree, id); c.IsValid() {
		return c
	}
	for c := range tree.Children(id) {
		if d := textDescendant(tree, c); d.IsValid() {
			return d
		}
	}
	return ast.NoNodeID
}

func accurate(tree *ast.Tree, id ast.NodeID) bool {
	return !hasSameKindSibling(tree, id) ||
		tree.Kinds.HasText(tree.Node(id).Kind) ||
		textChild(tree, id).IsValid()
}

func hasSameKindSibling(tree *ast.Tree, id ast.NodeID) bool {
	n := tree.Node(id)
	if !n.Parent.IsValid() {
		return false
	}
	for c := range tree.Children(n.Parent) {
		if c != id && tree.Node(c).Kind == n.Kind {
			return true
		}
	}
	return false
}

// position is the 1-based index of id among its siblings of the same kind.
func position(tree *ast.Tree, id ast.NodeID) int {
	kind := tree.Node(id).Kind
	pos := 0
	for cur := id; cur.IsValid(); cur = tree.Node(cur).PrevSibling {
		if tree.Node(cur).Kind == kind {
			pos++
		}
	}
	return pos
}

var encoder = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;&apos;",
	`"`, "&quot;",
	"&", "&amp;",
)

var decoder = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&apos;", "'",
	"&quot;", `"`,
	"&amp;", "&",
)

func encode(s string) string { return encoder.Replace(s) }

// decode reverses encode; the doubled quote is the literal escape.
func decode(s string) string {
	return strings.ReplaceAll(decoder.Replace(s), "''", "'")
}
