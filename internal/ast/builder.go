package ast

import "arbor/internal/source"

type Hints struct{ Nodes uint }

// Builder appends nodes to a Tree and maintains parent/sibling links.
// Children must be added in document order.
type Builder struct {
	tree *Tree
}

func NewBuilder(file source.FileID, kinds *KindTable, hints Hints) *Builder {
	if hints.Nodes == 0 {
		hints.Nodes = 1 << 8
	}
	if kinds == nil {
		kinds = NewKindTable()
	}
	return &Builder{
		tree: &Tree{
			File:  file,
			Nodes: NewArena[Node](hints.Nodes),
			Kinds: kinds,
		},
	}
}

// Add создаёт узел под parent. Первый узел без родителя становится корнем.
func (b *Builder) Add(parent NodeID, kind Kind, line, col uint32, text string) NodeID {
	id := NodeID(b.tree.Nodes.Allocate(Node{
		Kind:   kind,
		Line:   line,
		Col:    col,
		Text:   text,
		Parent: parent,
	}))
	if !parent.IsValid() {
		if !b.tree.Root.IsValid() {
			b.tree.Root = id
		}
		return id
	}
	p := b.tree.Node(parent)
	if p.LastChild.IsValid() {
		b.tree.Node(p.LastChild).NextSibling = id
		b.tree.Node(id).PrevSibling = p.LastChild
	} else {
		p.FirstChild = id
	}
	p.LastChild = id
	p.ChildCount++
	return id
}

// AddNamed is Add with the kind given by name.
func (b *Builder) AddNamed(parent NodeID, kind string, line, col uint32, text string) NodeID {
	return b.Add(parent, b.tree.Kinds.Intern(kind), line, col, text)
}

// Tree returns the built tree. The builder must not be used afterwards.
func (b *Builder) Tree() *Tree {
	return b.tree
}
