package ast

import (
	"iter"

	"arbor/internal/source"
)

// Tree is the immutable syntax tree of one file.
// Every node is reachable from Root; a tree with Root == NoNodeID is empty.
type Tree struct {
	File  source.FileID
	Nodes *Arena[Node]
	Kinds *KindTable
	Root  NodeID
}

// Node returns the node for id, or nil for NoNodeID.
func (t *Tree) Node(id NodeID) *Node {
	return t.Nodes.Get(uint32(id))
}

// KindName returns the name of the node's kind.
func (t *Tree) KindName(id NodeID) string {
	n := t.Node(id)
	if n == nil {
		return ""
	}
	return t.Kinds.Name(n.Kind)
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return int(t.Nodes.Len())
}

// Children iterates direct children of id in order.
func (t *Tree) Children(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		n := t.Node(id)
		if n == nil {
			return
		}
		for c := n.FirstChild; c.IsValid(); c = t.Node(c).NextSibling {
			if !yield(c) {
				return
			}
		}
	}
}

// Preorder iterates the subtree rooted at id in document order, without recursion.
func (t *Tree) Preorder(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		if t.Node(id) == nil {
			return
		}
		cur := id
		for {
			if !yield(cur) {
				return
			}
			n := t.Node(cur)
			if n.FirstChild.IsValid() {
				cur = n.FirstChild
				continue
			}
			// поднимаемся, пока не найдём следующего соседа
			for cur != id && !t.Node(cur).NextSibling.IsValid() {
				cur = t.Node(cur).Parent
			}
			if cur == id {
				return
			}
			cur = t.Node(cur).NextSibling
		}
	}
}

// FindChild returns the first direct child of id with kind k.
func (t *Tree) FindChild(id NodeID, k Kind) NodeID {
	for c := range t.Children(id) {
		if t.Node(c).Kind == k {
			return c
		}
	}
	return NoNodeID
}

// Depth returns the number of ancestors of id.
func (t *Tree) Depth(id NodeID) int {
	d := 0
	for n := t.Node(id); n != nil && n.Parent.IsValid(); n = t.Node(n.Parent) {
		d++
	}
	return d
}
