package ast

// Node is one syntax node. Links to relatives are arena handles.
type Node struct {
	Kind Kind
	Line uint32 // 1-based
	Col  uint32 // 0-based, в символах, без раскрытия табуляции
	Text string // пусто, если у вида нет атрибута text

	Parent      NodeID
	FirstChild  NodeID
	LastChild   NodeID
	PrevSibling NodeID
	NextSibling NodeID
	ChildCount  uint32
}

// HasChildren сообщает, есть ли у узла потомки.
func (n *Node) HasChildren() bool {
	return n.FirstChild.IsValid()
}
