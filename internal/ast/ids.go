package ast

type (
	// NodeID is a 1-based handle into Tree.Nodes.
	NodeID uint32
	// Kind is an interned node-kind name, see KindTable.
	Kind uint16
)

const (
	NoNodeID NodeID = 0
	// AnyKind matches every kind in position queries.
	AnyKind Kind = 0
)

func (id NodeID) IsValid() bool { return id != NoNodeID }
func (k Kind) IsValid() bool    { return k != AnyKind }
