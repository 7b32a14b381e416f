package checks

import (
	"arbor/internal/ast"
	"arbor/internal/check"
)

// OuterTypeNumber limits the number of top-level types per file.
// It keeps per-file state, so every worker gets its own instance.
type OuterTypeNumber struct {
	max   int
	depth int
	count int
}

func NewOuterTypeNumber() *OuterTypeNumber {
	return &OuterTypeNumber{max: 1}
}

func (*OuterTypeNumber) Name() string                 { return "OuterTypeNumberCheck" }
func (*OuterTypeNumber) Capability() check.Capability { return check.FileScoped }

func (*OuterTypeNumber) Kinds() check.Kinds {
	return check.Kinds{Required: typeKinds}
}

func (c *OuterTypeNumber) Configure(props check.Properties) error {
	n, err := props.Int("max", c.max)
	if err != nil {
		return err
	}
	c.max = n
	return nil
}

func (c *OuterTypeNumber) BeginTree(*check.Context, ast.NodeID) error {
	c.depth = 0
	c.count = 0
	return nil
}

func (c *OuterTypeNumber) Visit(*check.Context, ast.NodeID) error {
	if c.depth == 0 {
		c.count++
	}
	c.depth++
	return nil
}

func (c *OuterTypeNumber) Leave(*check.Context, ast.NodeID) error {
	c.depth--
	return nil
}

func (c *OuterTypeNumber) FinishTree(ctx *check.Context, root ast.NodeID) error {
	if c.count > c.max {
		ctx.Log(root, "maxOuterTypes", "Outer types defined is %d (max allowed is %d)", c.count, c.max)
	}
	return nil
}
