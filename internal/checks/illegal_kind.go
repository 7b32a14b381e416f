package checks

import (
	"arbor/internal/ast"
	"arbor/internal/check"
)

// IllegalKind reports every node of the configured kinds.
//
// Properties:
//
//	kinds   - node kinds to reject (default: labeled_statement)
//	message - replaces the default message; %s is the kind name
type IllegalKind struct {
	kinds   []string
	message string
}

func NewIllegalKind() *IllegalKind {
	return &IllegalKind{
		kinds:   []string{"labeled_statement"},
		message: "Using '%s' is not allowed",
	}
}

func (*IllegalKind) Name() string                 { return "IllegalKindCheck" }
func (*IllegalKind) Capability() check.Capability { return check.Stateless }

func (c *IllegalKind) Kinds() check.Kinds {
	return check.Kinds{Default: c.kinds}
}

func (c *IllegalKind) Configure(props check.Properties) error {
	if props.Has("kinds") {
		kinds, err := props.Strings("kinds")
		if err != nil {
			return err
		}
		c.kinds = kinds
	}
	msg, err := props.String("message", c.message)
	if err != nil {
		return err
	}
	c.message = msg
	return nil
}

func (c *IllegalKind) Visit(ctx *check.Context, node ast.NodeID) error {
	ctx.Log(node, "illegal.kind", c.message, ctx.KindName(node))
	return nil
}
