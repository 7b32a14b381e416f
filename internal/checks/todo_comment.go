package checks

import (
	"fmt"
	"regexp"

	"arbor/internal/ast"
	"arbor/internal/check"
)

// TodoComment reports comments matching a pattern. It needs comment nodes.
type TodoComment struct {
	format *regexp.Regexp
}

func NewTodoComment() *TodoComment {
	return &TodoComment{format: regexp.MustCompile(`TODO:`)}
}

func (*TodoComment) Name() string                 { return "TodoCommentCheck" }
func (*TodoComment) Capability() check.Capability { return check.Stateless }
func (*TodoComment) CommentNodesRequired() bool   { return true }

func (*TodoComment) Kinds() check.Kinds {
	kinds := []string{"line_comment", "block_comment"}
	return check.Kinds{Default: kinds, Acceptable: kinds}
}

func (c *TodoComment) Configure(props check.Properties) error {
	pattern, err := props.String("format", c.format.String())
	if err != nil {
		return err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("property %q: %w", "format", err)
	}
	c.format = re
	return nil
}

func (c *TodoComment) Visit(ctx *check.Context, node ast.NodeID) error {
	if c.format.MatchString(ctx.Node(node).Text) {
		ctx.Log(node, "todo.match", "Comment matches to-do format '%s'", c.format.String())
	}
	return nil
}
