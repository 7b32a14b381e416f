package parse

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"arbor/internal/ast"
	"arbor/internal/source"
)

// javaTextKinds carry a text attribute in path expressions and tree dumps.
var javaTextKinds = []string{
	"identifier",
	"type_identifier",
	"string_literal",
	"string_fragment",
	"character_literal",
	"decimal_integer_literal",
	"hex_integer_literal",
	"octal_integer_literal",
	"binary_integer_literal",
	"decimal_floating_point_literal",
	"hex_floating_point_literal",
	"line_comment",
	"block_comment",
}

var javaCommentKinds = []string{"line_comment", "block_comment"}

// Java parses Java sources with tree-sitter.
type Java struct {
	kinds   *ast.KindTable
	conv    Converter
	parsers sync.Pool
}

// JavaOption configures the Java parser.
type JavaOption func(*Java)

// WithConverter replaces the default NamedConverter.
func WithConverter(c Converter) JavaOption {
	return func(j *Java) { j.conv = c }
}

func NewJava(opts ...JavaOption) *Java {
	kinds := ast.NewKindTable()
	kinds.MarkText(javaTextKinds...)
	kinds.MarkComment(javaCommentKinds...)
	j := &Java{kinds: kinds}
	j.conv = NamedConverter{Kinds: kinds}
	j.parsers.New = func() any {
		p := sitter.NewParser()
		p.SetLanguage(java.GetLanguage())
		return p
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Java) Kinds() *ast.KindTable { return j.kinds }

func (j *Java) Parse(ctx context.Context, file *source.File) (*ast.Tree, error) {
	p, _ := j.parsers.Get().(*sitter.Parser)
	defer j.parsers.Put(p)

	st, err := p.ParseCtx(ctx, nil, file.Content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file.Path, err)
	}
	defer st.Close()

	b := ast.NewBuilder(file.ID, j.kinds, ast.Hints{Nodes: uint(len(file.Content) / 4)})
	if err := j.conv.Convert(b, file, st.RootNode()); err != nil {
		return nil, err
	}
	return b.Tree(), nil
}
