package suppress

import (
	"errors"
	"fmt"
	"strconv"

	"arbor/internal/ast"
)

// ErrInvalidQuery reports a path expression that cannot be parsed.
var ErrInvalidQuery = errors.New("invalid query")

// Expr is a compiled path expression over the kind names of a tree.
//
// Supported grammar:
//
//	path      = step { step }
//	step      = ("/" | "//") (name | "*") { predicate }
//	predicate = "[" ( "@text" "=" literal | "." path | number ) "]"
//
// Literals use single quotes; a doubled quote and the entities &lt; &gt;
// &apos; &quot; &amp; are decoded.
type Expr struct {
	src   string
	steps []step
}

type step struct {
	deep  bool   // "//"
	name  string // "*" matches any kind
	preds []pred
}

type predKind uint8

const (
	predText predKind = iota
	predPath
	predIndex
)

type pred struct {
	kind  predKind
	text  string
	path  []step
	index int
}

func (e *Expr) String() string { return e.src }

// Compile parses src.
func Compile(src string) (*Expr, error) {
	p := &queryParser{src: src}
	steps, err := p.path()
	if err != nil {
		return nil, err
	}
	if p.pos != len(src) {
		return nil, p.errorf("unexpected %q", src[p.pos:])
	}
	return &Expr{src: src, steps: steps}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

type queryParser struct {
	src string
	pos int
}

func (p *queryParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d in %q: %s", ErrInvalidQuery, p.pos, p.src, fmt.Sprintf(format, args...))
}

func (p *queryParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *queryParser) path() ([]step, error) {
	var steps []step
	for p.peek() == '/' {
		s, err := p.step()
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	if len(steps) == 0 {
		return nil, p.errorf("expected '/'")
	}
	return steps, nil
}

func (p *queryParser) step() (step, error) {
	var s step
	p.pos++
	if p.peek() == '/' {
		s.deep = true
		p.pos++
	}
	if p.peek() == '*' {
		s.name = "*"
		p.pos++
	} else {
		start := p.pos
		for p.pos < len(p.src) && isNameByte(p.src[p.pos]) {
			p.pos++
		}
		if start == p.pos {
			return s, p.errorf("expected node kind")
		}
		s.name = p.src[start:p.pos]
	}
	for p.peek() == '[' {
		pr, err := p.predicate()
		if err != nil {
			return s, err
		}
		s.preds = append(s.preds, pr)
	}
	return s, nil
}

func isNameByte(c byte) bool {
	return c == '_' || c == '-' || c == '.' ||
		'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func (p *queryParser) predicate() (pred, error) {
	var pr pred
	p.pos++ // '['
	switch c := p.peek(); {
	case c == '@':
		const attr = "@text="
		if len(p.src)-p.pos < len(attr) || p.src[p.pos:p.pos+len(attr)] != attr {
			return pr, p.errorf("only @text is supported")
		}
		p.pos += len(attr)
		lit, err := p.literal()
		if err != nil {
			return pr, err
		}
		pr = pred{kind: predText, text: lit}
	case c == '.':
		p.pos++
		steps, err := p.path()
		if err != nil {
			return pr, err
		}
		pr = pred{kind: predPath, path: steps}
	case '0' <= c && c <= '9':
		start := p.pos
		for '0' <= p.peek() && p.peek() <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil || n == 0 {
			return pr, p.errorf("bad position %q", p.src[start:p.pos])
		}
		pr = pred{kind: predIndex, index: n}
	default:
		return pr, p.errorf("unsupported predicate")
	}
	if p.peek() != ']' {
		return pr, p.errorf("expected ']'")
	}
	p.pos++
	return pr, nil
}

// literal reads a single-quoted string; '' inside stands for one quote.
func (p *queryParser) literal() (string, error) {
	if p.peek() != '\'' {
		return "", p.errorf("expected quote")
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.src) {
		if p.src[p.pos] == '\'' {
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\'' {
				p.pos += 2
				continue
			}
			raw := p.src[start:p.pos]
			p.pos++
			return decode(raw), nil
		}
		p.pos++
	}
	return "", p.errorf("unterminated literal")
}

// Eval returns the nodes of tree selected by e without duplicates.
// The first step is applied to a virtual parent of the root.
func (e *Expr) Eval(tree *ast.Tree) []ast.NodeID {
	if tree == nil || !tree.Root.IsValid() {
		return nil
	}
	return evalPath(tree, []ast.NodeID{ast.NoNodeID}, e.steps)
}

func evalPath(tree *ast.Tree, ctx []ast.NodeID, steps []step) []ast.NodeID {
	for _, s := range steps {
		var next []ast.NodeID
		seen := make(map[ast.NodeID]bool)
		for _, c := range ctx {
			for _, id := range evalStep(tree, c, s) {
				if !seen[id] {
					seen[id] = true
					next = append(next, id)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		ctx = next
	}
	return ctx
}

// evalStep applies one step to a single context node.
func evalStep(tree *ast.Tree, ctx ast.NodeID, s step) []ast.NodeID {
	var cands []ast.NodeID
	add := func(id ast.NodeID) {
		if s.name == "*" || tree.KindName(id) == s.name {
			cands = append(cands, id)
		}
	}
	switch {
	case !ctx.IsValid() && s.deep:
		for id := range tree.Preorder(tree.Root) {
			add(id)
		}
	case !ctx.IsValid():
		add(tree.Root)
	case s.deep:
		for c := range tree.Children(ctx) {
			for id := range tree.Preorder(c) {
				add(id)
			}
		}
	default:
		for c := range tree.Children(ctx) {
			add(c)
		}
	}
	for _, pr := range s.preds {
		cands = applyPred(tree, cands, pr)
		if len(cands) == 0 {
			return nil
		}
	}
	return cands
}

func applyPred(tree *ast.Tree, cands []ast.NodeID, pr pred) []ast.NodeID {
	if pr.kind == predIndex {
		if pr.index > len(cands) {
			return nil
		}
		return cands[pr.index-1 : pr.index]
	}
	out := cands[:0:0]
	for _, id := range cands {
		n := tree.Node(id)
		switch pr.kind {
		case predText:
			if tree.Kinds.HasText(n.Kind) && n.Text == pr.text {
				out = append(out, id)
			}
		case predPath:
			if len(evalPath(tree, []ast.NodeID{id}, pr.path)) > 0 {
				out = append(out, id)
			}
		}
	}
	return out
}
