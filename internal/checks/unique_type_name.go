package checks

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"arbor/internal/ast"
	"arbor/internal/check"
)

// UniqueTypeName reports top-level types declared with the same name in
// more than one file. Findings are raised once the whole run is visited.
type UniqueTypeName struct {
	mu    sync.Mutex
	decls map[string][]typeDecl // имя -> объявления в порядке появления
}

type typeDecl struct {
	path string
	line int
}

func NewUniqueTypeName() *UniqueTypeName {
	return &UniqueTypeName{decls: make(map[string][]typeDecl)}
}

func (*UniqueTypeName) Name() string                 { return "UniqueTypeNameCheck" }
func (*UniqueTypeName) Capability() check.Capability { return check.GlobalScoped }

func (*UniqueTypeName) Kinds() check.Kinds {
	return check.Kinds{Default: typeKinds, Acceptable: typeKinds}
}

func (c *UniqueTypeName) Visit(ctx *check.Context, node ast.NodeID) error {
	n := ctx.Node(node)
	if n.Parent != ctx.Tree.Root {
		return nil
	}
	nameID := ctx.Tree.FindChild(node, ctx.Tree.Kinds.Intern("identifier"))
	if !nameID.IsValid() {
		return nil
	}
	name := ctx.Node(nameID).Text

	c.mu.Lock()
	defer c.mu.Unlock()
	c.decls[name] = append(c.decls[name], typeDecl{path: ctx.File.Path, line: int(n.Line)})
	return nil
}

func (c *UniqueTypeName) FinishRun(ctx *check.RunContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.decls))
	for name := range c.decls {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		decls := c.decls[name]
		// файлы обрабатываются параллельно, порядок фиксируем сортировкой
		slices.SortFunc(decls, func(a, b typeDecl) int {
			return cmp.Or(strings.Compare(a.path, b.path), cmp.Compare(a.line, b.line))
		})
		for _, d := range decls[1:] {
			ctx.Log(d.path, d.line, "duplicate.type", "Type '%s' is already declared in %s", name, decls[0].path)
		}
	}
	return nil
}
