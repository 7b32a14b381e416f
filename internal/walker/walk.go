package walker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"arbor/internal/ast"
	"arbor/internal/check"
	"arbor/internal/dispatch"
	"arbor/internal/source"
	"arbor/internal/trace"
)

// fileWalk holds the state of one Walk call.
type fileWalk struct {
	w          *Walker
	ctx        context.Context
	file       *source.File
	tree       *ast.Tree
	violations []check.Violation
	nodes      int
}

// Walk runs every registered check over tree and returns the violations
// sorted by position. A module failure stops the walk at once: no further
// node is visited and the collected violations are discarded.
func (w *Walker) Walk(ctx context.Context, file *source.File, tree *ast.Tree) ([]check.Violation, error) {
	if tree == nil || file == nil {
		return nil, errors.New("walker: nil file or tree")
	}
	if tree.Kinds != w.kinds {
		return nil, fmt.Errorf("walker: tree of %s uses a foreign kind table", file.Path)
	}

	fw := &fileWalk{w: w, ctx: ctx, file: file, tree: tree}
	for _, p := range []*pass{&w.ordinary, &w.comment} {
		if p.empty() || !tree.Root.IsValid() {
			continue
		}
		if err := fw.run(p); err != nil {
			w.log.Debug("walk aborted", zap.String("file", file.Path), zap.Error(err))
			return nil, err
		}
	}

	check.SortViolations(fw.violations)
	w.log.Debug("walk finished",
		zap.String("file", file.Path),
		zap.Int("nodes", fw.nodes),
		zap.Int("violations", len(fw.violations)))
	return fw.violations, nil
}

func (fw *fileWalk) run(p *pass) error {
	if err := fw.begin(p); err != nil {
		return err
	}
	if err := fw.traverse(p); err != nil {
		return err
	}
	// все задачи по узлам уже завершены: traverse ждёт барьер на каждом узле
	return fw.finish(p)
}

// begin вызывает BeginTree в порядке регистрации на текущей горутине.
func (fw *fileWalk) begin(p *pass) error {
	for _, reg := range p.regs {
		hook, ok := reg.Check.(check.BeginTreeHook)
		if !ok {
			continue
		}
		if err := fw.direct(reg, "begin", func(c *check.Context) error {
			return hook.BeginTree(c, fw.tree.Root)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (fw *fileWalk) finish(p *pass) error {
	for _, reg := range p.regs {
		hook, ok := reg.Check.(check.FinishTreeHook)
		if !ok {
			continue
		}
		if err := fw.direct(reg, "finish", func(c *check.Context) error {
			return hook.FinishTree(c, fw.tree.Root)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (fw *fileWalk) direct(reg *check.Registration, phase string, call func(*check.Context) error) error {
	c := check.NewContext(fw.file, fw.tree, fw.w.tabWidth, reg)
	if err := check.Call(func() error { return call(c) }); err != nil {
		return &check.ModuleError{Module: reg.Name, Phase: phase, Err: err}
	}
	fw.violations = append(fw.violations, c.Violations()...)
	return nil
}

// traverse обходит дерево итеративно: pre-order для Visit, post-order для Leave.
func (fw *fileWalk) traverse(p *pass) error {
	root := fw.tree.Root
	cur := root
	for cur.IsValid() {
		if err := fw.dispatch(p, cur, "visit"); err != nil {
			return err
		}
		if child := fw.firstChild(p, cur); child.IsValid() {
			cur = child
			continue
		}
		for cur.IsValid() {
			if err := fw.dispatch(p, cur, "leave"); err != nil {
				return err
			}
			if cur == root {
				cur = ast.NoNodeID
				break
			}
			if next := fw.nextSibling(p, cur); next.IsValid() {
				cur = next
				break
			}
			cur = fw.tree.Node(cur).Parent
		}
	}
	return nil
}

func (fw *fileWalk) skip(p *pass, id ast.NodeID) bool {
	return !p.comments && fw.tree.Kinds.IsComment(fw.tree.Node(id).Kind)
}

func (fw *fileWalk) firstChild(p *pass, id ast.NodeID) ast.NodeID {
	c := fw.tree.Node(id).FirstChild
	for c.IsValid() && fw.skip(p, c) {
		c = fw.tree.Node(c).NextSibling
	}
	return c
}

func (fw *fileWalk) nextSibling(p *pass, id ast.NodeID) ast.NodeID {
	s := fw.tree.Node(id).NextSibling
	for s.IsValid() && fw.skip(p, s) {
		s = fw.tree.Node(s).NextSibling
	}
	return s
}

// dispatch hands one node to every interested check and waits for all of them.
func (fw *fileWalk) dispatch(p *pass, id ast.NodeID, phase string) error {
	if err := fw.ctx.Err(); err != nil {
		return err
	}
	node := fw.tree.Node(id)
	regs := p.byKind[node.Kind]
	if phase == "leave" {
		regs = p.leave[node.Kind]
	}
	if len(regs) == 0 {
		return nil
	}
	if phase == "visit" {
		fw.nodes++
	}

	_, span := trace.Start(fw.ctx, trace.ScopeNode, fw.tree.Kinds.Name(node.Kind))
	if span != nil {
		names := make([]string, len(regs))
		for i, reg := range regs {
			names[i] = reg.Identifier()
		}
		span.Set("phase", phase).Set("line", node.Line).Set("checks", strings.Join(names, ","))
	}

	// у каждой задачи свой Context и свой слот результатов
	slots := make([][]check.Violation, len(regs))
	units := make([]dispatch.Unit, len(regs))
	for i, reg := range regs {
		units[i] = fw.unit(reg, id, phase, &slots[i])
	}

	if err := fw.w.exec.Execute(fw.ctx, units); err != nil {
		span.End(err.Error())
		return err
	}
	span.End("")

	// слияние в порядке регистрации, независимо от порядка завершения задач
	for _, vs := range slots {
		fw.violations = append(fw.violations, vs...)
	}
	return nil
}

func (fw *fileWalk) unit(reg *check.Registration, id ast.NodeID, phase string, slot *[]check.Violation) dispatch.Unit {
	return func() error {
		c := check.NewContext(fw.file, fw.tree, fw.w.tabWidth, reg)
		err := check.Call(func() error {
			if phase == "leave" {
				return reg.Check.(check.LeaveHook).Leave(c, id)
			}
			return reg.Check.Visit(c, id)
		})
		if err != nil {
			node := fw.tree.Node(id)
			return &check.ModuleError{
				Module: reg.Name,
				Phase:  phase,
				Kind:   fw.tree.Kinds.Name(node.Kind),
				Line:   int(node.Line),
				Column: int(node.Col) + 1,
				Err:    err,
			}
		}
		*slot = c.Violations()
		return nil
	}
}
