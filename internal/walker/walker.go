// Package walker is the traversal engine: it walks a syntax tree in
// document order and dispatches every node to the checks registered for the
// node's kind through a dispatch.Executor.
//
// Each node is a barrier: the walker does not advance before every check
// assigned to the node has finished. Begin and finish hooks run on the
// walking goroutine, in registration order, outside of the executor.
package walker

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"arbor/internal/ast"
	"arbor/internal/check"
	"arbor/internal/dispatch"
	"arbor/internal/logging"
	"arbor/internal/source"
)

// ErrIllegalKind is returned by Register for configured kinds outside the
// acceptable set of a check.
var ErrIllegalKind = errors.New("illegal kind")

// pass is one traversal over the tree. Ordinary checks never see comment
// nodes; comment-aware checks get a second pass that includes them.
type pass struct {
	comments bool
	regs     []*check.Registration
	byKind   map[ast.Kind][]*check.Registration
	leave    map[ast.Kind][]*check.Registration // только реализующие LeaveHook
}

func newPass(comments bool) pass {
	return pass{
		comments: comments,
		byKind:   make(map[ast.Kind][]*check.Registration),
		leave:    make(map[ast.Kind][]*check.Registration),
	}
}

func (p *pass) empty() bool { return len(p.regs) == 0 }

// Walker walks trees with a fixed set of registered checks.
// A Walker processes one file at a time.
type Walker struct {
	kinds    *ast.KindTable
	exec     dispatch.Executor
	log      *zap.Logger
	tabWidth int

	regs     []*check.Registration
	ordinary pass
	comment  pass
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Walker) { w.log = l }
}

// WithTabWidth sets the tab width used for violation columns.
func WithTabWidth(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.tabWidth = n
		}
	}
}

// New creates a walker for trees whose kinds come from kinds.
// A nil executor means serial dispatch.
func New(kinds *ast.KindTable, exec dispatch.Executor, opts ...Option) *Walker {
	if exec == nil {
		exec = dispatch.NewSerial()
	}
	w := &Walker{
		kinds:    kinds,
		exec:     exec,
		tabWidth: source.DefaultTabWidth,
		ordinary: newPass(false),
		comment:  newPass(true),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = logging.Or(w.log).Named(logging.ComponentWalker)
	return w
}

// Register adds a check. Registration order is the order of begin, visit
// (within a node) and finish calls.
func (w *Walker) Register(reg *check.Registration) error {
	if reg == nil || reg.Check == nil {
		return errors.New("walker: nil registration")
	}
	if !reg.Capability.IsValid() {
		return fmt.Errorf("walker: %s has invalid capability", reg.Name)
	}

	kinds, err := resolveKinds(reg)
	if err != nil {
		return err
	}

	p := &w.ordinary
	if reg.Comments {
		p = &w.comment
	}
	_, leaves := reg.Check.(check.LeaveHook)
	for _, name := range kinds {
		k := w.kinds.Intern(name)
		p.byKind[k] = append(p.byKind[k], reg)
		if leaves {
			p.leave[k] = append(p.leave[k], reg)
		}
	}
	p.regs = append(p.regs, reg)
	w.regs = append(w.regs, reg)
	w.log.Debug("check registered",
		zap.String("check", reg.Name),
		zap.Stringer("capability", reg.Capability),
		zap.Strings("kinds", kinds),
		zap.Bool("comments", reg.Comments))
	return nil
}

// resolveKinds returns the kinds a registration listens to: configured
// tokens (validated against acceptable kinds) or defaults, plus required
// kinds. The result has no duplicates, so a check is called once per node.
func resolveKinds(reg *check.Registration) ([]string, error) {
	decl := reg.Check.Kinds()
	acceptable := decl.Acceptable
	if acceptable == nil {
		acceptable = decl.Default
	}

	selected := decl.Default
	if reg.Tokens != nil {
		for _, tok := range reg.Tokens {
			if !slices.Contains(acceptable, tok) {
				return nil, fmt.Errorf("%w %q for check %s", ErrIllegalKind, tok, reg.Name)
			}
		}
		selected = reg.Tokens
	}

	out := make([]string, 0, len(selected)+len(decl.Required))
	for _, name := range slices.Concat(selected, decl.Required) {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Registrations returns registered checks in registration order.
func (w *Walker) Registrations() []*check.Registration {
	return w.regs
}

// Concurrent reports whether node tasks run on a pool.
func (w *Walker) Concurrent() bool {
	return w.exec.Concurrent()
}

// Init allocates executor resources.
func (w *Walker) Init(ctx context.Context) error {
	return w.exec.Init(ctx)
}

// Destroy releases executor resources. It is safe to call after a failed walk.
func (w *Walker) Destroy() {
	w.exec.Destroy()
}
