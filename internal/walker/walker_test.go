package walker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"arbor/internal/ast"
	"arbor/internal/check"
	"arbor/internal/dispatch"
	"arbor/internal/source"
)

// recorder пишет в общий журнал каждое событие жизненного цикла.
type recorder struct {
	name     string
	cap      check.Capability
	kinds    check.Kinds
	comments bool
	journal  *journal
	failAt   string // текст узла, на котором Visit возвращает ошибку
	panicAt  string
	guard    atomic.Int32
	overlap  atomic.Int32
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.entries)
}

func (r *recorder) Name() string                 { return r.name }
func (r *recorder) Capability() check.Capability { return r.cap }
func (r *recorder) Kinds() check.Kinds           { return r.kinds }
func (r *recorder) CommentNodesRequired() bool   { return r.comments }

func (r *recorder) Visit(ctx *check.Context, id ast.NodeID) error {
	if !r.guard.CompareAndSwap(0, 1) {
		r.overlap.Add(1)
	}
	defer r.guard.Store(0)
	time.Sleep(10 * time.Microsecond)

	n := ctx.Node(id)
	if r.failAt != "" && n.Text == r.failAt {
		return errors.New("cannot handle " + n.Text)
	}
	if r.panicAt != "" && n.Text == r.panicAt {
		panic("exploded at " + n.Text)
	}
	if r.journal != nil {
		r.journal.add(r.name + ":visit:" + label(ctx, id))
	}
	ctx.Log(id, "seen", "%s saw %s", r.name, label(ctx, id))
	return nil
}

func label(ctx *check.Context, id ast.NodeID) string {
	n := ctx.Node(id)
	if n.Text != "" {
		return ctx.KindName(id) + "=" + n.Text
	}
	return ctx.KindName(id)
}

// hooked добавляет Begin/Leave/Finish.
type hooked struct {
	recorder
}

func (h *hooked) BeginTree(ctx *check.Context, root ast.NodeID) error {
	h.journal.add(h.name + ":begin")
	return nil
}

func (h *hooked) Leave(ctx *check.Context, id ast.NodeID) error {
	h.journal.add(h.name + ":leave:" + label(ctx, id))
	return nil
}

func (h *hooked) FinishTree(ctx *check.Context, root ast.NodeID) error {
	h.journal.add(h.name + ":finish")
	ctx.LogAt(1, -1, "done", "%s finished", h.name)
	return nil
}

func newFile(t *testing.T, content string) *source.File {
	t.Helper()
	fs := source.NewFileSet()
	return fs.Get(fs.AddVirtual("Sample.java", []byte(content)))
}

// sampleTree:
//
//	program
//	  class(A)
//	    method(m1)
//	    line_comment
//	    method(m2)
//	  class(B)
func sampleTree(kinds *ast.KindTable) *ast.Tree {
	b := ast.NewBuilder(0, kinds, ast.Hints{})
	root := b.AddNamed(ast.NoNodeID, "program", 1, 0, "")
	a := b.AddNamed(root, "class", 1, 0, "A")
	b.AddNamed(a, "method", 2, 2, "m1")
	b.AddNamed(a, "line_comment", 3, 2, "// note")
	b.AddNamed(a, "method", 4, 2, "m2")
	b.AddNamed(root, "class", 6, 0, "B")
	return b.Tree()
}

func newKinds() *ast.KindTable {
	kinds := ast.NewKindTable()
	kinds.MarkComment("line_comment")
	return kinds
}

func register(t *testing.T, w *Walker, c check.Check, spec check.Spec, order int) {
	t.Helper()
	if err := w.Register(check.NewRegistration(c, spec, order)); err != nil {
		t.Fatalf("Register(%s): %v", c.Name(), err)
	}
}

func TestWalkOrderAndHooks(t *testing.T) {
	kinds := newKinds()
	j := &journal{}
	w := New(kinds, dispatch.NewSerial())
	register(t, w, &hooked{recorder{name: "Classes", cap: check.FileScoped, journal: j,
		kinds: check.Kinds{Default: []string{"class", "method"}}}}, check.Spec{}, 0)
	register(t, w, &hooked{recorder{name: "Methods", cap: check.Stateless, journal: j,
		kinds: check.Kinds{Default: []string{"method"}}}}, check.Spec{}, 1)

	if err := w.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Destroy()

	file := newFile(t, "class A {\n  void m1() {}\n  // note\n  void m2() {}\n}\nclass B {}\n")
	vs, err := w.Walk(context.Background(), file, sampleTree(kinds))
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	want := []string{
		"Classes:begin",
		"Methods:begin",
		"Classes:visit:class=A",
		"Classes:visit:method=m1",
		"Methods:visit:method=m1",
		"Classes:leave:method=m1",
		"Methods:leave:method=m1",
		"Classes:visit:method=m2",
		"Methods:visit:method=m2",
		"Classes:leave:method=m2",
		"Methods:leave:method=m2",
		"Classes:leave:class=A",
		"Classes:visit:class=B",
		"Classes:leave:class=B",
		"Classes:finish",
		"Methods:finish",
	}
	if got := j.list(); !slices.Equal(got, want) {
		t.Errorf("journal:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	// 6 visits + 2 finish violations, sorted by position
	if len(vs) != 8 {
		t.Fatalf("Expected 8 violations, got %d", len(vs))
	}
	if vs[0].Line != 1 || vs[0].Column != 0 || vs[0].Message != "Classes finished" {
		t.Errorf("Expected line-only finish violation first, got %+v", vs[0])
	}
	if vs[2].Line != 1 || vs[2].Column != 1 || vs[2].ModuleName != "Classes" {
		t.Errorf("Unexpected violation %+v", vs[2])
	}
	for i := 1; i < len(vs); i++ {
		if vs[i].Line < vs[i-1].Line {
			t.Errorf("Violations not sorted at %d", i)
		}
	}
}

func TestCommentAwarePass(t *testing.T) {
	kinds := newKinds()
	j := &journal{}
	w := New(kinds, nil)
	register(t, w, &recorder{name: "Plain", cap: check.Stateless, journal: j,
		kinds: check.Kinds{Default: []string{"line_comment", "method"}}}, check.Spec{}, 0)
	register(t, w, &recorder{name: "Javadoc", cap: check.Stateless, journal: j, comments: true,
		kinds: check.Kinds{Default: []string{"line_comment"}}}, check.Spec{}, 1)

	if _, err := w.Walk(context.Background(), newFile(t, "x"), sampleTree(kinds)); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Plain:visit:method=m1",
		"Plain:visit:method=m2",
		"Javadoc:visit:line_comment=// note",
	}
	if got := j.list(); !slices.Equal(got, want) {
		t.Errorf("journal = %v, want %v", got, want)
	}
}

func TestRegisterTokens(t *testing.T) {
	kinds := newKinds()
	c := &recorder{name: "Tokens", cap: check.Stateless, kinds: check.Kinds{
		Default:    []string{"class"},
		Acceptable: []string{"class", "method"},
		Required:   []string{"program"},
	}}

	w := New(kinds, nil)
	err := w.Register(check.NewRegistration(c, check.Spec{Tokens: []string{"method", "field"}}, 0))
	if !errors.Is(err, ErrIllegalKind) {
		t.Fatalf("Expected ErrIllegalKind, got %v", err)
	}
	if len(w.Registrations()) != 0 {
		t.Error("Rejected check must not be registered")
	}

	j := &journal{}
	c.journal = j
	register(t, w, c, check.Spec{Tokens: []string{"method"}}, 0)
	if _, err := w.Walk(context.Background(), newFile(t, "x"), sampleTree(kinds)); err != nil {
		t.Fatal(err)
	}
	want := []string{"Tokens:visit:program", "Tokens:visit:method=m1", "Tokens:visit:method=m2"}
	if got := j.list(); !slices.Equal(got, want) {
		t.Errorf("journal = %v, want %v", got, want)
	}
}

func TestModuleFailureAbortsWalk(t *testing.T) {
	for _, threads := range []int{1, 4} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			kinds := newKinds()
			j := &journal{}
			w := New(kinds, dispatch.New(threads))
			defer w.Destroy()
			register(t, w, &recorder{name: "Bad", cap: check.Stateless, failAt: "m1",
				kinds: check.Kinds{Default: []string{"method"}}}, check.Spec{}, 0)
			register(t, w, &hooked{recorder{name: "Watcher", cap: check.FileScoped, journal: j,
				kinds: check.Kinds{Default: []string{"class", "method"}}}}, check.Spec{}, 1)

			vs, err := w.Walk(context.Background(), newFile(t, "x"), sampleTree(kinds))
			if err == nil {
				t.Fatal("Expected module failure")
			}
			if vs != nil {
				t.Errorf("Expected no violations on failure, got %d", len(vs))
			}
			var me *check.ModuleError
			if !errors.As(err, &me) {
				t.Fatalf("Expected *check.ModuleError, got %T: %v", err, err)
			}
			if me.Module != "Bad" || me.Kind != "method" || me.Line != 2 || me.Column != 3 {
				t.Errorf("Unexpected module error %+v", me)
			}
			if !strings.Contains(me.Err.Error(), "cannot handle m1") {
				t.Errorf("Original cause lost: %v", me.Err)
			}
			if threads > 1 && !errors.Is(err, dispatch.ErrTaskFailed) {
				t.Errorf("Expected pooled failure to wrap ErrTaskFailed: %v", err)
			}

			for _, e := range j.list() {
				if strings.Contains(e, "m2") || strings.Contains(e, "class=B") || strings.HasSuffix(e, ":finish") {
					t.Errorf("Visited after failure: %s", e)
				}
			}
		})
	}
}

func TestPanicBecomesModuleError(t *testing.T) {
	kinds := newKinds()
	w := New(kinds, dispatch.New(3))
	defer w.Destroy()
	register(t, w, &recorder{name: "Panicky", cap: check.Stateless, panicAt: "B",
		kinds: check.Kinds{Default: []string{"class"}}}, check.Spec{}, 0)

	_, err := w.Walk(context.Background(), newFile(t, "x"), sampleTree(kinds))
	var pe *check.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected PanicError in chain, got %v", err)
	}
	if !strings.Contains(fmt.Sprint(pe.Value), "exploded at B") {
		t.Errorf("Unexpected panic value %v", pe.Value)
	}
}

func TestForeignKindTableRejected(t *testing.T) {
	w := New(newKinds(), nil)
	if _, err := w.Walk(context.Background(), newFile(t, "x"), sampleTree(newKinds())); err == nil {
		t.Error("Expected error for a tree built with another kind table")
	}
}

// randomTree строит случайное дерево из n узлов.
func randomTree(kinds *ast.KindTable, rng *rand.Rand, n int) *ast.Tree {
	names := []string{"a", "b", "c", "d"}
	b := ast.NewBuilder(0, kinds, ast.Hints{Nodes: uint(n)})
	ids := []ast.NodeID{b.AddNamed(ast.NoNodeID, "a", 1, 0, "")}
	for i := 1; i < n; i++ {
		parent := ids[rng.IntN(len(ids))]
		line := uint32(1 + i/4)
		ids = append(ids, b.AddNamed(parent, names[rng.IntN(len(names))], line, uint32(i%4)*2, fmt.Sprintf("n%d", i)))
	}
	return b.Tree()
}

func TestSerialAndPoolProduceSameViolations(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	content := strings.Repeat("\tx y z w\n", 200)

	for round := range 20 {
		kinds := newKinds()
		tree := randomTree(kinds, rng, 200+rng.IntN(300))

		build := func(exec dispatch.Executor) (*Walker, []*recorder) {
			w := New(kinds, exec, WithTabWidth(4))
			var recs []*recorder
			for i, ks := range [][]string{{"a", "b"}, {"b"}, {"c", "a"}, {"d"}, {"a", "b", "c", "d"}} {
				r := &recorder{name: fmt.Sprintf("C%d", i), cap: check.Stateless, kinds: check.Kinds{Default: ks}}
				recs = append(recs, r)
				register(t, w, r, check.Spec{}, i)
			}
			return w, recs
		}

		serial, _ := build(dispatch.NewSerial())
		pool, recs := build(dispatch.NewPool(4))

		file := newFile(t, content)
		want, err := serial.Walk(context.Background(), file, tree)
		if err != nil {
			t.Fatal(err)
		}
		got, err := pool.Walk(context.Background(), file, tree)
		pool.Destroy()
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(got, want) {
			t.Fatalf("round %d: pool and serial differ (%d vs %d violations)", round, len(got), len(want))
		}
		for _, r := range recs {
			if r.overlap.Load() != 0 {
				t.Errorf("round %d: %s was called concurrently", round, r.name)
			}
		}
	}
}

func TestContextCancelStopsWalk(t *testing.T) {
	kinds := newKinds()
	w := New(kinds, nil)
	register(t, w, &recorder{name: "Any", cap: check.Stateless,
		kinds: check.Kinds{Default: []string{"class"}}}, check.Spec{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Walk(ctx, newFile(t, "x"), sampleTree(kinds)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
