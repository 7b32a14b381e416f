package checker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"arbor/internal/ast"
	"arbor/internal/audit"
	"arbor/internal/cache"
	"arbor/internal/check"
	"arbor/internal/checks"
	"arbor/internal/config"
	"arbor/internal/parse"
	"arbor/internal/trace"
)

// marker fails on an identifier named Boom and reports identifiers
// starting with Dirty.
type marker struct{}

func (marker) Name() string                 { return "MarkerCheck" }
func (marker) Capability() check.Capability { return check.Stateless }
func (marker) Kinds() check.Kinds           { return check.Kinds{Default: []string{"identifier"}} }

func (marker) Visit(ctx *check.Context, id ast.NodeID) error {
	text := ctx.Node(id).Text
	switch {
	case text == "Boom":
		return errors.New("boom")
	case strings.HasPrefix(text, "Dirty"):
		ctx.Log(id, "dirty", "Dirty name '%s'", text)
	}
	return nil
}

// globalRecorder records every visited file and whether FinishRun was called.
type globalRecorder struct {
	mu       sync.Mutex
	files    map[string]int
	finished int
}

func (*globalRecorder) Name() string                 { return "GlobalRecorderCheck" }
func (*globalRecorder) Capability() check.Capability { return check.GlobalScoped }
func (*globalRecorder) Kinds() check.Kinds           { return check.Kinds{Default: []string{"program"}} }

func (g *globalRecorder) Visit(ctx *check.Context, _ ast.NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[ctx.File.Path]++
	return nil
}

func (g *globalRecorder) FinishRun(*check.RunContext) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finished++
	return nil
}

// fileGuard fails if one instance ever sees two files at the same time.
type fileGuard struct {
	busy    atomic.Bool
	current string
}

func (*fileGuard) Name() string                 { return "FileGuardCheck" }
func (*fileGuard) Capability() check.Capability { return check.FileScoped }
func (*fileGuard) Kinds() check.Kinds           { return check.Kinds{Default: []string{"class_declaration"}} }

func (f *fileGuard) BeginTree(ctx *check.Context, _ ast.NodeID) error {
	if !f.busy.CompareAndSwap(false, true) {
		return errors.New("instance shared between files")
	}
	f.current = ctx.File.Path
	return nil
}

func (f *fileGuard) Visit(ctx *check.Context, _ ast.NodeID) error {
	if ctx.File.Path != f.current {
		return fmt.Errorf("state of %s seen while walking %s", f.current, ctx.File.Path)
	}
	return nil
}

func (f *fileGuard) FinishTree(*check.Context, ast.NodeID) error {
	f.busy.Store(false)
	return nil
}

type recorders struct {
	registry *check.Registry
	global   *globalRecorder
	made     map[string]*atomic.Int32
}

func newRecorders() *recorders {
	p := &recorders{
		registry: check.NewRegistry(),
		global:   &globalRecorder{files: make(map[string]int)},
		made:     map[string]*atomic.Int32{"Marker": {}, "GlobalRecorder": {}, "FileGuard": {}},
	}
	p.registry.MustRegister("MarkerCheck", func() check.Check {
		p.made["Marker"].Add(1)
		return marker{}
	})
	p.registry.MustRegister("GlobalRecorderCheck", func() check.Check {
		p.made["GlobalRecorder"].Add(1)
		return p.global
	})
	p.registry.MustRegister("FileGuardCheck", func() check.Check {
		p.made["FileGuard"].Add(1)
		return &fileGuard{}
	})
	return p
}

func specs(names ...string) []check.Spec {
	out := make([]check.Spec, len(names))
	for i, n := range names {
		out[i] = check.Spec{Name: n, Severity: check.SevError}
	}
	return out
}

// recorder keeps the listener calls in order.
type recorder struct {
	audit.NopListener
	calls []string
}

func (r *recorder) FileStarted(p string)              { r.calls = append(r.calls, "start "+p) }
func (r *recorder) AddEvent(_ *audit.Event, s string) { r.calls = append(r.calls, "event "+s) }
func (r *recorder) AddException(p string, _ error)    { r.calls = append(r.calls, "exception "+p) }
func (r *recorder) FileFinished(p string)             { r.calls = append(r.calls, "finish "+p) }

func (r *recorder) started() []string {
	var out []string
	for _, c := range r.calls {
		if name, ok := strings.CutPrefix(c, "start "); ok {
			out = append(out, name)
		}
	}
	return out
}

func writeFiles(t *testing.T, dir string, srcs ...string) []string {
	t.Helper()
	paths := make([]string, len(srcs))
	for i, src := range srcs {
		p := filepath.Join(dir, fmt.Sprintf("F%02d.java", i))
		if err := os.WriteFile(p, []byte(src), 0o600); err != nil {
			t.Fatal(err)
		}
		paths[i] = filepath.ToSlash(p)
	}
	return paths
}

func newChecker(t *testing.T, p *recorders, settings ThreadModeSettings, mutate func(*Options), names ...string) (*Checker, *recorder, string) {
	t.Helper()
	dir := t.TempDir()
	rec := &recorder{}
	opts := Options{
		Parser:   parse.NewJava(),
		Registry: p.registry,
		Specs:    specs(names...),
		Settings: settings,
		Pipeline: audit.New(audit.WithListeners(rec)),
		TabWidth: 4,
		BaseDir:  dir,
	}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, rec, dir
}

func TestCapabilityInstancing(t *testing.T) {
	p := newRecorders()
	settings, err := NewThreadModeSettings(4, 2)
	if err != nil {
		t.Fatal(err)
	}
	c, _, dir := newChecker(t, p, settings, nil, "Marker", "GlobalRecorder", "FileGuard")

	srcs := make([]string, 20)
	for i := range srcs {
		srcs[i] = fmt.Sprintf("class C%02d { int x; }\nclass D%02d { }\n", i, i)
	}
	paths := writeFiles(t, dir, srcs...)

	sum, err := c.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Checked != 20 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if got := p.made["GlobalRecorder"].Load(); got != 1 {
		t.Errorf("global check instantiated %d times, want 1", got)
	}
	if got := p.made["Marker"].Load(); got != 1 {
		t.Errorf("stateless check instantiated %d times, want 1", got)
	}
	if got := p.made["FileGuard"].Load(); got != 4 {
		t.Errorf("file-scoped check instantiated %d times, want one per worker (4)", got)
	}
	if len(p.global.files) != 20 {
		t.Errorf("global check saw %d files, want 20", len(p.global.files))
	}
	for path, n := range p.global.files {
		if n != 1 {
			t.Errorf("%s visited %d times", path, n)
		}
	}
	if p.global.finished != 1 {
		t.Errorf("FinishRun called %d times, want 1", p.global.finished)
	}
}

func TestDeliveryFollowsInputOrder(t *testing.T) {
	p := newRecorders()
	settings, _ := NewThreadModeSettings(3, 1)
	c, rec, dir := newChecker(t, p, settings, nil, "Marker")

	srcs := make([]string, 12)
	var want []string
	for i := range srcs {
		// крупные файлы в начале, чтобы воркеры завершались не по порядку
		body := strings.Repeat("int f;\n", (12-i)*50)
		srcs[i] = fmt.Sprintf("class Dirty%02d {\n%s}\n", i, body)
		want = append(want, fmt.Sprintf("F%02d.java", i))
	}
	paths := writeFiles(t, dir, srcs...)

	sum, err := c.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(rec.started(), want) {
		t.Errorf("file order = %v, want %v", rec.started(), want)
	}
	if sum.Counts.Error != 12 {
		t.Errorf("errors = %d, want 12", sum.Counts.Error)
	}
	// события файла идут между его start и finish
	for i, call := range rec.calls {
		if !strings.HasPrefix(call, "event ") {
			continue
		}
		prev := rec.calls[i-1]
		name := strings.TrimPrefix(prev, "start ")
		if !strings.HasPrefix(prev, "start ") || !strings.Contains(call, name) {
			t.Errorf("event %q not delivered inside its file (after %q)", call, prev)
		}
	}
}

func TestModuleFailureAbortsRun(t *testing.T) {
	p := newRecorders()
	c, rec, dir := newChecker(t, p, SingleThreadMode, nil, "Marker", "GlobalRecorder")
	paths := writeFiles(t, dir,
		"class A { }\n",
		"class Boom { }\n",
		"class C { }\n",
	)

	sum, err := c.Run(context.Background(), paths)
	var ferr *FileError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want *FileError", err)
	}
	if ferr.Path != "F01.java" {
		t.Errorf("failed path = %q", ferr.Path)
	}
	var merr *check.ModuleError
	if !errors.As(err, &merr) || merr.Module != "MarkerCheck" {
		t.Errorf("module error = %v", merr)
	}
	if !strings.HasPrefix(err.Error(), "Exception was thrown while processing F01.java") {
		t.Errorf("message = %q", err.Error())
	}
	if got := rec.started(); !slices.Equal(got, []string{"F00.java", "F01.java"}) {
		t.Errorf("started = %v", got)
	}
	if !slices.Contains(rec.calls, "exception F01.java") {
		t.Errorf("exception not reported: %v", rec.calls)
	}
	if sum.Failed != 1 || sum.Counts.Exceptions != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if p.global.finished != 0 {
		t.Error("FinishRun called after an aborted run")
	}
}

func TestFileErrorCarriesTrace(t *testing.T) {
	p := newRecorders()
	settings, _ := NewThreadModeSettings(2, 1)
	c, _, dir := newChecker(t, p, settings, nil, "Marker")
	paths := writeFiles(t, dir, "class A { }\n", "class Boom { }\n")

	ring := trace.NewRing(256, trace.LevelError)
	_, err := c.Run(trace.WithTracer(context.Background(), ring), paths)
	var ferr *FileError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want *FileError", err)
	}
	if len(ferr.Trace) == 0 {
		t.Fatal("no trace events attached to the failed file")
	}
	for _, ev := range ferr.Trace {
		if ev.File != "F01.java" || ev.Worker < 1 {
			t.Errorf("foreign event %+v", ev)
		}
	}
	if last := ferr.Trace[len(ferr.Trace)-1]; last.Kind != trace.KindSpanEnd || last.Detail != "error" {
		t.Errorf("last event = %+v, want the end of the file span", last)
	}
}

func TestContinueOnError(t *testing.T) {
	p := newRecorders()
	c, rec, dir := newChecker(t, p, SingleThreadMode, func(o *Options) { o.ContinueOnError = true }, "Marker")
	paths := writeFiles(t, dir,
		"class A { }\n",
		"class Boom { }\n",
		"class Dirty { }\n",
	)

	sum, err := c.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.started()) != 3 {
		t.Errorf("started = %v", rec.started())
	}
	if sum.Failed != 1 || sum.Checked != 2 || sum.Counts.Error != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestSyntaxErrorIsFileError(t *testing.T) {
	p := newRecorders()
	c, _, dir := newChecker(t, p, SingleThreadMode, nil, "Marker")
	paths := writeFiles(t, dir, "class {\n")

	_, err := c.Run(context.Background(), paths)
	var ferr *FileError
	if !errors.As(err, &ferr) || !errors.Is(err, parse.ErrSyntax) {
		t.Fatalf("err = %v, want a FileError wrapping a syntax error", err)
	}
}

func TestCacheSkipsCleanFiles(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "arbor.cache")
	dir := t.TempDir()
	paths := writeFiles(t, dir, "class Clean { }\n", "class Dirty { }\n")

	run := func(fingerprint uint64) Summary {
		t.Helper()
		cc, err := cache.Open(cachePath, fingerprint, nil)
		if err != nil {
			t.Fatal(err)
		}
		c, _, _ := newChecker(t, newRecorders(), SingleThreadMode, func(o *Options) {
			o.Cache = cc
			o.BaseDir = dir
		}, "Marker")
		sum, err := c.Run(context.Background(), paths)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return sum
	}

	first := run(1)
	if first.Cached != 0 || first.Checked != 2 {
		t.Fatalf("first run = %+v", first)
	}
	second := run(1)
	if second.Cached != 1 || second.Checked != 1 || second.Counts.Error != 1 {
		t.Errorf("second run = %+v, want the clean file cached", second)
	}
	third := run(2)
	if third.Cached != 0 {
		t.Errorf("run with another configuration used the cache: %+v", third)
	}

	// изменённый файл проверяется снова
	if err := os.WriteFile(paths[0], []byte("class Clean { int changed; }\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if sum := run(2); sum.Cached != 0 || sum.Checked != 2 {
		t.Errorf("changed file was skipped: %+v", sum)
	}
}

func TestRunLevelCheckDisablesCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "arbor.cache")
	dir := t.TempDir()
	paths := writeFiles(t, dir, "class Same { }\n", "class Same { }\n")

	run := func() Summary {
		t.Helper()
		cc, err := cache.Open(cachePath, 1, nil)
		if err != nil {
			t.Fatal(err)
		}
		c, _, _ := newChecker(t, newRecorders(), SingleThreadMode, func(o *Options) {
			o.Registry = checks.Default()
			o.Specs = []check.Spec{{Name: "UniqueTypeName"}}
			o.Cache = cc
			o.BaseDir = dir
		})
		sum, err := c.Run(context.Background(), paths)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return sum
	}

	first := run()
	if first.Checked != 2 || first.Counts.Error != 1 {
		t.Fatalf("first run = %+v", first)
	}
	second := run()
	if second.Cached != 0 || second.Checked != 2 || second.Counts.Error != 1 {
		t.Errorf("unchanged input gave %+v, want the same findings as %+v", second, first)
	}
}

type exclusiveParser struct{ *parse.Java }

func (exclusiveParser) SingleThreaded() {}

func TestSingleThreadedParserRejectsCheckerThreads(t *testing.T) {
	settings, err := NewThreadModeSettings(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{
		Parser:   exclusiveParser{parse.NewJava()},
		Registry: newRecorders().registry,
		Specs:    specs("Marker"),
		Settings: settings,
		Pipeline: audit.New(),
	}
	if _, err := New(opts); !errors.Is(err, config.ErrUnsupportedThreads) {
		t.Errorf("New with 2 checker threads = %v, want ErrUnsupportedThreads", err)
	}

	opts.Settings, _ = NewThreadModeSettings(1, 3)
	c, err := New(opts)
	if err != nil {
		t.Fatalf("tree walker threads rejected: %v", err)
	}
	c.Close()
}

func TestNewRejectsUnknownCheck(t *testing.T) {
	_, err := New(Options{
		Parser:   parse.NewJava(),
		Registry: newRecorders().registry,
		Specs:    specs("Nope"),
		Pipeline: audit.New(),
	})
	if err == nil || !strings.Contains(err.Error(), `unknown check "Nope"`) {
		t.Errorf("err = %v", err)
	}
}

func TestThreadModeSettings(t *testing.T) {
	if _, err := NewThreadModeSettings(0, 1); !errors.Is(err, config.ErrInvalidThreads) {
		t.Errorf("checker 0: err = %v", err)
	}
	if _, err := NewThreadModeSettings(1, -2); !errors.Is(err, config.ErrInvalidThreads) {
		t.Errorf("tree walker -2: err = %v", err)
	}
	s, err := NewThreadModeSettings(2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if s.CheckerThreads() != 2 || s.TreeWalkerThreads() != 3 {
		t.Errorf("settings = %v", s)
	}
	if err := s.Supports(true, false); !errors.Is(err, config.ErrUnsupportedThreads) {
		t.Errorf("Supports(true, false) = %v", err)
	}
	if err := s.Supports(true, true); err != nil {
		t.Errorf("Supports(true, true) = %v", err)
	}
	if err := SingleThreadMode.Supports(false, false); err != nil {
		t.Errorf("single thread mode: %v", err)
	}
	if !s.Executor(nil).Concurrent() || SingleThreadMode.Executor(nil).Concurrent() {
		t.Error("executor does not follow tree walker threads")
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b/B.java", "a/A.java", "a/notes.txt", ".git/X.java", "build/Gen.java"} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.Default()
	got, err := Collect([]string{dir, filepath.Join(dir, "a", "A.java")}, cfg.Accepts)
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.ToSlash(dir)
	want := []string{base + "/a/A.java", base + "/b/B.java"}
	if !slices.Equal(got, want) {
		t.Errorf("Collect = %v, want %v", got, want)
	}
	if _, err := Collect([]string{filepath.Join(dir, "missing")}, nil); err == nil {
		t.Error("missing path accepted")
	}
}
