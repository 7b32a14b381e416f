package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"arbor/internal/ast"
	"arbor/internal/check"
	"arbor/internal/source"
)

func violation(sev check.Severity, line, col int, msg, module, id string) check.Violation {
	return check.Violation{Line: line, Column: col, Message: msg, ModuleName: module, ModuleID: id, Severity: sev}
}

func TestDefaultFormatter(t *testing.T) {
	tests := []struct {
		name string
		v    check.Violation
		want string
	}{
		{
			name: "warning without column and id",
			v:    violation(check.SevWarning, 10, 0, "unused import", "com.x.UnusedImportsCheck", ""),
			want: "[WARN] Foo.java:10: unused import. [UnusedImports]",
		},
		{
			name: "error with column and id",
			v:    violation(check.SevError, 3, 7, "Line is longer than 80.", "LineLengthCheck", "maxLine"),
			want: "[ERROR] Foo.java:3:7: Line is longer than 80. [maxLine]",
		},
		{
			name: "negative column",
			v:    violation(check.SevInfo, 1, -1, "note", "Checker", ""),
			want: "[INFO] Foo.java:1: note. [Checker]",
		},
		{
			name: "Check only stripped as suffix",
			v:    violation(check.SevError, 2, 1, "x", "CheckCheck", ""),
			want: "[ERROR] Foo.java:2:1: x. [Check]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvent("Foo.java", nil, nil, tt.v)
			f := DefaultFormatter{}
			got := f.Format(ev)
			if got != tt.want {
				t.Errorf("Format = %q, want %q", got, tt.want)
			}
			if again := f.Format(ev); again != got {
				t.Errorf("Format is not idempotent: %q then %q", got, again)
			}
		})
	}
}

type collector struct {
	NopListener
	lines      []string
	exceptions []string
	started    int
	finished   int
}

func (c *collector) AuditStarted()                  { c.started++ }
func (c *collector) AddEvent(_ *Event, line string) { c.lines = append(c.lines, line) }
func (c *collector) AddException(p string, _ error) { c.exceptions = append(c.exceptions, p) }
func (c *collector) AuditFinished() error           { c.finished++; return nil }

func TestPipelineFiltersAndIgnore(t *testing.T) {
	col := &collector{}
	noFoo := FilterFunc(func(ev *Event) bool { return !strings.Contains(ev.Message(), "foo") })
	p := New(WithListeners(col), WithFilters(noFoo, SeverityFilter{Min: check.SevWarning}))

	p.AuditStarted()
	n := p.ReportFile("A.java", nil, nil, []check.Violation{
		violation(check.SevError, 1, 1, "bar", "XCheck", ""),
		violation(check.SevError, 2, 1, "foo", "XCheck", ""),
		violation(check.SevInfo, 3, 1, "baz", "XCheck", ""),
		violation(check.SevIgnore, 4, 1, "bar", "XCheck", ""),
		violation(check.SevWarning, 5, 1, "qux", "XCheck", ""),
	})
	p.AddException("B.java", errors.New("boom"))
	if err := p.AuditFinished(); err != nil {
		t.Fatal(err)
	}

	if n != 2 || len(col.lines) != 2 {
		t.Fatalf("Expected 2 delivered events, got %d: %v", n, col.lines)
	}
	if col.lines[0] != "[ERROR] A.java:1:1: bar. [X]" || col.lines[1] != "[WARN] A.java:5:1: qux. [X]" {
		t.Errorf("Unexpected lines %v", col.lines)
	}
	counts := p.Counts()
	want := Counts{Warning: 1, Error: 1, Filtered: 2, Ignored: 1, Exceptions: 1}
	if counts != want {
		t.Errorf("Counts = %+v, want %+v", counts, want)
	}
	if col.started != 1 || col.finished != 1 || len(col.exceptions) != 1 {
		t.Errorf("Unexpected lifecycle calls %+v", col)
	}
}

func TestIgnoreNeverDelivered(t *testing.T) {
	col := &collector{}
	accept := FilterFunc(func(*Event) bool { return true })
	p := New(WithListeners(col), WithFilters(accept))
	if p.Report(NewEvent("A.java", nil, nil, violation(check.SevIgnore, 1, 1, "x", "X", ""))) {
		t.Error("Ignore event was delivered")
	}
	if len(col.lines) != 0 {
		t.Errorf("Listener received %v", col.lines)
	}
}

type countingLocator struct{ calls int }

func (l *countingLocator) Locate(_ *ast.Tree, _ *source.File, line, column int, _ ast.Kind) []string {
	l.calls++
	return []string{fmt.Sprintf("/at[%d:%d]", line, column)}
}

func TestEventPathsMemoized(t *testing.T) {
	loc := &countingLocator{}
	p := New(WithLocator(loc))
	tree := ast.NewBuilder(0, nil, ast.Hints{}).Tree()

	ev := p.Event("A.java", nil, tree, violation(check.SevError, 2, 3, "x", "X", ""))
	first := ev.Paths()
	second := ev.Paths()
	if loc.calls != 1 {
		t.Errorf("Expected one locator call, got %d", loc.calls)
	}
	if len(first) != 1 || first[0] != "/at[2:3]" || second[0] != first[0] {
		t.Errorf("Unexpected paths %v / %v", first, second)
	}

	noCol := p.Event("A.java", nil, tree, violation(check.SevError, 2, 0, "x", "X", ""))
	if noCol.Paths() != nil || loc.calls != 1 {
		t.Error("Line-only events must not be located")
	}
	if NewEvent("A.java", nil, tree, violation(check.SevError, 2, 3, "x", "X", "")).Paths() != nil {
		t.Error("Events without locator have no paths")
	}
}

func TestPlainListener(t *testing.T) {
	var buf bytes.Buffer
	p := New(WithListeners(NewPlainListener(&buf, false, true)))
	p.AuditStarted()
	p.Report(NewEvent("A.java", nil, nil, violation(check.SevWarning, 1, 2, "msg", "XCheck", "")))
	p.AddException("B.java", fmt.Errorf("wrapped: %w", &check.PanicError{Value: "bad", Stack: []byte("goroutine 1\nmain.go:1")}))
	if err := p.AuditFinished(); err != nil {
		t.Fatal(err)
	}

	want := "Starting audit...\n" +
		"[WARN] A.java:1:2: msg. [X]\n" +
		"Error auditing B.java: wrapped: panic: bad\n" +
		"\tgoroutine 1\n" +
		"\tmain.go:1\n" +
		"Audit done.\n"
	if buf.String() != want {
		t.Errorf("output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestPlainListenerColor(t *testing.T) {
	var buf bytes.Buffer
	l := NewPlainListener(&buf, true, false)
	l.AddEvent(NewEvent("A.java", nil, nil, violation(check.SevError, 1, 0, "m", "X", "")), "[ERROR] A.java:1: m. [X]")
	if err := l.AuditFinished(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\x1b[") || !strings.Contains(buf.String(), " A.java:1: m. [X]") {
		t.Errorf("Expected colored label, got %q", buf.String())
	}
}

func TestSarifListener(t *testing.T) {
	var buf bytes.Buffer
	runID := uuid.MustParse("6f1c1f51-3b1e-4f5e-9d4a-111111111111")
	p := New(WithListeners(NewSarifListener(&buf, SarifMeta{ToolVersion: "1.0.0", RunID: runID})))

	p.AuditStarted()
	p.Report(NewEvent("src/A.java", nil, nil, violation(check.SevError, 3, 5, "bad name", "NameCheck", "")))
	p.Report(NewEvent("src/B.java", nil, nil, violation(check.SevInfo, 1, 0, "fyi", "NameCheck", "")))
	p.Report(NewEvent("src/B.java", nil, nil, violation(check.SevWarning, 0, 0, "whole file", "DupCheck", "dup")))
	p.AddException("src/C.java", errors.New("boom"))
	if err := p.AuditFinished(); err != nil {
		t.Fatal(err)
	}

	var log sarifLog
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("Invalid SARIF: %v\n%s", err, buf.String())
	}
	if log.Version != "2.1.0" || len(log.Runs) != 1 {
		t.Fatalf("Unexpected log header %+v", log)
	}
	run := log.Runs[0]
	if run.AutomationDetails.GUID != runID.String() {
		t.Errorf("Unexpected guid %q", run.AutomationDetails.GUID)
	}
	if len(run.Tool.Driver.Rules) != 2 || run.Tool.Driver.Rules[1].ID != "dup" {
		t.Errorf("Unexpected rules %+v", run.Tool.Driver.Rules)
	}
	if len(run.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(run.Results))
	}
	r := run.Results[0]
	if r.RuleID != "Name" || r.Level != "error" || r.Locations[0].Physical.Region.StartColumn != 5 {
		t.Errorf("Unexpected result %+v", r)
	}
	if run.Results[1].Level != "note" || run.Results[2].Locations[0].Physical.Region != nil {
		t.Errorf("Unexpected results %+v", run.Results[1:])
	}
	if run.Invocations[0].Successful || len(run.Invocations[0].Notifications) != 1 {
		t.Errorf("Expected failed invocation with one notification, got %+v", run.Invocations[0])
	}
}
