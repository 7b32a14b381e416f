package suppress

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"arbor/internal/ast"
	"arbor/internal/audit"
)

// ErrEmptyRule reports a rule without any condition.
var ErrEmptyRule = errors.New("suppression rule has no conditions")

// Rule is the serialized form of one suppression.
// Patterns are unanchored regular expressions; empty fields match everything.
type Rule struct {
	Files   string `yaml:"files,omitempty"`
	Checks  string `yaml:"checks,omitempty"`
	Message string `yaml:"message,omitempty"`
	ID      string `yaml:"id,omitempty"`
	Query   string `yaml:"query,omitempty"`
}

// Element suppresses the events matched by one rule.
type Element struct {
	rule     Rule
	files    *regexp.Regexp
	checks   *regexp.Regexp
	message  *regexp.Regexp
	id       *regexp.Regexp
	query    *Expr
	tabWidth int

	// результат последнего вычисления запроса: события одного файла идут подряд
	mu        sync.Mutex
	lastTree  *ast.Tree
	lastNodes []ast.NodeID
}

// NewElement compiles r. tabWidth expands event columns when matching Query.
func NewElement(r Rule, tabWidth int) (*Element, error) {
	if r == (Rule{}) {
		return nil, ErrEmptyRule
	}
	e := &Element{rule: r, tabWidth: tabWidth}
	var err error
	if e.files, err = compile("files", r.Files); err != nil {
		return nil, err
	}
	if e.checks, err = compile("checks", r.Checks); err != nil {
		return nil, err
	}
	if e.message, err = compile("message", r.Message); err != nil {
		return nil, err
	}
	if e.id, err = compile("id", r.ID); err != nil {
		return nil, err
	}
	if r.Query != "" {
		if e.query, err = Compile(r.Query); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func compile(field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("suppression %s pattern: %w", field, err)
	}
	return re, nil
}

// Rule returns the rule e was built from.
func (e *Element) Rule() Rule { return e.rule }

// Matches reports whether ev is covered by the rule.
func (e *Element) Matches(ev *audit.Event) bool {
	if e.files != nil && !e.files.MatchString(ev.FileName()) {
		return false
	}
	if e.checks != nil && !e.checks.MatchString(ev.ModuleName()) {
		return false
	}
	if e.message != nil && !e.message.MatchString(ev.Message()) {
		return false
	}
	if e.id != nil && (ev.ModuleID() == "" || !e.id.MatchString(ev.ModuleID())) {
		return false
	}
	return e.query == nil || e.queryMatches(ev)
}

// Accept implements audit.Filter.
func (e *Element) Accept(ev *audit.Event) bool { return !e.Matches(ev) }

func (e *Element) queryMatches(ev *audit.Event) bool {
	tree := ev.Tree()
	if tree == nil || ev.Column() <= 0 {
		return false
	}
	text := lineText(ev.File(), ev.Line())
	for _, id := range e.nodes(tree) {
		if nodeAt(tree.Node(id), text, ev.Line(), ev.Column(), ev.Kind(), e.tabWidth) {
			return true
		}
	}
	return false
}

func (e *Element) nodes(tree *ast.Tree) []ast.NodeID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastTree != tree {
		e.lastTree = tree
		e.lastNodes = e.query.Eval(tree)
	}
	return e.lastNodes
}

// Suppressions is a set of elements; an event is rejected when any element matches.
type Suppressions struct {
	elems []*Element
}

// NewSuppressions compiles rules in order.
func NewSuppressions(rules []Rule, tabWidth int) (*Suppressions, error) {
	s := &Suppressions{elems: make([]*Element, 0, len(rules))}
	for i, r := range rules {
		e, err := NewElement(r, tabWidth)
		if err != nil {
			return nil, fmt.Errorf("suppression #%d: %w", i+1, err)
		}
		s.elems = append(s.elems, e)
	}
	return s, nil
}

func (s *Suppressions) Add(e *Element) { s.elems = append(s.elems, e) }

func (s *Suppressions) Len() int { return len(s.elems) }

// Rules returns the rules of all elements.
func (s *Suppressions) Rules() []Rule {
	out := make([]Rule, len(s.elems))
	for i, e := range s.elems {
		out[i] = e.rule
	}
	return out
}

// Accept implements audit.Filter.
func (s *Suppressions) Accept(ev *audit.Event) bool {
	for _, e := range s.elems {
		if e.Matches(ev) {
			return false
		}
	}
	return true
}
