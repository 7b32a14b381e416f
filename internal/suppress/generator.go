package suppress

import (
	"fmt"
	"io"
	"regexp"

	"go.uber.org/zap"

	"arbor/internal/audit"
	"arbor/internal/check"
	"arbor/internal/logging"
	"arbor/internal/source"
)

// GeneratorListener collects a suppression rule for every reported event
// that has a path expression and writes them as YAML when the audit ends.
type GeneratorListener struct {
	audit.NopListener
	w       io.Writer
	log     *zap.Logger
	rules   []Rule
	seen    map[Rule]bool
	skipped int
}

func NewGeneratorListener(w io.Writer, log *zap.Logger) *GeneratorListener {
	return &GeneratorListener{
		w:    w,
		log:  logging.Or(log).Named(logging.ComponentSuppress),
		seen: make(map[Rule]bool),
	}
}

// RuleFor builds the rule suppressing ev, using its most specific path.
// ok is false when the event position has no node.
func RuleFor(ev *audit.Event) (r Rule, ok bool) {
	paths := ev.Paths()
	if len(paths) == 0 {
		return Rule{}, false
	}
	r = Rule{
		Files: regexp.QuoteMeta(source.BaseName(ev.FileName())) + "$",
		Query: paths[0],
	}
	if ev.ModuleID() != "" {
		r.ID = "^" + regexp.QuoteMeta(ev.ModuleID()) + "$"
	} else {
		r.Checks = regexp.QuoteMeta(check.SimpleName(ev.ModuleName())) + "$"
	}
	return r, true
}

func (g *GeneratorListener) AddEvent(ev *audit.Event, _ string) {
	r, ok := RuleFor(ev)
	if !ok {
		g.skipped++
		g.log.Debug("no node for event",
			zap.String("file", ev.FileName()),
			zap.Int("line", ev.Line()),
			zap.Int("column", ev.Column()))
		return
	}
	if g.seen[r] {
		return
	}
	g.seen[r] = true
	g.rules = append(g.rules, r)
}

// Rules returns the collected rules in report order.
func (g *GeneratorListener) Rules() []Rule { return g.rules }

// Skipped returns the number of events that had no path expression.
func (g *GeneratorListener) Skipped() int { return g.skipped }

func (g *GeneratorListener) AuditFinished() error {
	if g.skipped > 0 {
		g.log.Warn("events without node position were not suppressed", zap.Int("count", g.skipped))
	}
	if err := Write(g.w, g.rules); err != nil {
		return fmt.Errorf("suppressions generator: %w", err)
	}
	return nil
}
