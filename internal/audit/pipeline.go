// Package audit turns raw violations into reported events: it wraps each
// violation into an Event, runs the filter chain, formats accepted events and
// hands them to the listeners.
package audit

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"arbor/internal/ast"
	"arbor/internal/check"
	"arbor/internal/logging"
	"arbor/internal/source"
)

// Counts summarises what the pipeline delivered.
type Counts struct {
	Info       int
	Warning    int
	Error      int
	Filtered   int // rejected by filters
	Ignored    int // severity ignore
	Exceptions int
}

// Delivered returns the number of events handed to listeners.
func (c Counts) Delivered() int { return c.Info + c.Warning + c.Error }

// Pipeline owns the filter chain, the formatter, the listeners and the
// locator used to compute event paths.
type Pipeline struct {
	mu        sync.Mutex
	filters   *FilterSet
	formatter Formatter
	listeners []Listener
	locator   Locator
	log       *zap.Logger
	counts    Counts
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithFilters(filters ...Filter) Option {
	return func(p *Pipeline) {
		for _, f := range filters {
			p.filters.Add(f)
		}
	}
}

func WithFormatter(f Formatter) Option {
	return func(p *Pipeline) { p.formatter = f }
}

func WithListeners(ls ...Listener) Option {
	return func(p *Pipeline) { p.listeners = append(p.listeners, ls...) }
}

// WithLocator sets the locator that computes Event.Paths.
func WithLocator(l Locator) Option {
	return func(p *Pipeline) { p.locator = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		filters:   NewFilterSet(),
		formatter: DefaultFormatter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.Or(p.log).Named(logging.ComponentAudit)
	return p
}

// AddFilter appends f to the chain.
func (p *Pipeline) AddFilter(f Filter) {
	p.mu.Lock()
	p.filters.Add(f)
	p.mu.Unlock()
}

// AddListener registers another sink.
func (p *Pipeline) AddListener(l Listener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	p.mu.Unlock()
}

// Event creates an event bound to the pipeline's locator.
func (p *Pipeline) Event(fileName string, file *source.File, tree *ast.Tree, v check.Violation) *Event {
	ev := NewEvent(fileName, file, tree, v)
	ev.locator = p.locator
	return ev
}

func (p *Pipeline) AuditStarted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts = Counts{}
	for _, l := range p.listeners {
		l.AuditStarted()
	}
}

func (p *Pipeline) FileStarted(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.listeners {
		l.FileStarted(path)
	}
}

// Report runs ev through the pipeline and reports whether it was delivered.
// Events with severity ignore are never delivered.
func (p *Pipeline) Report(ev *Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report(ev)
}

func (p *Pipeline) report(ev *Event) bool {
	if ev.Severity() == check.SevIgnore {
		p.counts.Ignored++
		return false
	}
	if !p.filters.Accept(ev) {
		p.counts.Filtered++
		return false
	}
	formatted := p.formatter.Format(ev)
	for _, l := range p.listeners {
		l.AddEvent(ev, formatted)
	}
	switch ev.Severity() {
	case check.SevInfo:
		p.counts.Info++
	case check.SevWarning:
		p.counts.Warning++
	case check.SevError:
		p.counts.Error++
	}
	return true
}

// ReportFile reports the violations of one file in order and returns how
// many were delivered.
func (p *Pipeline) ReportFile(fileName string, file *source.File, tree *ast.Tree, vs []check.Violation) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, v := range vs {
		ev := NewEvent(fileName, file, tree, v)
		ev.locator = p.locator
		if p.report(ev) {
			n++
		}
	}
	return n
}

// AddException reports a failure while processing path.
func (p *Pipeline) AddException(path string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts.Exceptions++
	p.log.Error("file aborted", zap.String("file", path), zap.Error(err))
	for _, l := range p.listeners {
		l.AddException(path, err)
	}
}

func (p *Pipeline) FileFinished(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.listeners {
		l.FileFinished(path)
	}
}

// AuditFinished flushes every listener and joins their errors.
func (p *Pipeline) AuditFinished() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, l := range p.listeners {
		if err := l.AuditFinished(); err != nil {
			errs = append(errs, err)
		}
	}
	p.log.Debug("audit finished",
		zap.Int("errors", p.counts.Error),
		zap.Int("warnings", p.counts.Warning),
		zap.Int("filtered", p.counts.Filtered))
	return errors.Join(errs...)
}

// Counts returns a snapshot of the delivery counters.
func (p *Pipeline) Counts() Counts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts
}
