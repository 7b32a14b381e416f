// Package checker coordinates a run: it instantiates the configured checks
// according to their capabilities, fans files out to workers and delivers
// every file's events to the audit pipeline in input order.
//
// Instancing rules:
//   - Stateless and GlobalScoped checks have exactly one instance per run,
//     shared by all workers;
//   - FileScoped checks get one instance per worker, and a worker handles
//     one file at a time.
package checker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"arbor/internal/audit"
	"arbor/internal/cache"
	"arbor/internal/check"
	"arbor/internal/logging"
	"arbor/internal/metrics"
	"arbor/internal/parse"
	"arbor/internal/source"
	"arbor/internal/walker"
)

// Options configures a Checker. Parser, Registry and Pipeline are required.
type Options struct {
	Parser   parse.Parser
	Registry *check.Registry
	Specs    []check.Spec
	Settings ThreadModeSettings
	Pipeline *audit.Pipeline

	TabWidth int
	BaseDir  string // имена файлов в событиях относительно BaseDir
	Charset  string

	// ContinueOnError reports a failed file and goes on with the rest
	// instead of aborting the run.
	ContinueOnError bool

	Cache    *cache.Cache
	Metrics  *metrics.Metrics
	Progress ProgressSink
	Logger   *zap.Logger
}

// Checker runs the configured checks over files.
type Checker struct {
	opts    Options
	log     *zap.Logger
	fs      *source.FileSet
	workers []*worker
	shared  []check.Check // по позиции в Specs; nil для FileScoped
	caching bool
	closed  bool
}

// worker owns a walker and the FileScoped instances registered with it.
type worker struct {
	id     int
	walker *walker.Walker
	regs   []*check.Registration
}

// New instantiates the checks and builds one walker per checker thread.
func New(opts Options) (*Checker, error) {
	if opts.Parser == nil || opts.Registry == nil || opts.Pipeline == nil {
		return nil, errors.New("checker: parser, registry and pipeline are required")
	}
	if opts.Settings == (ThreadModeSettings{}) {
		opts.Settings = SingleThreadMode
	}
	_, single := opts.Parser.(parse.SingleThreaded)
	if err := opts.Settings.Supports(!single, true); err != nil {
		return nil, err
	}
	if opts.TabWidth <= 0 {
		opts.TabWidth = source.DefaultTabWidth
	}
	if opts.Progress == nil {
		opts.Progress = nopSink{}
	}

	c := &Checker{
		opts: opts,
		log:  logging.Or(opts.Logger).Named(logging.ComponentChecker),
		fs:   source.NewFileSetWithBase(opts.BaseDir),
	}
	if err := c.fs.SetCharset(opts.Charset); err != nil {
		return nil, err
	}

	// первый экземпляр каждой проверки определяет её возможности
	first := make([]check.Check, len(opts.Specs))
	c.shared = make([]check.Check, len(opts.Specs))
	for i, spec := range opts.Specs {
		inst, err := opts.Registry.Instantiate(spec)
		if err != nil {
			return nil, err
		}
		first[i] = inst
		if inst.Capability().Shared() {
			c.shared[i] = inst
		}
	}

	// проверка уровня прогона должна видеть все файлы, кэш её обманет
	c.caching = opts.Cache != nil
	for i, inst := range c.shared {
		if _, ok := inst.(check.RunFinisher); ok && c.caching {
			c.caching = false
			c.log.Info("clean-file cache disabled", zap.String("check", opts.Specs[i].Name))
		}
	}

	for w := range opts.Settings.CheckerThreads() {
		wk, err := c.newWorker(w, first)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.workers = append(c.workers, wk)
	}
	c.log.Debug("checker ready",
		zap.Int("checks", len(opts.Specs)),
		zap.Stringer("threads", opts.Settings))
	return c, nil
}

func (c *Checker) newWorker(id int, first []check.Check) (*worker, error) {
	log := c.log.With(zap.Int("worker", id))
	wk := &worker{
		id: id,
		walker: walker.New(c.opts.Parser.Kinds(), c.opts.Settings.Executor(log),
			walker.WithLogger(log), walker.WithTabWidth(c.opts.TabWidth)),
	}
	for i, spec := range c.opts.Specs {
		inst := c.shared[i]
		if inst == nil {
			if id == 0 {
				inst = first[i]
			} else {
				var err error
				if inst, err = c.opts.Registry.Instantiate(spec); err != nil {
					return nil, err
				}
			}
		}
		reg := check.NewRegistration(inst, spec, i)
		if err := wk.walker.Register(reg); err != nil {
			return nil, fmt.Errorf("check %s: %w", reg.Name, err)
		}
		wk.regs = append(wk.regs, reg)
	}
	return wk, nil
}

// FileSet returns the set holding every file loaded by the checker.
func (c *Checker) FileSet() *source.FileSet { return c.fs }

// Settings returns the thread settings in effect.
func (c *Checker) Settings() ThreadModeSettings { return c.opts.Settings }

// Close destroys the walkers and calls Destroy on every check instance.
func (c *Checker) Close() {
	if c.closed {
		return
	}
	c.closed = true
	seen := make(map[check.Check]bool)
	for _, wk := range c.workers {
		wk.walker.Destroy()
		for _, reg := range wk.regs {
			if seen[reg.Check] {
				continue
			}
			seen[reg.Check] = true
			if d, ok := reg.Check.(check.Destroyer); ok {
				d.Destroy()
			}
		}
	}
}

// displayName is the file name used in events.
func (c *Checker) displayName(path string) string { return c.fs.Name(path) }

// runFinishers calls FinishRun of shared checks in registration order.
func (c *Checker) runFinishers(ctx context.Context) error {
	for i, inst := range c.shared {
		fin, ok := inst.(check.RunFinisher)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		reg := c.workers[0].regs[i]
		rc := check.NewRunContext(reg)
		if err := check.Call(func() error { return fin.FinishRun(rc) }); err != nil {
			return &check.ModuleError{Module: reg.Name, Phase: "finish run", Err: err}
		}
		for _, rv := range rc.Violations() {
			file, _ := c.fs.GetByPath(rv.Path)
			c.opts.Pipeline.Report(c.opts.Pipeline.Event(c.displayName(rv.Path), file, nil, rv.Violation))
		}
	}
	return nil
}
