package checker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arbor/internal/ast"
	"arbor/internal/audit"
	"arbor/internal/check"
	"arbor/internal/metrics"
	"arbor/internal/source"
	"arbor/internal/trace"
)

// Summary describes a finished run.
type Summary struct {
	Files   int
	Checked int
	Cached  int
	Failed  int
	Counts  audit.Counts
	Elapsed time.Duration
}

// result is what a worker hands back for one file.
type result struct {
	index   int
	path    string
	file    *source.File
	tree    *ast.Tree
	vs      []check.Violation
	err     error
	cached  bool
	elapsed time.Duration
	trace   []trace.Event
}

// Run checks paths and delivers their events in the order of paths.
//
// A failure while processing a file is reported with AddException. Unless
// ContinueOnError is set it then aborts the run: files after the failed one
// are not delivered, FinishRun is not called and the *FileError is returned.
// Listeners are flushed with AuditFinished in every case.
func (c *Checker) Run(ctx context.Context, paths []string) (Summary, error) {
	if c.closed {
		return Summary{}, errors.New("checker: run after Close")
	}
	start := time.Now()
	ctx, span := trace.Start(ctx, trace.ScopeRun, "check")
	span.Set("files", len(paths))

	c.opts.Metrics.Threads(c.opts.Settings.CheckerThreads(), c.opts.Settings.TreeWalkerThreads())
	for _, wk := range c.workers {
		if err := wk.walker.Init(ctx); err != nil {
			span.End("init failed")
			return Summary{}, err
		}
	}
	defer func() {
		for _, wk := range c.workers {
			wk.walker.Destroy()
		}
	}()

	c.opts.Pipeline.AuditStarted()
	clean := make(map[string]uint64)
	sum, runErr := c.process(ctx, paths, clean)

	if runErr == nil {
		runErr = c.runFinishers(ctx)
	}
	if c.caching {
		for path, hash := range clean {
			c.opts.Cache.Put(path, hash)
		}
	}
	if err := c.opts.Pipeline.AuditFinished(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if err := c.opts.Cache.Persist(); err != nil {
		c.log.Warn("cannot persist cache", zap.Error(err))
	}

	sum.Counts = c.opts.Pipeline.Counts()
	sum.Elapsed = time.Since(start)
	c.observe(sum)
	c.opts.Progress.OnEvent(Event{Stage: StageReport, Status: StatusDone, Events: sum.Counts.Delivered(), Elapsed: sum.Elapsed})

	detail := "ok"
	if runErr != nil {
		detail = "failed"
	}
	span.Set("events", sum.Counts.Delivered()).End(detail)
	c.log.Info("run finished",
		zap.Int("files", sum.Files),
		zap.Int("checked", sum.Checked),
		zap.Int("cached", sum.Cached),
		zap.Int("failed", sum.Failed),
		zap.Int("events", sum.Counts.Delivered()),
		zap.Duration("elapsed", sum.Elapsed))
	return sum, runErr
}

// process fans paths out to the workers and delivers results in order.
// Files delivered without events are collected in clean.
func (c *Checker) process(parent context.Context, paths []string, clean map[string]uint64) (Summary, error) {
	sum := Summary{Files: len(paths)}
	if len(paths) == 0 {
		return sum, nil
	}
	for _, p := range paths {
		c.opts.Progress.OnEvent(Event{File: c.displayName(p), Stage: StageParse, Status: StatusQueued})
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := make(chan int)
	results := make(chan result, len(c.workers))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range paths {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for _, wk := range c.workers {
		g.Go(func() error {
			wctx := trace.WithWorker(gctx, wk.id+1)
			for i := range jobs {
				res := c.processFile(wctx, wk, i, paths[i])
				select {
				case results <- res:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	// результаты приходят в любом порядке, доставляем строго по индексу
	pending := make(map[int]result)
	next := 0
	var fatal error
	for res := range results {
		if fatal != nil {
			continue
		}
		pending[res.index] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := c.deliver(&sum, clean, r); err != nil {
				fatal = err
				cancel()
				break
			}
		}
	}
	if fatal != nil {
		return sum, fatal
	}
	if err := parent.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

// processFile loads, parses and walks one file on a worker goroutine.
func (c *Checker) processFile(ctx context.Context, wk *worker, index int, path string) (res result) {
	start := time.Now()
	res = result{index: index, path: path}
	name := c.displayName(path)
	ctx, span := trace.Start(ctx, trace.ScopeFile, name)
	defer func() {
		res.elapsed = time.Since(start)
		switch {
		case res.err != nil:
			span.End("error")
			// события файла из кольцевого буфера уходят вместе с ошибкой
			res.trace = trace.FileEvents(ctx, name)
		case res.cached:
			span.End("cached")
		default:
			span.Set("violations", len(res.vs)).End("ok")
		}
	}()

	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	id, err := c.fs.Load(path)
	if err != nil {
		res.err = err
		return res
	}
	res.file = c.fs.Get(id)
	if c.caching && c.opts.Cache.InCache(path, res.file.Hash) {
		res.cached = true
		return res
	}

	c.opts.Progress.OnEvent(Event{File: name, Stage: StageParse, Status: StatusWorking})
	tree, err := c.opts.Parser.Parse(ctx, res.file)
	if err != nil {
		res.err = err
		return res
	}
	res.tree = tree

	c.opts.Progress.OnEvent(Event{File: name, Stage: StageWalk, Status: StatusWorking})
	res.vs, res.err = wk.walker.Walk(ctx, res.file, tree)
	return res
}

// deliver hands one file's outcome to the pipeline. A non-nil return aborts
// the run.
func (c *Checker) deliver(sum *Summary, clean map[string]uint64, r result) error {
	name := c.displayName(r.path)
	if r.cached {
		sum.Cached++
		c.opts.Metrics.File(metrics.ResultCached, r.elapsed)
		c.opts.Progress.OnEvent(Event{File: name, Stage: StageReport, Status: StatusCached, Elapsed: r.elapsed})
		return nil
	}

	p := c.opts.Pipeline
	p.FileStarted(name)
	if r.err != nil {
		ferr := &FileError{Path: name, Err: r.err, Trace: r.trace}
		sum.Failed++
		c.opts.Cache.Remove(r.path)
		c.opts.Metrics.File(metrics.ResultFailed, r.elapsed)
		c.opts.Progress.OnEvent(Event{File: name, Stage: StageReport, Status: StatusError, Err: ferr, Elapsed: r.elapsed})
		p.AddException(name, ferr)
		p.FileFinished(name)
		if c.opts.ContinueOnError {
			return nil
		}
		return ferr
	}

	n := p.ReportFile(name, r.file, r.tree, r.vs)
	p.FileFinished(name)
	sum.Checked++
	if n == 0 {
		clean[r.path] = r.file.Hash
	} else {
		c.opts.Cache.Remove(r.path)
	}
	c.opts.Metrics.File(metrics.ResultChecked, r.elapsed)
	c.opts.Progress.OnEvent(Event{File: name, Stage: StageReport, Status: StatusDone, Events: n, Elapsed: r.elapsed})
	return nil
}

func (c *Checker) observe(sum Summary) {
	m := c.opts.Metrics
	m.Events(check.SevInfo.String(), sum.Counts.Info)
	m.Events(check.SevWarning.String(), sum.Counts.Warning)
	m.Events(check.SevError.String(), sum.Counts.Error)
	m.Filtered(sum.Counts.Filtered)
	m.Run(sum.Elapsed)
}
