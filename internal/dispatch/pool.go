package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arbor/internal/logging"
)

type task struct {
	index   int
	run     Unit
	results chan<- Result
}

// Pool is a fixed-size worker pool. Workers are started on the first Execute
// and stopped by Destroy, which cancels work still queued.
type Pool struct {
	size int
	log  *zap.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	base    context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	tasks   chan task

	submitted atomic.Uint64
	failed    atomic.Uint64
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for pool lifecycle messages.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// NewPool creates a pool of size workers. Nothing is started until Execute.
func NewPool(size int, opts ...Option) *Pool {
	p := &Pool{size: max(size, 1), base: context.Background()}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.Or(p.log).Named(logging.ComponentDispatch)
	return p
}

// Init records the parent context for the workers and re-opens a destroyed pool.
func (p *Pool) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.base = ctx
	p.closed = false
	return nil
}

func (p *Pool) Concurrent() bool { return true }

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Stats returns the number of submitted and failed units since creation.
func (p *Pool) Stats() (submitted, failed uint64) {
	return p.submitted.Load(), p.failed.Load()
}

// start запускает воркеров при первом использовании.
func (p *Pool) start() (context.Context, chan task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, ErrPoolClosed
	}
	if p.started {
		return p.ctx, p.tasks, nil
	}

	p.ctx, p.cancel = context.WithCancel(p.base)
	p.tasks = make(chan task)
	tasks := p.tasks
	var gctx context.Context
	p.group, gctx = errgroup.WithContext(p.ctx)
	for range p.size {
		p.group.Go(func() error {
			return p.worker(gctx, tasks)
		})
	}
	p.started = true
	p.log.Debug("pool started", zap.Int("workers", p.size))
	return p.ctx, p.tasks, nil
}

func (p *Pool) worker(ctx context.Context, tasks <-chan task) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-tasks:
			res := Result{Index: t.index, Err: runUnit(t.run)}
			if res.Failed() {
				p.failed.Add(1)
			}
			// канал результатов буферизован на все задачи, отправка не блокирует
			t.results <- res
		}
	}
}

// Execute submits one task per unit and waits for every submitted task.
// If any unit failed, the failure with the lowest index is returned wrapped
// in ErrTaskFailed.
func (p *Pool) Execute(ctx context.Context, units []Unit) error {
	if len(units) == 0 {
		return nil
	}
	poolCtx, tasks, err := p.start()
	if err != nil {
		return err
	}

	results := make(chan Result, len(units))
	submitted := 0
	var submitErr error
submit:
	for i, u := range units {
		select {
		case tasks <- task{index: i, run: u, results: results}:
			submitted++
			p.submitted.Add(1)
		case <-ctx.Done():
			submitErr = ctx.Err()
			break submit
		case <-poolCtx.Done():
			return p.stopped(poolCtx)
		}
	}

	// барьер: ждём все отправленные задачи
	var first *Result
	for range submitted {
		select {
		case res := <-results:
			if res.Failed() && (first == nil || res.Index < first.Index) {
				r := res
				first = &r
			}
		case <-poolCtx.Done():
			return p.stopped(poolCtx)
		}
	}

	if first != nil {
		return fmt.Errorf("%w: %w", ErrTaskFailed, first.Err)
	}
	return submitErr
}

// stopped explains why the workers' context ended: ErrPoolClosed after
// Destroy, otherwise the cause of the context given to Init.
func (p *Pool) stopped(poolCtx context.Context) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}
	return context.Cause(poolCtx)
}

// Destroy cancels the workers and waits for them to exit. Units that were
// not yet picked up are abandoned.
func (p *Pool) Destroy() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	started := p.started
	p.started = false
	cancel, group := p.cancel, p.group
	p.mu.Unlock()

	if !started {
		return
	}
	cancel()
	_ = group.Wait()
	submitted, failed := p.Stats()
	p.log.Debug("pool stopped", zap.Uint64("submitted", submitted), zap.Uint64("failed", failed))
}
