package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"FeedbackAnalyzer/internal/ports"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 256
	defaultCallTimeout = 2 * time.Minute
)

var (
	// ErrQueueFull is returned by Submit when QueueSize tasks are already waiting.
	ErrQueueFull = errors.New("oracle queue is full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("executor is closed")
)

// Task is a unit of blocking oracle work.
type Task func(ctx context.Context) (string, error)

// Options bounds the pool.
type Options struct {
	Workers     int
	QueueSize   int
	CallTimeout time.Duration
}

// Pool runs oracle calls on a fixed number of workers so request handling
// never waits on model latency directly. Excess work queues up to QueueSize
// and is rejected beyond that.
type Pool struct {
	opts    Options
	tasks   chan job
	metrics ports.ExecutorMetrics
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup

	inFlight atomic.Int64
}

type job struct {
	ctx    context.Context
	task   Task
	future *Future
}

// New builds a pool; call Start before submitting work.
func New(opts Options, metrics ports.ExecutorMetrics, logger *slog.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &Pool{
		opts:    opts,
		tasks:   make(chan job, opts.QueueSize),
		metrics: metrics,
		logger:  logger,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.debug("executor started", "workers", p.opts.Workers, "queue_size", p.opts.QueueSize)
}

// Close stops accepting work, lets queued tasks finish and waits for the workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.debug("executor stopped")
}

// Submit queues task and returns a Future resolved with its outcome.
func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	if task == nil {
		return nil, fmt.Errorf("nil task")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	f := &Future{done: make(chan struct{})}
	select {
	case p.tasks <- job{ctx: ctx, task: task, future: f}:
		p.reportQueue()
		return f, nil
	default:
		if p.metrics != nil {
			p.metrics.Rejected()
		}
		return nil, ErrQueueFull
	}
}

// Do submits task and waits for its result.
func (p *Pool) Do(ctx context.Context, task Task) (string, error) {
	f, err := p.Submit(ctx, task)
	if err != nil {
		return "", err
	}
	return f.Wait(ctx)
}

// Bind returns a Completer whose calls all run on this pool.
func (p *Pool) Bind(oracle ports.Completer) ports.Completer {
	return &boundCompleter{pool: p, oracle: oracle}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.tasks {
		p.reportQueue()
		p.run(id, j)
	}
}

func (p *Pool) run(id int, j job) {
	if err := j.ctx.Err(); err != nil {
		j.future.resolve("", err)
		return
	}

	ctx, cancel := context.WithTimeout(j.ctx, p.opts.CallTimeout)
	defer cancel()

	p.reportInFlight(p.inFlight.Add(1))
	start := time.Now()
	value, err := call(ctx, j.task)
	elapsed := time.Since(start)
	p.reportInFlight(p.inFlight.Add(-1))

	if p.metrics != nil {
		p.metrics.CallDuration(elapsed.Seconds())
	}
	p.debug("oracle call finished", "worker", id, "elapsed", elapsed, "error", err)
	j.future.resolve(value, err)
}

func call(ctx context.Context, task Task) (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("oracle task panicked: %v", r)
		}
	}()
	return task(ctx)
}

func (p *Pool) reportQueue() {
	if p.metrics != nil {
		p.metrics.QueueDepth(len(p.tasks))
	}
}

func (p *Pool) reportInFlight(n int64) {
	if p.metrics != nil {
		p.metrics.InFlight(int(n))
	}
}

func (p *Pool) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

// Future is the pending result of a submitted Task.
type Future struct {
	done  chan struct{}
	value string
	err   error
}

func (f *Future) resolve(value string, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Wait blocks until the task finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type boundCompleter struct {
	pool   *Pool
	oracle ports.Completer
}

var _ ports.Completer = (*boundCompleter)(nil)

func (b *boundCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return b.pool.Do(ctx, func(ctx context.Context) (string, error) {
		return b.oracle.Complete(ctx, prompt)
	})
}
