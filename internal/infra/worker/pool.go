package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	ErrNilTask   = errors.New("nil task")
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines.
// Every task that was accepted runs exactly once; tasks still queued at
// shutdown run with an already canceled context.
type Pool struct {
	wg       sync.WaitGroup
	jobs     chan Task
	quit     chan struct{}
	draining atomic.Bool
	n        int
	logger   zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		jobs:   make(chan Task, workers*4),
		quit:   make(chan struct{}),
		n:      workers,
		logger: logger.With().Str("component", "worker_pool").Logger(),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					p.drain()
					return
				case <-p.quit:
					p.drain()
					return
				case task := <-p.jobs:
					if err := task(ctx); err != nil {
						p.logger.Warn().Err(err).Int("worker", id).Msg("task failed")
					}
				}
			}
		}(i)
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
	p.drain()
}

// drain runs whatever is left in the queue with a canceled context.
func (p *Pool) drain() {
	p.draining.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for {
		select {
		case task := <-p.jobs:
			if err := task(ctx); err != nil {
				p.logger.Debug().Err(err).Msg("task released at shutdown")
			}
		default:
			return
		}
	}
}

// settle covers a submit that raced with shutdown: if draining already
// started, the submitter drains its own task.
func (p *Pool) settle() {
	if p.draining.Load() {
		p.drain()
	}
}

// Submit enqueues without blocking and drops the task when saturated.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if p.stopped() {
		return ErrStopped
	}
	select {
	case p.jobs <- task:
		p.settle()
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait blocks until the task is queued, ctx is done or the pool stops.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if p.stopped() {
		return ErrStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrStopped
	case p.jobs <- task:
		p.settle()
		return nil
	}
}

func (p *Pool) stopped() bool {
	if p.draining.Load() {
		return true
	}
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}
