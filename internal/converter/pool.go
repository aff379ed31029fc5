package converter

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/harliandi/go-imgresize/pkg/metrics"
)

var (
	// ErrPoolBusy is returned when the worker pool is at capacity
	ErrPoolBusy = errors.New("worker pool is busy, please retry later")
	// ErrPoolStopped is returned when submitting to a stopped pool
	ErrPoolStopped = errors.New("worker pool is stopped")
	// ErrJobPanicked is returned when a job panics on its worker
	ErrJobPanicked = errors.New("job panicked")
)

// task is a queued job with the channel its outcome goes to
type task struct {
	ctx    context.Context
	job    *Job
	result chan<- outcome
}

type outcome struct {
	res *Result
	err error
}

// WorkerPool runs jobs on a fixed number of goroutines. Each job runs on a
// single worker from start to finish.
type WorkerPool struct {
	converter *Converter
	logger    zerolog.Logger
	tasks     chan task
	workers   int
	active    atomic.Int32
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	mu        sync.RWMutex
	stopped   bool
}

// NewWorkerPool creates a pool with the given worker count and queue capacity
func NewWorkerPool(c *Converter, workers, queueSize int, logger zerolog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers * 2
	}
	return &WorkerPool{
		converter: c,
		logger:    logger,
		tasks:     make(chan task, queueSize),
		workers:   workers,
	}
}

// Start starts the worker goroutines
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info().Int("workers", p.workers).Int("queue", cap(p.tasks)).Msg("starting worker pool")
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// worker processes jobs from the task channel
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		p.active.Add(1)
		p.updateMetrics()

		o := p.process(id, t)

		p.active.Add(-1)
		p.updateMetrics()

		// Send result (non-blocking in case receiver is gone)
		select {
		case t.result <- o:
		default:
			p.logger.Warn().Int("worker", id).Str("job_id", t.job.ID).Msg("result channel full or closed")
		}
	}
}

// process runs one task. A panic is turned into an ErrJobPanicked outcome so
// the worker keeps serving the queue.
func (p *WorkerPool) process(id int, t task) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Int("worker", id).
				Str("job_id", t.job.ID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("job panicked")
			o = outcome{err: fmt.Errorf("%w: %v", ErrJobPanicked, r)}
		}
	}()

	// Caller gave up while the job was queued
	if err := t.ctx.Err(); err != nil {
		return outcome{err: err}
	}
	o.res, o.err = p.converter.Process(t.ctx, t.job)
	return o
}

// Submit queues a job and waits for its result.
// Returns ErrPoolBusy if the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, job *Job) (*Result, error) {
	p.Start()

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return nil, ErrPoolStopped
	}

	resultChan := make(chan outcome, 1)
	t := task{ctx: ctx, job: job, result: resultChan}

	select {
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	case p.tasks <- t:
		p.mu.RUnlock()
		p.updateMetrics()
	default:
		p.mu.RUnlock()
		metrics.RecordPoolRejected()
		return nil, ErrPoolBusy
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-resultChan:
		return o.res, o.err
	}
}

// SubmitWithRetry submits a job, retrying with a growing delay while the pool is busy
func (p *WorkerPool) SubmitWithRetry(ctx context.Context, job *Job, maxRetries int) (*Result, error) {
	var lastErr error = ErrPoolBusy
	for i := 0; i < maxRetries; i++ {
		res, err := p.Submit(ctx, job)
		if !errors.Is(err, ErrPoolBusy) {
			return res, err
		}
		lastErr = err

		waitTime := time.Duration(i+1) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return nil, lastErr
}

// Stop rejects new jobs, lets queued ones finish and waits for the workers
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.tasks)
		p.mu.Unlock()
		p.wg.Wait()
		p.logger.Info().Msg("worker pool stopped")
	})
}

// Stats returns the number of running and queued jobs
func (p *WorkerPool) Stats() (active, queued int) {
	return int(p.active.Load()), len(p.tasks)
}

func (p *WorkerPool) updateMetrics() {
	active, queued := p.Stats()
	metrics.UpdateWorkerPoolMetrics(queued, active)
}
