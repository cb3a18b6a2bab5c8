// Package worker runs batch jobs from a queue on a bounded pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sigte/riskengine/internal/adapters/mq/queue"
	"github.com/sigte/riskengine/pkg/logger"
	"github.com/sigte/riskengine/pkg/metrics"
)

const defaultWorkerMultiplier = 2 // jobs are I/O bound store reads

// Processor handles a single job. A returned error is counted and logged;
// it does not stop the pool.
type Processor func(ctx context.Context, j queue.Job) error

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker consumes jobs until its queue drains or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the in-flight job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	process Processor
	name    string
	failed  *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		process:  p,
		name:     "worker",
		failed:   &atomic.Int64{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	metrics.AddWorkerActive(1)
	defer metrics.AddWorkerActive(-1)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, j); err != nil {
				w.logger.Warn(ctx, "job failed",
					logger.Int("index", j.Index),
					logger.String("student_id", j.StudentID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) processJob(ctx context.Context, j queue.Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %d panicked: %v", j.Index, r)
		}
		if err != nil {
			w.failed.Add(1)
		}
		metrics.RecordWorkerJob(float64(time.Since(start).Microseconds())/1000, err != nil)
	}()
	return w.process(ctx, j)
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	failed  atomic.Int64
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one
// defaults to a multiple of the CPU count.
func NewPool(workerCount int, q Queue, p Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range pool.workers {
		w := NewInMemoryWorker(q, p, WithName("worker-"+strconv.Itoa(i)))
		w.failed = &pool.failed
		pool.workers[i] = w
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Failed returns how many jobs returned an error.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has exited, normally because the queue
// was closed and drained.
func (p *Pool) Wait() {
	for _, w := range p.workers {
		<-w.done
	}
}

// Shutdown stops all workers, waiting at most until ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Run fans ids out to a temporary pool and blocks until every job has been
// processed or ctx is done. Jobs carry the id's position in ids.
func Run(ctx context.Context, workerCount, capacity int, ids []string, p Processor) error {
	q := queue.NewInMemoryQueue(queue.WithCapacity(capacity))
	pool := NewPool(workerCount, q, p)
	pool.Start(ctx)

	var putErr error
	for i, id := range ids {
		if err := q.Put(ctx, queue.Job{Index: i, StudentID: id}); err != nil {
			putErr = err
			break
		}
	}
	_ = q.Close()
	pool.Wait()

	if putErr != nil {
		return fmt.Errorf("fan-out interrupted: %w", putErr)
	}
	return ctx.Err()
}
