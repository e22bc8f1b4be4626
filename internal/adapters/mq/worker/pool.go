package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/okian/gameproof/pkg/logger"
	"github.com/okian/gameproof/pkg/metrics"
)

const metricsUpdateInterval = 5 * time.Second

// Pool bounds how many verifications run at once. Submissions beyond the
// queue size fail fast with ErrSaturated instead of piling up.
type Pool struct {
	pool      pond.Pool
	workers   int
	queueSize int

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	logger logger.Logger
}

// NewPool creates a pool of workers with room for queueSize waiting jobs.
// workers < 1 defaults to runtime.NumCPU().
func NewPool(workers, queueSize int, opts ...PoolOption) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if queueSize < 1 {
		queueSize = workers
	}
	p := &Pool{
		pool:      pond.NewPool(workers, pond.WithQueueSize(queueSize), pond.WithNonBlocking(true)),
		workers:   workers,
		queueSize: queueSize,
		stop:      make(chan struct{}),
		logger:    logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	metrics.UpdateWorkerCapacity(workers)
	return p
}

// Start runs the metrics updater until ctx is done or the pool shuts down.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
				p.updateMetrics()
			}
		}
	}()
}

func (p *Pool) updateMetrics() {
	metrics.UpdateWorkerRunning(p.pool.RunningWorkers())
	metrics.UpdateWorkerWaiting(p.pool.WaitingTasks())
}

// Submit schedules job without blocking. The job receives a context detached
// from ctx, so it runs to completion even if the submitter goes away.
func (p *Pool) Submit(ctx context.Context, job func(ctx context.Context)) error {
	detached := context.WithoutCancel(ctx)
	err := p.pool.Go(func() {
		start := time.Now()
		defer func() {
			metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
		}()
		job(detached)
	})
	switch {
	case err == nil:
		p.updateMetrics()
		return nil
	case errors.Is(err, pond.ErrQueueFull):
		metrics.RecordWorkerRejected()
		return ErrSaturated
	case errors.Is(err, pond.ErrPoolStopped):
		return ErrStopped
	default:
		return fmt.Errorf("submit: %w", err)
	}
}

// Do runs fn on the pool and waits for its result. If ctx ends first Do
// returns ctx.Err() while fn keeps running to completion.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) T) (T, error) {
	result := make(chan T, 1)
	err := p.Submit(ctx, func(jctx context.Context) {
		result <- fn(jctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Shutdown stops accepting work and waits for running jobs, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.stop) })

	done := make(chan struct{})
	go func() {
		p.pool.StopAndWait()
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out",
			logger.Int("running", int(p.pool.RunningWorkers())),
		)
		return fmt.Errorf("pool shutdown: %w", ctx.Err())
	}
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queue_size"`
	Running   int64  `json:"running"`
	Waiting   uint64 `json:"waiting"`
	Completed uint64 `json:"completed"`
}

// Stats reports current pool usage.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		QueueSize: p.queueSize,
		Running:   p.pool.RunningWorkers(),
		Waiting:   p.pool.WaitingTasks(),
		Completed: p.pool.CompletedTasks(),
	}
}
