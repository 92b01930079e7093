package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Task func(ctx context.Context)

// WorkerPool runs submitted tasks on a fixed number of goroutines. A task
// that panics is logged and does not take its worker down.
type WorkerPool struct {
	tasks         chan Task
	wg            sync.WaitGroup
	maxWorkers    int
	submitTimeout time.Duration
	logger        zerolog.Logger

	busy atomic.Int32

	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewWorkerPool(maxWorkers, queueSize int, logger zerolog.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < maxWorkers {
		queueSize = maxWorkers * 10
	}
	return &WorkerPool{
		tasks:         make(chan Task, queueSize),
		maxWorkers:    maxWorkers,
		submitTimeout: time.Second,
		logger:        logger,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started {
		return nil
	}
	wp.started = true

	for i := 0; i < wp.maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	wp.logger.Info().Int("max_workers", wp.maxWorkers).Msg("Worker pool started")
	return nil
}

// Stop drains the queue and waits for running tasks.
func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return nil
	}
	wp.stopped = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()

	wp.logger.Info().Msg("Worker pool stopped")
	return nil
}

// Submit queues a task, waiting up to the submit timeout when the queue is
// full. It reports whether the task was accepted. The read lock held while
// waiting only keeps Stop from closing the queue; workers never take it.
func (wp *WorkerPool) Submit(task Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return false
	}

	select {
	case wp.tasks <- task:
		return true
	default:
	}

	wp.logger.Warn().Msg("Worker pool task queue is full")
	select {
	case wp.tasks <- task:
		return true
	case <-time.After(wp.submitTimeout):
		wp.logger.Error().Msg("Failed to submit task to worker pool (timeout)")
		return false
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for task := range wp.tasks {
		wp.run(ctx, id, task)
	}

	wp.logger.Debug().Int("worker_id", id).Msg("Worker stopped")
}

func (wp *WorkerPool) run(ctx context.Context, id int, task Task) {
	wp.busy.Add(1)

	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Int("worker_id", id).
				Interface("panic", r).
				Msg("Worker recovered from panic")
		}

		wp.busy.Add(-1)
	}()

	task(ctx)
}

type PoolStats struct {
	BusyWorkers   int `json:"busy_workers"`
	MaxWorkers    int `json:"max_workers"`
	QueueLength   int `json:"queue_length"`
	QueueCapacity int `json:"queue_capacity"`
}

func (wp *WorkerPool) Stats() PoolStats {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return PoolStats{
		BusyWorkers:   int(wp.busy.Load()),
		MaxWorkers:    wp.maxWorkers,
		QueueLength:   len(wp.tasks),
		QueueCapacity: cap(wp.tasks),
	}
}
