package bulls

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gofalre.io/bulls/audit"
)

const taskQueueSize = 1000

// WorkerPool runs submitted tasks on a fixed number of goroutines.
type WorkerPool struct {
	tasks  chan func()
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewWorkerPool(size int, logger *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	wp := &WorkerPool{
		tasks:  make(chan func(), taskQueueSize),
		logger: logger,
	}

	wp.wg.Add(size)
	for i := 0; i < size; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task func()) {
	defer func() {
		if p := recover(); p != nil {
			wp.logger.Error("Task panicked", zap.Any("panic", p))
		}
	}()
	task()
}

// Submit queues task, blocking while the queue is full. It reports false
// once the pool has been shut down.
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		wp.logger.Warn("Worker pool is shut down, dropping task")
		return false
	}
	wp.tasks <- task
	return true
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()
}

// asyncAuditor hands audit entries to the worker pool so a slow broker
// never holds up a commit.
type asyncAuditor struct {
	pool   *WorkerPool
	writer audit.Writer
	logger *zap.Logger
}

func (a *asyncAuditor) Append(ctx context.Context, entries ...audit.Entry) error {
	batch := append([]audit.Entry(nil), entries...)
	ctx = context.WithoutCancel(ctx)
	a.pool.Submit(func() {
		if err := a.writer.Append(ctx, batch...); err != nil {
			a.logger.Error("Failed to write audit entries", zap.Error(err), zap.Int("count", len(batch)))
		}
	})
	return nil
}
