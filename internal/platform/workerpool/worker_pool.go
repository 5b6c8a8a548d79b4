// internal/platform/workerpool/worker_pool.go
package workerpool

import (
	"context"
	"sync"
	"time"

	"mira/internal/platform/logx"
)

// Task representa una unidad de trabajo a ejecutar en el pool.
type Task interface {
	// Execute ejecuta la tarea.
	Execute(ctx context.Context) error

	// Name retorna el nombre de la tarea (para logging).
	Name() string
}

// TaskResult representa el resultado de una tarea.
type TaskResult struct {
	Task     Task
	Error    error
	Duration time.Duration
}

// WorkerPool ejecuta tareas en streaming con un número fijo de workers.
// A diferencia de un pool por lotes, Submit no bloquea esperando
// resultados: el caller consume Results() a su propio ritmo, lo que
// permite que el scheduler despache trabajo nuevo a medida que los
// resultados desbloquean más unidades.
type WorkerPool struct {
	workers int
	logger  logx.Logger

	taskQueue chan Task
	results   chan TaskResult

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New crea un worker pool con el número de workers dado.
func New(workers int, logger logx.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = logx.New()
	}

	return &WorkerPool{
		workers:   workers,
		logger:    logger.With("component", "worker-pool"),
		taskQueue: make(chan Task, workers*2),
		results:   make(chan TaskResult, workers*2),
	}
}

// Start arranca los workers. Los workers terminan cuando se cancela el
// contexto o se cierra la cola con Stop.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	if wp.started {
		wp.mu.Unlock()
		return
	}
	wp.started = true
	wp.mu.Unlock()

	wp.logger.Debug("starting worker pool", "workers", wp.workers)

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			wp.logger.Debug("worker stopped", "worker_id", id)
			return

		case task, ok := <-wp.taskQueue:
			if !ok {
				wp.logger.Debug("task queue closed, worker stopping", "worker_id", id)
				return
			}
			wp.executeTask(ctx, id, task)
		}
	}
}

func (wp *WorkerPool) executeTask(ctx context.Context, workerID int, task Task) {
	start := time.Now()

	wp.logger.Debug("executing task", "worker_id", workerID, "task", task.Name())

	err := task.Execute(ctx)
	duration := time.Since(start)

	wp.logger.Debug("task completed",
		"worker_id", workerID,
		"task", task.Name(),
		"duration_ms", duration.Milliseconds(),
		"error", err != nil,
	)

	select {
	case wp.results <- TaskResult{Task: task, Error: err, Duration: duration}:
	case <-ctx.Done():
		// Pool cancelled, discard result.
	}
}

// Submit encola una tarea sin bloquear. Retorna false si la cola está
// llena; el caller decide si reintenta más tarde.
func (wp *WorkerPool) Submit(task Task) bool {
	select {
	case wp.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Results retorna el canal de resultados. El scheduler lo consume en su
// event loop.
func (wp *WorkerPool) Results() <-chan TaskResult {
	return wp.results
}

// Stop cierra la cola de tareas y espera a que los workers terminen.
// No debe llamarse a Submit tras Stop.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.started {
		wp.mu.Unlock()
		return
	}
	wp.started = false
	wp.mu.Unlock()

	close(wp.taskQueue)
	wp.wg.Wait()
	close(wp.results)

	wp.logger.Debug("worker pool stopped")
}

// Stats retorna estadísticas del worker pool.
type Stats struct {
	Workers     int
	QueueSize   int
	ResultsSize int
}

// Stats retorna una instantánea del estado del pool.
func (wp *WorkerPool) Stats() Stats {
	return Stats{
		Workers:     wp.workers,
		QueueSize:   len(wp.taskQueue),
		ResultsSize: len(wp.results),
	}
}
