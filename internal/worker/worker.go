// Package worker runs periodic maintenance tasks in the background.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker runs each registered task on its own ticker.
type Worker struct {
	tasks  []Task
	config Config
	logger *slog.Logger

	// Synchronization
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Register adds a task. Call this before Start().
func (w *Worker) Register(task Task) {
	w.tasks = append(w.tasks, task)
	w.logger.Debug("Registered task", "task", task.Name(), "interval", task.Interval())
}

// Start launches one goroutine per task.
func (w *Worker) Start(ctx context.Context) {
	for _, task := range w.tasks {
		if task.Interval() <= 0 {
			w.logger.Warn("Task disabled, interval not positive", "task", task.Name())
			continue
		}
		w.wg.Add(1)
		go w.runTask(ctx, task)
	}

	w.logger.Info("Worker started", "tasks", len(w.tasks))
}

// Stop signals all tasks to stop and waits for them to finish.
// It respects the configured ShutdownTimeout and is safe to call twice.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some tasks may still be running")
	}
}

// runTask is the loop for one task. It ends on Stop, on ctx cancellation
// or after a permanent error.
func (w *Worker) runTask(ctx context.Context, task Task) {
	defer w.wg.Done()

	logger := w.logger.With("task", task.Name())

	if w.config.RunOnStart {
		if !w.runOnce(ctx, task, logger) {
			return
		}
	}

	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Task stopping")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.runOnce(ctx, task, logger) {
				return
			}
		}
	}
}

// runOnce executes a single pass with a timeout. It returns false when the
// task must not be scheduled again.
func (w *Worker) runOnce(ctx context.Context, task Task, logger *slog.Logger) bool {
	taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	if err == nil {
		logger.Debug("Task completed", "duration", time.Since(start))
		return true
	}

	if IsPermanent(err) {
		logger.Error("Task failed permanently, unscheduling", "error", err)
		return false
	}
	logger.Error("Task failed", "error", err, "duration", time.Since(start))
	return true
}
