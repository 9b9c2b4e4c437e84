// Package janitor runs the periodic maintenance sweeps: idle session
// expiry, cache eviction, lockout enforcement, audit flushing, counter
// resets. Each task runs on its own schedule in its own goroutine; one
// failing or panicking sweep never stops the others.
package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"empgate/pkg/requestcontext"
)

// Task is one scheduled sweep.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Janitor owns the registered tasks and their goroutines.
type Janitor struct {
	logger *slog.Logger
	tasks  []Task
}

func New(logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{logger: logger}
}

// Register adds a task. Must be called before Run.
func (j *Janitor) Register(t Task) {
	j.tasks = append(j.tasks, t)
}

// Run starts every registered task and blocks until ctx is cancelled and
// all task goroutines have stopped.
func (j *Janitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range j.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			j.runTask(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (j *Janitor) runTask(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Every)
	defer ticker.Stop()

	for {
		select {
		case tick := <-ticker.C:
			j.tick(ctx, t, tick)
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one sweep with the tick time pinned on the context, so every
// expiry decision within the sweep uses the same instant.
func (j *Janitor) tick(ctx context.Context, t Task, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("sweep panicked", "task", t.Name, "panic", r)
		}
	}()

	if err := t.Run(requestcontext.WithTime(ctx, at)); err != nil {
		j.logger.Error("sweep failed", "task", t.Name, "error", err)
	}
}
