package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Task is one periodic maintenance function. A returned error is logged;
// it never stops the loop.
type Task func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       Task
}

// Runner owns the engine's periodic background loops under one
// lifecycle. Every registered task runs on its own goroutine; a panic in
// one loop is recovered and logged without affecting the others, and Stop
// shuts all loops down together.
type Runner struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []task
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger for the Runner.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.logger = log
		}
	}
}

// NewRunner creates an empty runner. Register tasks with Add before Start.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a named periodic task. Registration is rejected after
// Start so the running task set is immutable.
func (r *Runner) Add(name string, interval time.Duration, fn Task) error {
	if name == "" {
		return ErrTaskNameRequired
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}
	if fn == nil {
		return ErrTaskRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRunnerStarted
	}
	for _, t := range r.tasks {
		if t.name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateTask, name)
		}
	}
	r.tasks = append(r.tasks, task{name: name, interval: interval, fn: fn})
	return nil
}

// Start launches one loop per registered task. The loops run until Stop
// or until the given context is canceled.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRunnerStarted
	}
	r.started = true

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, t := range r.tasks {
		r.wg.Add(1)
		go r.loop(runCtx, t)
	}

	r.logger.LogAttrs(runCtx, slog.LevelInfo, "Background task runner started",
		slog.Int("tasks", len(r.tasks)),
	)
	return nil
}

// Stop cancels every loop and waits for them to exit, bounded by the
// given context.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop drives one task on its interval. The first tick is jittered by a
// random fraction of the interval so loops sharing an interval do not
// wake in lockstep.
func (r *Runner) loop(ctx context.Context, t task) {
	defer r.wg.Done()

	first := time.Duration(rand.Int63n(int64(t.interval)))
	timer := time.NewTimer(first)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		r.run(ctx, t)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// run executes one task invocation with panic isolation.
func (r *Runner) run(ctx context.Context, t task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "Background task panicked",
				slog.String("task", t.name),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if err := t.fn(ctx); err != nil && ctx.Err() == nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "Background task failed",
			slog.String("task", t.name),
			logger.Error(err),
		)
	}
}
