// internal/scheduler/task.go
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Task is a scheduled callback that can be cancelled. Stop is safe to call
// more than once and from any goroutine.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every calls fn on each tick of interval until the task is stopped or ctx
// ends. The first call happens after one interval.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return t
}

// After calls fn once after delay unless the task is stopped first.
func After(ctx context.Context, delay time.Duration, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
			fn(ctx)
		}
	}()
	return t
}

// Stop cancels the task and waits for a running callback to return.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
