// core/scheduler.go
package core

import (
	"context"
	"fmt"

	"github.com/funcgate/funcgate-core/pkg/handler"
)

// Scheduler is the shared execution context for async handlers. Submissions
// run on pooled slots so a burst of slow async work cannot monopolize the
// process; callers await completion without blocking other requests.
type Scheduler struct {
	slots chan struct{}
}

// DefaultWorkers bounds concurrent async handler executions.
const DefaultWorkers = 64

func NewScheduler(workers int) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scheduler{slots: make(chan struct{}, workers)}
}

func ProvideScheduler() *Scheduler { return NewScheduler(DefaultWorkers) }

type taskResult struct {
	value any
	err   error
}

// Submit schedules fn and returns a channel that delivers exactly one
// result. A panic inside fn is converted to an error; it never escapes the
// worker goroutine.
func (s *Scheduler) Submit(ctx context.Context, fn handler.Func, args map[string]any) <-chan taskResult {
	out := make(chan taskResult, 1)
	go func() {
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			out <- taskResult{err: ctx.Err()}
			return
		}
		defer func() { <-s.slots }()
		defer func() {
			if p := recover(); p != nil {
				out <- taskResult{err: fmt.Errorf("handler panic: %v", p)}
			}
		}()
		v, err := fn(ctx, args)
		out <- taskResult{value: v, err: err}
	}()
	return out
}
