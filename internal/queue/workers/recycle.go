package workers

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hibiken/asynq"
)

// Recycle returns middleware that invokes stop exactly once after limit tasks
// have finished on this process, bounding how much state a long-lived worker
// can accumulate; the supervisor restarts it fresh. A limit of 0 disables
// recycling. stop runs on its own goroutine because a graceful server
// shutdown waits for the in-flight handler — this one — to return first.
func Recycle(limit int, stop func()) asynq.MiddlewareFunc {
	var processed atomic.Int64
	var once sync.Once

	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			err := next.ProcessTask(ctx, t)
			if limit > 0 && processed.Add(1) >= int64(limit) {
				once.Do(func() { go stop() })
			}
			return err
		})
	}
}
