package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gatehouse-io/gatehouse/pkg/observability"
)

// SafeGo executes fn in a goroutine with context cancellation, panic
// recovery, timeout enforcement, and error logging.
//
// Errors and panics are logged, never propagated; callers that need the
// result should not use this helper.
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("task", taskName).
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithField("task", taskName).WithError(err).Warn("background task failed")
		}
	}()
}

// Detached is like SafeGo but decouples the task from the caller's context
// lifetime. Useful when the spawning request completes before the task does,
// such as a cache refresh triggered from a webhook handler that must return
// 200 immediately.
func Detached(logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	SafeGo(context.Background(), logger, timeout, taskName, fn)
}
