package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/stretchr/testify/assert"
)

func TestSafeGoRunsTask(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	done := make(chan struct{})

	SafeGo(context.Background(), logger, time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestSafeGoRecoversPanic(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	done := make(chan struct{})

	SafeGo(context.Background(), logger, time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	// Reaching here without the test process dying is the assertion.
}

func TestSafeGoEnforcesTimeout(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	expired := make(chan error, 1)

	SafeGo(context.Background(), logger, 10*time.Millisecond, "slow task", func(ctx context.Context) error {
		<-ctx.Done()
		expired <- ctx.Err()
		return ctx.Err()
	})

	select {
	case err := <-expired:
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	case <-time.After(2 * time.Second):
		t.Fatal("context never expired")
	}
}
