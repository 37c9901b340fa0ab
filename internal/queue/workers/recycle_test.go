package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func noopHandler() asynq.Handler {
	return asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return nil })
}

func TestRecycleStopsAfterLimit(t *testing.T) {
	t.Parallel()

	stopped := make(chan struct{})
	h := Recycle(2, func() { close(stopped) })(noopHandler())
	task := asynq.NewTask("noop", nil)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	select {
	case <-stopped:
		t.Fatal("stop invoked before the task budget was spent")
	default:
	}

	require.NoError(t, h.ProcessTask(context.Background(), task))
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop not invoked after the task budget was spent")
	}

	// Tasks past the budget still process; stop fires only once.
	require.NoError(t, h.ProcessTask(context.Background(), task))
}

func TestRecycleCountsFailedTasks(t *testing.T) {
	t.Parallel()

	stopped := make(chan struct{})
	boom := errors.New("boom")
	h := Recycle(1, func() { close(stopped) })(asynq.HandlerFunc(
		func(context.Context, *asynq.Task) error { return boom }))

	err := h.ProcessTask(context.Background(), asynq.NewTask("noop", nil))
	require.ErrorIs(t, err, boom)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("a failed task must still count against the budget")
	}
}

func TestRecycleDisabled(t *testing.T) {
	t.Parallel()

	h := Recycle(0, func() { t.Error("stop must never run with recycling disabled") })(noopHandler())
	for i := 0; i < 10; i++ {
		require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask("noop", nil)))
	}
}
