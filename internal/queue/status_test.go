package queue

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestMapState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state asynq.TaskState
		want  JobStatus
	}{
		{asynq.TaskStatePending, StatusPending},
		{asynq.TaskStateScheduled, StatusPending},
		{asynq.TaskStateAggregating, StatusPending},
		{asynq.TaskStateActive, StatusStarted},
		{asynq.TaskStateRetry, StatusRetry},
		{asynq.TaskStateCompleted, StatusSuccess},
		{asynq.TaskStateArchived, StatusFailure},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, mapState(tc.state), "state %v", tc.state)
	}

	require.Equal(t, StatusUnknown, mapState(asynq.TaskState(0)))
}

func TestJobSnapshotTerminal(t *testing.T) {
	t.Parallel()

	for status, terminal := range map[JobStatus]bool{
		StatusPending: false,
		StatusStarted: false,
		StatusRetry:   false,
		StatusSuccess: true,
		StatusFailure: true,
		StatusUnknown: false,
	} {
		snap := &JobSnapshot{ID: "x", Status: status}
		require.Equal(t, terminal, snap.Terminal(), "status %s", status)
	}
}
