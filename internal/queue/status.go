package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/voxserve/voxserve/internal/config"
)

// JobStatus is the client-visible status token, always uppercase.
type JobStatus string

const (
	StatusPending JobStatus = "PENDING"
	StatusStarted JobStatus = "STARTED"
	StatusRetry   JobStatus = "RETRY"
	StatusSuccess JobStatus = "SUCCESS"
	StatusFailure JobStatus = "FAILURE"
	StatusUnknown JobStatus = "UNKNOWN"
)

// RetryInfo surfaces mid-retry metadata while a job is being redelivered.
type RetryInfo struct {
	Reason      string    `json:"reason"`
	NextAttempt time.Time `json:"eta"`
	RetriesLeft int       `json:"retries_left"`
}

// JobSnapshot is a point-in-time view of one job. Result is set only on
// SUCCESS, LastError only on FAILURE, Retry only while retrying.
type JobSnapshot struct {
	ID        string
	Status    JobStatus
	Result    *SynthesisResult
	LastError string
	Retry     *RetryInfo
}

// Terminal reports whether the job can no longer change state.
func (s *JobSnapshot) Terminal() bool {
	return s.Status == StatusSuccess || s.Status == StatusFailure
}

// Gateway translates broker-internal task state into the pollable job-status
// contract. Lookups never block on job completion.
type Gateway struct {
	inspector *asynq.Inspector
}

func NewGateway(redisCfg config.RedisConfig) *Gateway {
	return &Gateway{
		inspector: asynq.NewInspector(asynq.RedisClientOpt{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		}),
	}
}

func (g *Gateway) Close() error {
	return g.inspector.Close()
}

// GetStatus returns a status snapshot for the job. An unknown identifier
// yields a snapshot with StatusUnknown, not an error.
func (g *Gateway) GetStatus(jobID string) (*JobSnapshot, error) {
	info, err := g.inspector.GetTaskInfo(QueueSynthesis, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return &JobSnapshot{ID: jobID, Status: StatusUnknown}, nil
		}
		return nil, fmt.Errorf("inspect job %s: %w", jobID, err)
	}

	snap := &JobSnapshot{ID: jobID, Status: mapState(info.State)}

	switch snap.Status {
	case StatusSuccess:
		var result SynthesisResult
		if err := json.Unmarshal(info.Result, &result); err != nil {
			return nil, fmt.Errorf("decode result of job %s: %w", jobID, err)
		}
		snap.Result = &result
	case StatusFailure:
		snap.LastError = info.LastErr
	case StatusRetry:
		snap.Retry = &RetryInfo{
			Reason:      info.LastErr,
			NextAttempt: info.NextProcessAt,
			RetriesLeft: info.MaxRetry - info.Retried,
		}
	}

	return snap, nil
}

// mapState maps broker task states onto the status protocol. Archived tasks
// exhausted their retries, so they surface as FAILURE.
func mapState(state asynq.TaskState) JobStatus {
	switch state {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
		return StatusPending
	case asynq.TaskStateActive:
		return StatusStarted
	case asynq.TaskStateRetry:
		return StatusRetry
	case asynq.TaskStateCompleted:
		return StatusSuccess
	case asynq.TaskStateArchived:
		return StatusFailure
	default:
		return StatusUnknown
	}
}
