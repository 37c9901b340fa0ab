package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/voxserve/voxserve/internal/config"
)

// Client dispatches synthesis jobs to the broker. Enqueue is non-blocking
// with respect to the job itself: the payload is durably persisted in Redis
// before the call returns.
type Client struct {
	client *asynq.Client
	worker config.WorkerConfig
}

func NewClient(redisCfg config.RedisConfig, workerCfg config.WorkerConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		}),
		worker: workerCfg,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueSynthesis persists the job and returns its identifier. Identical
// payloads submitted twice get distinct identifiers and run independently.
func (c *Client) EnqueueSynthesis(ctx context.Context, payload SynthesisPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	jobID := uuid.NewString()
	task := asynq.NewTask(TypeSynthesisGenerate, data)

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.Queue(QueueSynthesis),
		asynq.MaxRetry(c.worker.MaxRetry),
		asynq.Timeout(c.worker.TaskTimeout),
		asynq.Retention(c.worker.ResultRetention),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeSynthesisGenerate, err)
	}
	return jobID, nil
}
