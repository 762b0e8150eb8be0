// Package taskqueue dispatches long-running side effects (hardware
// inventory parsing, repository metadata builds, package metadata
// extraction) off the sync request path. Handlers enqueue and return;
// failures are the queue consumer's business, never the syncing client's.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Task kinds understood by the workers.
const (
	TaskHardwareInventory = "hardware_inventory"
	TaskRepositoryBuild   = "repository_build"
	TaskPackageMetadata   = "package_metadata"
)

// Task is one unit of deferred work.
type Task struct {
	Kind       string          `json:"kind"`
	ComputerID int64           `json:"computer_id,omitempty"`
	ProjectID  int64           `json:"project_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue accepts tasks for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}

const queueKey = "migasfree:tasks"

// RedisQueue pushes tasks onto a redis list consumed by external workers.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.RPush(ctx, queueKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.Kind, err)
	}
	return nil
}

// Dequeue pops one task, blocking up to timeout. Workers use this; the
// sync path never does.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.client.BLPop(ctx, timeout, queueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue task: %w", err)
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// MemoryQueue collects tasks in memory for tests.
type MemoryQueue struct {
	Tasks []Task
}

func (q *MemoryQueue) Enqueue(_ context.Context, task Task) error {
	q.Tasks = append(q.Tasks, task)
	return nil
}
