package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CleanupJob is an image deletion that failed at least once and should be retried.
type CleanupJob struct {
	Ref      string `json:"ref"`
	Attempts int    `json:"attempts"`
}

// CleanupQueue is a Redis list of pending image deletions.
type CleanupQueue struct {
	rdb  *redis.Client
	name string
}

func NewCleanupQueue(rdb *redis.Client, name string) *CleanupQueue {
	return &CleanupQueue{rdb: rdb, name: name}
}

// Enqueue schedules a fresh deletion of ref.
func (q *CleanupQueue) Enqueue(ctx context.Context, ref string) error {
	return q.Push(ctx, CleanupJob{Ref: ref})
}

func (q *CleanupQueue) Push(ctx context.Context, job CleanupJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal cleanup job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("push cleanup job to %s: %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next job. It returns (nil, nil) when the queue stayed empty.
func (q *CleanupQueue) Pop(ctx context.Context, timeout time.Duration) (*CleanupJob, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// res is [queueName, value]
	if len(res) < 2 {
		return nil, nil
	}
	var job CleanupJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("invalid cleanup job %q: %w", res[1], err)
	}
	return &job, nil
}
