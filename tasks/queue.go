package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Queue accepts tasks for the worker.
type Queue interface {
	Enqueue(ctx context.Context, queue string, payload interface{}) error
}

// Source hands tasks to the worker. An empty queue name with a nil error means
// nothing arrived before the timeout.
type Source interface {
	Dequeue(ctx context.Context, timeout time.Duration, queues ...string) (queue, payload string, err error)
}

// RedisQueue is a Redis list per queue: LPUSH to enqueue, BRPOP to consume.
// Safe to consume from several worker instances.
type RedisQueue struct {
	RDB *redis.Client
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{RDB: rdb}
}

func (q *RedisQueue) Enqueue(ctx context.Context, queue string, payload interface{}) error {
	payloadStr, err := Marshal(payload)
	if err != nil {
		return err
	}
	return q.RDB.LPush(ctx, queue, payloadStr).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration, queues ...string) (string, string, error) {
	result, err := q.RDB.BRPop(ctx, timeout, queues...).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	// result[0] is the queue name, result[1] is the payload
	return result[0], result[1], nil
}

// MemoryQueue is an in-process Queue and Source for tests and single-binary dev runs.
type MemoryQueue struct {
	mu    sync.Mutex
	items map[string][]string
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: map[string][]string{}}
}

func (q *MemoryQueue) Enqueue(_ context.Context, queue string, payload interface{}) error {
	payloadStr, err := Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[queue] = append(q.items[queue], payloadStr)
	return nil
}

// Dequeue pops the oldest task from the first non-empty queue, waiting up to
// timeout for one to arrive.
func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration, queues ...string) (string, string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if name, payload, ok := q.pop(queues); ok {
			return name, payload, nil
		}
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		if !time.Now().Before(deadline) {
			return "", "", nil
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (q *MemoryQueue) pop(queues []string) (string, string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, name := range queues {
		if items := q.items[name]; len(items) > 0 {
			q.items[name] = items[1:]
			return name, items[0], true
		}
	}
	return "", "", false
}

// Len reports how many tasks are waiting on queue.
func (q *MemoryQueue) Len(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items[queue])
}
