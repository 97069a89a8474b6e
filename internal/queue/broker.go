package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue names shared by producers and workers.
const (
	DocumentProcessing = "document_processing"
	QuestionProcessing = "question_processing"
	QAPairProcessing   = "qa_pair_processing"
	ExportJobs         = "export_jobs"
)

// ErrEmpty is returned by Dequeue when no job arrived within the timeout.
var ErrEmpty = errors.New("queue: empty")

// Broker provides named FIFO queues over Redis lists. Delivery is
// at-most-once: there is no acknowledgment and no redelivery, so a worker
// crash between Dequeue and completion loses that job.
type Broker struct {
	client *redis.Client
}

// NewBroker wraps an existing Redis client.
func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client}
}

// Enqueue appends a payload to the named queue.
func (b *Broker) Enqueue(ctx context.Context, queue string, payload Payload) error {
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := b.client.LPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", queue, err)
	}
	return nil
}

// Dequeue blocks up to timeout waiting for the next job on the named queue.
// The raw JSON is returned for the caller to decode into the queue's payload
// type; ErrEmpty signals a quiet queue, not a failure.
func (b *Broker) Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	if queue == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	res, err := b.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("brpop %s: %w", queue, err)
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("brpop %s: unexpected reply length %d", queue, len(res))
	}
	return []byte(res[1]), nil
}

// Len reports the number of pending jobs on the named queue.
func (b *Broker) Len(ctx context.Context, queue string) (int64, error) {
	n, err := b.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", queue, err)
	}
	return n, nil
}

// Clear drops every pending job on the named queue.
func (b *Broker) Clear(ctx context.Context, queue string) error {
	if err := b.client.Del(ctx, queue).Err(); err != nil {
		return fmt.Errorf("del %s: %w", queue, err)
	}
	return nil
}
